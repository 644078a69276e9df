package ports

import (
	"context"
	"net/http"
)

// HTTPClient is the subset of *http.Client the outbound dispatcher (C4)
// needs, kept as an interface for testability (matching the teacher's
// webhook_service.go pattern).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CatalogRepository is the read-only product/coupon/tax/shipping lookup
// surface spec §1 names as an external collaborator.
type CatalogRepository interface {
	ProductUnitPrice(ctx context.Context, tenantID, productID string) (assetCode string, atomicAmount int64, decimals uint8, err error)
	CouponValid(ctx context.Context, tenantID, code string) (bool, error)
}
