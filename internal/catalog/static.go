// Package catalog provides a minimal ports.CatalogRepository so the server
// binary has something concrete to wire: spec §1 places the product/coupon
// catalog outside this gateway's scope ("external system"), so this is a
// stand-in, not a catalog service — real deployments replace it with a
// client for whatever commerce platform owns pricing.
package catalog

import (
	"context"
	"sync"

	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
)

// Entry is one product's static price, keyed by product id.
type Entry struct {
	AssetCode    string
	AtomicAmount int64
	Decimals     uint8
}

// StaticRepository serves a fixed, in-memory price/coupon table. Safe for
// concurrent use.
type StaticRepository struct {
	mu       sync.RWMutex
	prices   map[string]Entry   // tenantID + "/" + productID
	coupons  map[string]bool    // tenantID + "/" + code
}

func NewStaticRepository() *StaticRepository {
	return &StaticRepository{prices: make(map[string]Entry), coupons: make(map[string]bool)}
}

func key(tenantID, id string) string { return tenantID + "/" + id }

// SetPrice registers (or overwrites) a product's unit price.
func (r *StaticRepository) SetPrice(tenantID, productID string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[key(tenantID, productID)] = e
}

// SetCouponValid registers a coupon code as valid (or invalid) for a tenant.
func (r *StaticRepository) SetCouponValid(tenantID, code string, valid bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[key(tenantID, code)] = valid
}

func (r *StaticRepository) ProductUnitPrice(ctx context.Context, tenantID, productID string) (string, int64, uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.prices[key(tenantID, productID)]
	if !ok {
		return "", 0, 0, apperror.ProductNotFound()
	}
	return e.AssetCode, e.AtomicAmount, e.Decimals, nil
}

func (r *StaticRepository) CouponValid(ctx context.Context, tenantID, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coupons[key(tenantID, code)], nil
}

var _ ports.CatalogRepository = (*StaticRepository)(nil)
