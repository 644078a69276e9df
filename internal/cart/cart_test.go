package cart

import (
	"context"
	"testing"

	"paywall-gateway/internal/catalog"
	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture() (*Service, *memory.Store, *catalog.StaticRepository) {
	store := memory.New()
	cat := catalog.NewStaticRepository()
	cat.SetPrice("tenant-1", "sku-1", catalog.Entry{AssetCode: "USDC", AtomicAmount: 1000000, Decimals: 6})
	cat.SetPrice("tenant-1", "sku-2", catalog.Entry{AssetCode: "USDC", AtomicAmount: 500000, Decimals: 6})
	store.SeedProduct(domain.Product{TenantID: "tenant-1", ID: "sku-1", InventoryQuantity: 10})
	store.SeedProduct(domain.Product{TenantID: "tenant-1", ID: "sku-2", InventoryQuantity: 10})
	return New(store, cat, DefaultConfig()), store, cat
}

func TestQuote_SingleItem(t *testing.T) {
	svc, _, _ := newFixture()
	q, err := svc.Quote(context.Background(), "tenant-1", []QuoteItemInput{{ProductID: "sku-1", Quantity: 2}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), q.Total.AtomicAmount)
	assert.Equal(t, "USDC", q.Total.AssetCode)
}

func TestQuote_MultipleItemsSumTotal(t *testing.T) {
	svc, _, _ := newFixture()
	q, err := svc.Quote(context.Background(), "tenant-1", []QuoteItemInput{
		{ProductID: "sku-1", Quantity: 1},
		{ProductID: "sku-2", Quantity: 2},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), q.Total.AtomicAmount)
}

func TestQuote_EmptyCartRejected(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.Quote(context.Background(), "tenant-1", nil, nil)
	assert.Error(t, err)
}

func TestQuote_TooManyItemsRejected(t *testing.T) {
	svc, _, _ := newFixture()
	items := make([]QuoteItemInput, MaxCartItems+1)
	for i := range items {
		items[i] = QuoteItemInput{ProductID: "sku-1", Quantity: 1}
	}
	_, err := svc.Quote(context.Background(), "tenant-1", items, nil)
	assert.Error(t, err)
}

func TestQuote_InvalidQuantityRejected(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.Quote(context.Background(), "tenant-1", []QuoteItemInput{{ProductID: "sku-1", Quantity: 0}}, nil)
	assert.Error(t, err)
}

func TestQuote_UnknownProductRejected(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.Quote(context.Background(), "tenant-1", []QuoteItemInput{{ProductID: "missing", Quantity: 1}}, nil)
	assert.Error(t, err)
}

func TestQuote_InvalidCouponRejected(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.Quote(context.Background(), "tenant-1", []QuoteItemInput{
		{ProductID: "sku-1", Quantity: 1, AppliedCoupons: []string{"NOPE"}},
	}, nil)
	assert.Error(t, err)
}

func TestReserve_HoldsEnabled(t *testing.T) {
	svc, store, _ := newFixture()
	q, err := svc.Quote(context.Background(), "tenant-1", []QuoteItemInput{{ProductID: "sku-1", Quantity: 3}}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Reserve(context.Background(), "tenant-1", q))

	// Another cart reserving past remaining stock must fail once the hold is
	// in place (a cart's own holds are excluded from the sum).
	_, err = store.ReserveInventory(context.Background(), "tenant-1", uuid.New(), "sku-1", nil, 8, svc.cfg.HoldTTL)
	assert.Error(t, err)
}

func TestReserve_HoldsDisabledNoOp(t *testing.T) {
	store := memory.New()
	cat := catalog.NewStaticRepository()
	cat.SetPrice("tenant-1", "sku-1", catalog.Entry{AssetCode: "USDC", AtomicAmount: 100, Decimals: 6})
	store.SeedProduct(domain.Product{TenantID: "tenant-1", ID: "sku-1", InventoryQuantity: 1})
	cfg := DefaultConfig()
	cfg.InventoryHoldsEnabled = false
	svc := New(store, cat, cfg)

	q, err := svc.Quote(context.Background(), "tenant-1", []QuoteItemInput{{ProductID: "sku-1", Quantity: 1}}, nil)
	require.NoError(t, err)
	assert.NoError(t, svc.Reserve(context.Background(), "tenant-1", q))
}

func TestAggregateAdjustments_CollapsesDuplicateProducts(t *testing.T) {
	items := []domain.CartItem{
		{ResourceID: "sku-1", Quantity: 2},
		{ResourceID: "sku-2", Quantity: 1},
		{ResourceID: "sku-1", Quantity: 3},
	}
	adj := AggregateAdjustments(items, "order_fulfillment", "tester")
	require.Len(t, adj, 2)
	assert.Equal(t, "sku-1", adj[0].ProductID)
	assert.Equal(t, -5, adj[0].Delta)
	assert.Equal(t, "sku-2", adj[1].ProductID)
	assert.Equal(t, -1, adj[1].Delta)
}

func TestEmitOrder_FirstCallCreates(t *testing.T) {
	svc, _, _ := newFixture()
	created, order, err := svc.EmitOrder(context.Background(), "tenant-1", EmitOrderInput{
		Source:     domain.OrderSourceStripe,
		PurchaseID: "cs_123",
		ResourceID: "sku-1",
		Items:      []domain.CartItem{{ResourceID: "sku-1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
}

func TestEmitOrder_DuplicateDeliveryIsNoop(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()
	in := EmitOrderInput{
		Source:     domain.OrderSourceStripe,
		PurchaseID: "cs_123",
		ResourceID: "sku-1",
		Items:      []domain.CartItem{{ResourceID: "sku-1", Quantity: 1}},
	}
	created1, _, err := svc.EmitOrder(ctx, "tenant-1", in)
	require.NoError(t, err)
	require.True(t, created1)

	created2, _, err := svc.EmitOrder(ctx, "tenant-1", in)
	require.NoError(t, err)
	assert.False(t, created2)
}

func TestMarkPaid_DoublePaymentGuard(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()
	q, err := svc.Quote(ctx, "tenant-1", []QuoteItemInput{{ProductID: "sku-1", Quantity: 1}}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaid(ctx, "tenant-1", q.ID, "wallet-abc"))
	assert.Error(t, svc.MarkPaid(ctx, "tenant-1", q.ID, "wallet-abc"))
}
