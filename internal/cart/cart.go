// Package cart implements the cart/order state machine (C5): quote,
// reserve, pay, mark-paid, emit-order.
package cart

import (
	"context"
	"time"

	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/money"

	"github.com/google/uuid"
)

const (
	MaxCartItems    = 100
	MaxItemQuantity = 1000
)

// Config mirrors the cart.* knobs of spec §6.5.
type Config struct {
	QuoteTTL               time.Duration
	HoldTTL                time.Duration
	InventoryHoldsEnabled  bool
}

func DefaultConfig() Config {
	return Config{QuoteTTL: 15 * time.Minute, HoldTTL: 10 * time.Minute, InventoryHoldsEnabled: true}
}

// Service wires the storage contract into the cart state machine.
type Service struct {
	store   ports.Store
	catalog ports.CatalogRepository
	cfg     Config
}

func New(store ports.Store, catalog ports.CatalogRepository, cfg Config) *Service {
	return &Service{store: store, catalog: catalog, cfg: cfg}
}

// QuoteItemInput is one requested line item before catalog pricing.
type QuoteItemInput struct {
	ProductID      string
	VariantID      *string
	Quantity       int
	AppliedCoupons []string
}

// Quote validates requested items, looks up each item's unit price in the
// catalog, checks that every applied coupon is valid, and stores a
// CartQuote with expires_at = now + quote_ttl (spec §4.5). Lookups are made
// one line item at a time, not batched, and coupons do not change the
// total, which is the sum of unit price times quantity.
func (s *Service) Quote(ctx context.Context, tenantID string, items []QuoteItemInput, metadata map[string]interface{}) (*domain.CartQuote, error) {
	if len(items) == 0 {
		return nil, apperror.EmptyCart()
	}
	if len(items) > MaxCartItems {
		return nil, apperror.CartTooLarge()
	}

	now := time.Now()
	quote := &domain.CartQuote{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Metadata:  metadata,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.QuoteTTL),
	}

	total := money.Money{}
	for _, in := range items {
		if in.Quantity <= 0 || in.Quantity > MaxItemQuantity {
			return nil, apperror.InvalidQuantity()
		}
		for _, code := range in.AppliedCoupons {
			ok, err := s.catalog.CouponValid(ctx, tenantID, code)
			if err != nil {
				return nil, apperror.DatabaseError(err)
			}
			if !ok {
				return nil, apperror.InvalidCoupon()
			}
		}
		assetCode, atomicAmount, decimals, err := s.catalog.ProductUnitPrice(ctx, tenantID, in.ProductID)
		if err != nil {
			return nil, apperror.ProductNotFound()
		}
		unitPrice := money.New(assetCode, atomicAmount, decimals)
		item := domain.CartItem{
			ResourceID:     in.ProductID,
			VariantID:      in.VariantID,
			Quantity:       in.Quantity,
			UnitPrice:      unitPrice,
			AppliedCoupons: in.AppliedCoupons,
		}
		quote.Items = append(quote.Items, item)
		lineTotal := money.New(assetCode, atomicAmount*int64(in.Quantity), decimals)
		if total.AssetCode == "" {
			total = lineTotal
		} else if total.AssetCode != lineTotal.AssetCode {
			return nil, apperror.InvalidField("items")
		} else {
			total = total.Add(lineTotal)
		}
	}
	quote.Total = total

	if err := s.store.StoreCartQuote(ctx, tenantID, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// Reserve takes a per-product hold for every cart item, gated by
// inventory_holds_enabled (spec §4.5).
func (s *Service) Reserve(ctx context.Context, tenantID string, quote *domain.CartQuote) error {
	if !s.cfg.InventoryHoldsEnabled {
		return nil
	}
	for _, item := range quote.Items {
		if _, err := s.store.ReserveInventory(ctx, tenantID, quote.ID, item.ResourceID, item.VariantID, item.Quantity, s.cfg.HoldTTL); err != nil {
			return err
		}
	}
	return nil
}

// MarkPaid applies the single-statement double-payment guard.
func (s *Service) MarkPaid(ctx context.Context, tenantID string, cartID uuid.UUID, wallet string) error {
	return s.store.MarkCartPaid(ctx, tenantID, cartID, wallet)
}

// AggregateAdjustments sums duplicate line items per product into a single
// inventory decrement — critical, per spec §4.5, because the per-row
// inventory lock sees exactly one row per product.
func AggregateAdjustments(items []domain.CartItem, reason, actor string) []ports.InventoryAdjustmentRequest {
	order := make([]string, 0, len(items))
	totals := make(map[string]int)
	for _, it := range items {
		if _, ok := totals[it.ResourceID]; !ok {
			order = append(order, it.ResourceID)
		}
		totals[it.ResourceID] += it.Quantity
	}
	out := make([]ports.InventoryAdjustmentRequest, 0, len(order))
	for _, productID := range order {
		out = append(out, ports.InventoryAdjustmentRequest{
			ProductID: productID,
			Delta:     -totals[productID],
			Reason:    reason,
			Actor:     actor,
		})
	}
	return out
}

// EmitOrderInput carries everything needed to materialize an order from a
// paid cart or a direct product purchase.
type EmitOrderInput struct {
	Source     domain.OrderSource
	PurchaseID string
	ResourceID string
	Items      []domain.CartItem
	Amount     money.Money
	Customer   *domain.OrderCustomer
	Shipping   *domain.OrderShipping
	Actor      string
}

// EmitOrder is try_store_order_with_inventory_adjustments wired with
// aggregated per-product quantities. created=false means the order already
// existed (spec §4.5: do not re-emit notifications on this path).
func (s *Service) EmitOrder(ctx context.Context, tenantID string, in EmitOrderInput) (created bool, order *domain.Order, err error) {
	lineItems := make([]domain.OrderLineItem, 0, len(in.Items))
	for _, it := range in.Items {
		lineItems = append(lineItems, domain.OrderLineItem{
			ProductID: it.ResourceID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	now := time.Now()
	order = &domain.Order{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Source:     in.Source,
		PurchaseID: in.PurchaseID,
		ResourceID: in.ResourceID,
		Status:     domain.OrderStatusPaid,
		Items:      lineItems,
		Amount:     in.Amount,
		Customer:   in.Customer,
		Shipping:   in.Shipping,
		History: []domain.OrderHistoryEntry{
			{Status: domain.OrderStatusPaid, At: now, Note: "order created from paid cart/purchase"},
		},
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusUpdatedAt: now,
	}

	adjustments := AggregateAdjustments(in.Items, "order_fulfillment", in.Actor)
	created, err = s.store.TryStoreOrderWithInventoryAdjustments(ctx, tenantID, order, adjustments)
	if err != nil {
		return false, nil, err
	}
	return created, order, nil
}
