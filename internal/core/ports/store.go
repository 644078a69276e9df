// Package ports defines the boundaries the core depends on: the storage
// contract (C1) and the collaborators C2-C6 require (on-chain RPC, card
// processor client, catalog reads). Two concrete Store implementations
// exist: internal/store/memory (volatile, for tests) and
// internal/store/postgres (relational, for production) — per spec §4.1
// both must satisfy this interface identically.
package ports

import (
	"context"
	"time"

	"paywall-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// InventoryAdjustmentRequest is one line of the multi-row effect
// try_store_order_with_inventory_adjustments performs atomically: decrement
// (or increment) a product's stock and append an audit row, all inside the
// same transaction as the order insert.
type InventoryAdjustmentRequest struct {
	ProductID string
	Delta     int // negative to decrement stock
	Reason    string
	Actor     string
}

// Store is the tenant-scoped transactional capability set of spec §4.1.
// Every capability takes tenant_id as a leading argument. Capabilities
// named Try* return (inserted bool, err error): false means "already
// processed", which callers must treat as success, not failure.
// Capabilities named Store* upsert.
type Store interface {
	// ---- Cart / order (C5) ----

	StoreCartQuote(ctx context.Context, tenantID string, quote *domain.CartQuote) error
	GetCartQuote(ctx context.Context, tenantID string, id uuid.UUID) (*domain.CartQuote, error)
	// MarkCartPaid is UPDATE ... WHERE wallet_paid_by IS NULL, the
	// single-statement double-payment guard of spec §4.5. It returns a
	// NotFound AppError if the cart does not exist or is already paid by
	// any wallet (including the same wallet retrying).
	MarkCartPaid(ctx context.Context, tenantID string, cartID uuid.UUID, wallet string) error

	GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error)

	// ReserveInventory takes FOR UPDATE on the product row, sums existing
	// active reservations for the product excluding cartID, and fails
	// Conflict if reserved+qty exceeds stock and backorder is not allowed.
	ReserveInventory(ctx context.Context, tenantID string, cartID uuid.UUID, productID string, variantID *string, quantity int, holdTTL time.Duration) (*domain.InventoryReservation, error)
	// ConvertReservations marks every active reservation for cartID as
	// converted; idempotent (a second call is a no-op returning 0).
	ConvertReservations(ctx context.Context, tenantID string, cartID uuid.UUID) (int, error)
	// ReleaseExpiredReservations transitions expired active reservations to
	// released; supplements the distilled spec's passing cleanup-job
	// mention with the concrete original_source capability.
	ReleaseExpiredReservations(ctx context.Context, tenantID string, now time.Time) (int, error)

	TryRecordPayment(ctx context.Context, tenantID string, tx domain.PaymentTransaction) (bool, error)

	// TryStoreOrderWithInventoryAdjustments is the one-capability multi-row
	// effect of spec §4.1: insert the order on-conflict-do-nothing keyed by
	// (tenant_id, source, purchase_id); if newly inserted, apply every
	// adjustment under a per-product FOR UPDATE lock, rolling the whole
	// transaction back with Conflict if any adjustment would drive stock
	// negative without backorder. Returns false (no changes) if the order
	// already existed.
	TryStoreOrderWithInventoryAdjustments(ctx context.Context, tenantID string, order *domain.Order, adjustments []InventoryAdjustmentRequest) (bool, error)

	GetOrderByPurchaseID(ctx context.Context, tenantID string, source domain.OrderSource, purchaseID string) (*domain.Order, error)
	AppendOrderHistory(ctx context.Context, tenantID string, orderID uuid.UUID, status domain.OrderStatus, note string) error

	// ---- Refunds ----

	StoreRefundQuote(ctx context.Context, tenantID string, q *domain.RefundQuote) error
	FinalizeRefundQuote(ctx context.Context, tenantID string, id uuid.UUID, signature *string) error
	StoreStripeRefundRequest(ctx context.Context, tenantID string, r *domain.StripeRefundRequest) error
	GetStripeRefundRequestByChargeID(ctx context.Context, tenantID, chargeID string) (*domain.StripeRefundRequest, error)
	UpdateStripeRefundStatus(ctx context.Context, tenantID string, id uuid.UUID, status domain.RefundStatus) error

	// ---- Gift cards / credits ----

	// AdjustGiftCardBalanceAtomic is a single-statement conditional update;
	// nil means insufficient funds, never a race (spec §4.1, §8).
	AdjustGiftCardBalanceAtomic(ctx context.Context, tenantID, code string, deduction int64) (*int64, error)
	// StoreCreditsHold is idempotent on (tenant_id, hold_id); it only
	// refreshes expires_at when the full tuple matches the existing row,
	// otherwise it fails Conflict (hold-id reuse against a different
	// binding).
	StoreCreditsHold(ctx context.Context, hold domain.CreditsHold) error

	// ---- Nonces ----

	StoreAdminNonce(ctx context.Context, n *domain.AdminNonce) error
	// ConsumeNonce is UPDATE ... WHERE consumed_at IS NULL; when
	// rows_affected == 0 it distinguishes NotFound (nonce does not exist)
	// from Conflict (already consumed, a replay attempt).
	ConsumeNonce(ctx context.Context, tenantID string, nonceID uuid.UUID) error

	// ---- Idempotency keys ----

	// TryInsertIdempotencyKey inserts a claim if absent; true means this
	// caller owns the claim and must eventually release (overwrite) it.
	TryInsertIdempotencyKey(ctx context.Context, key string, body []byte, statusCode int, headers map[string]string, ttl time.Duration) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	// StoreIdempotencyKey overwrites the claim with a final response and
	// TTL (the "complete the claim" step of spec §4.3 step 5).
	StoreIdempotencyKey(ctx context.Context, key string, body []byte, statusCode int, headers map[string]string, ttl time.Duration) error

	// ---- Webhooks (C4) ----

	EnqueueWebhook(ctx context.Context, w *domain.PendingWebhook) (bool, error)
	// DequeueWebhooks atomically claims up to limit ready rows (pending and
	// due, or processing and stuck) and marks them processing.
	DequeueWebhooks(ctx context.Context, limit int) ([]domain.PendingWebhook, error)
	MarkWebhookSuccess(ctx context.Context, id uuid.UUID) error
	MarkWebhookRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, lastErr string) error
	// MoveToDLQ is one atomic step: insert into DLQ, delete from queue.
	MoveToDLQ(ctx context.Context, id uuid.UUID, finalError string) error
	// RetryFromDLQ is the inverse: recreate a fresh pending row with
	// attempts=0, also transactional.
	RetryFromDLQ(ctx context.Context, dlqID uuid.UUID) error

	// ---- Subscriptions (C6) ----

	TryStoreSubscriptionByPaymentSignature(ctx context.Context, s *domain.Subscription) (bool, error)
	TryStoreSubscriptionByExternalID(ctx context.Context, s *domain.Subscription) (bool, error)
	GetSubscriptionByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, tenantID string, id uuid.UUID, status domain.SubscriptionStatus, periodStart, periodEnd *time.Time) error
	UpdateSubscriptionStatuses(ctx context.Context, tenantID string, ids []uuid.UUID, status domain.SubscriptionStatus) error
	ListExpiringLocalSubscriptionsLimited(ctx context.Context, tenantID string, now time.Time, limit int) ([]domain.Subscription, error)

	// ---- Tenant enumeration ----

	// ListTenantIDs pages through known tenants in batches of at most 1000
	// (spec §4.1, and the "known ceiling, not a paging contract" note of
	// §9); cursor is opaque and empty on the first call.
	ListTenantIDs(ctx context.Context, cursor string, limit int) (ids []string, nextCursor string, err error)
}
