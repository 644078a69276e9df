package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/schemasql"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store is the relational-backed implementation of ports.Store.
type Store struct {
	pool    Pool
	mapping schemasql.SchemaMapping
}

// New constructs a Store bound to pool, with table names remapped per
// mapping (an empty SchemaMapping{} keeps the defaults).
func New(pool Pool, mapping schemasql.SchemaMapping) *Store {
	return &Store{pool: pool, mapping: schemasql.NewMapping(mapping)}
}

var _ ports.Store = (*Store)(nil)

// q rewrites a query written against the canonical default table names
// into one addressing this deployment's configured table names, via the
// bounded-token replacer of pkg/schemasql — never a naive substring
// replace.
func (s *Store) q(query string) string {
	return s.mapping.Rewrite(query)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ---- Cart / order ----

func (s *Store) StoreCartQuote(ctx context.Context, tenantID string, quote *domain.CartQuote) error {
	items, err := json.Marshal(quote.Items)
	if err != nil {
		return apperror.InternalError(err)
	}
	meta, err := json.Marshal(quote.Metadata)
	if err != nil {
		return apperror.InternalError(err)
	}
	query := s.q(`INSERT INTO cart_quotes (id, tenant_id, items, total_asset_code, total_atomic_amount, total_decimals, metadata, created_at, expires_at, wallet_paid_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			items = EXCLUDED.items, total_asset_code = EXCLUDED.total_asset_code,
			total_atomic_amount = EXCLUDED.total_atomic_amount, total_decimals = EXCLUDED.total_decimals,
			metadata = EXCLUDED.metadata, expires_at = EXCLUDED.expires_at`)
	_, err = s.pool.Exec(ctx, query, quote.ID, tenantID, items,
		quote.Total.AssetCode, quote.Total.AtomicAmount, quote.Total.Decimals,
		meta, quote.CreatedAt, quote.ExpiresAt, quote.WalletPaidBy)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

func (s *Store) GetCartQuote(ctx context.Context, tenantID string, id uuid.UUID) (*domain.CartQuote, error) {
	query := s.q(`SELECT id, tenant_id, items, total_asset_code, total_atomic_amount, total_decimals, metadata, created_at, expires_at, wallet_paid_by
		FROM cart_quotes WHERE tenant_id = $1 AND id = $2`)
	var c domain.CartQuote
	var items, meta []byte
	err := s.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&c.ID, &c.TenantID, &items, &c.Total.AssetCode, &c.Total.AtomicAmount, &c.Total.Decimals,
		&meta, &c.CreatedAt, &c.ExpiresAt, &c.WalletPaidBy)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.CartNotFound()
		}
		return nil, apperror.DatabaseError(err)
	}
	_ = json.Unmarshal(items, &c.Items)
	_ = json.Unmarshal(meta, &c.Metadata)
	return &c, nil
}

// MarkCartPaid is the single-statement double-payment guard of spec §4.5.
func (s *Store) MarkCartPaid(ctx context.Context, tenantID string, cartID uuid.UUID, wallet string) error {
	query := s.q(`UPDATE cart_quotes SET wallet_paid_by = $1 WHERE tenant_id = $2 AND id = $3 AND wallet_paid_by IS NULL`)
	tag, err := s.pool.Exec(ctx, query, wallet, tenantID, cartID)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.CartNotFound()
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error) {
	query := s.q(`SELECT tenant_id, id, inventory_quantity, backorder_allowed FROM products WHERE tenant_id = $1 AND id = $2`)
	var p domain.Product
	err := s.pool.QueryRow(ctx, query, tenantID, productID).Scan(&p.TenantID, &p.ID, &p.InventoryQuantity, &p.BackorderAllowed)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.ProductNotFound()
		}
		return nil, apperror.DatabaseError(err)
	}
	return &p, nil
}

func (s *Store) ReserveInventory(ctx context.Context, tenantID string, cartID uuid.UUID, productID string, variantID *string, quantity int, holdTTL time.Duration) (*domain.InventoryReservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperror.DatabaseError(err)
	}
	defer tx.Rollback(ctx)

	var stock int
	var backorder bool
	lockQ := s.q(`SELECT inventory_quantity, backorder_allowed FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE`)
	if err := tx.QueryRow(ctx, lockQ, tenantID, productID).Scan(&stock, &backorder); err != nil {
		if isNoRows(err) {
			return nil, apperror.ProductNotFound()
		}
		return nil, apperror.DatabaseError(err)
	}

	sumQ := s.q(`SELECT COALESCE(SUM(quantity), 0) FROM inventory_reservations
		WHERE tenant_id = $1 AND product_id = $2 AND status = 'active' AND cart_id <> $3 AND expires_at > now()`)
	var reserved int
	if err := tx.QueryRow(ctx, sumQ, tenantID, productID, cartID).Scan(&reserved); err != nil {
		return nil, apperror.DatabaseError(err)
	}

	if reserved+quantity > stock && !backorder {
		return nil, apperror.Conflict("cart_too_large", "insufficient stock to reserve requested quantity")
	}

	r := &domain.InventoryReservation{
		ID: uuid.New(), TenantID: tenantID, ProductID: productID, VariantID: variantID,
		Quantity: quantity, CartID: cartID, Status: domain.ReservationActive,
		ExpiresAt: time.Now().Add(holdTTL), CreatedAt: time.Now(),
	}
	insQ := s.q(`INSERT INTO inventory_reservations (id, tenant_id, product_id, variant_id, quantity, cart_id, status, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`)
	if _, err := tx.Exec(ctx, insQ, r.ID, r.TenantID, r.ProductID, r.VariantID, r.Quantity, r.CartID, r.Status, r.ExpiresAt, r.CreatedAt); err != nil {
		return nil, apperror.DatabaseError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.DatabaseError(err)
	}
	return r, nil
}

func (s *Store) ConvertReservations(ctx context.Context, tenantID string, cartID uuid.UUID) (int, error) {
	query := s.q(`UPDATE inventory_reservations SET status = 'converted' WHERE tenant_id = $1 AND cart_id = $2 AND status = 'active'`)
	tag, err := s.pool.Exec(ctx, query, tenantID, cartID)
	if err != nil {
		return 0, apperror.DatabaseError(err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ReleaseExpiredReservations(ctx context.Context, tenantID string, now time.Time) (int, error) {
	query := s.q(`UPDATE inventory_reservations SET status = 'released' WHERE tenant_id = $1 AND status = 'active' AND expires_at <= $2`)
	tag, err := s.pool.Exec(ctx, query, tenantID, now)
	if err != nil {
		return 0, apperror.DatabaseError(err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) TryRecordPayment(ctx context.Context, tenantID string, pt domain.PaymentTransaction) (bool, error) {
	meta, err := json.Marshal(pt.Metadata)
	if err != nil {
		return false, apperror.InternalError(err)
	}
	query := s.q(`INSERT INTO payment_transactions (signature, tenant_id, resource_id, wallet, user_id, amount_asset_code, amount_atomic_amount, amount_decimals, created_at, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (tenant_id, signature) DO NOTHING`)
	tag, err := s.pool.Exec(ctx, query, pt.Signature, tenantID, pt.ResourceID, pt.Wallet, pt.UserID,
		pt.Amount.AssetCode, pt.Amount.AtomicAmount, pt.Amount.Decimals, pt.CreatedAt, meta)
	if err != nil {
		return false, apperror.DatabaseError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// TryStoreOrderWithInventoryAdjustments is the one-capability multi-row
// effect of spec §4.1: the order insert and every inventory adjustment
// happen in a single transaction, product rows locked leaves-first.
func (s *Store) TryStoreOrderWithInventoryAdjustments(ctx context.Context, tenantID string, order *domain.Order, adjustments []ports.InventoryAdjustmentRequest) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, apperror.DatabaseError(err)
	}
	defer tx.Rollback(ctx)

	items, _ := json.Marshal(order.Items)
	history, _ := json.Marshal(order.History)
	insQ := s.q(`INSERT INTO orders (id, tenant_id, source, purchase_id, resource_id, status, items, amount_asset_code, amount_atomic_amount, amount_decimals, history, created_at, updated_at, status_updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (tenant_id, source, purchase_id) DO NOTHING`)
	tag, err := tx.Exec(ctx, insQ, order.ID, tenantID, order.Source, order.PurchaseID, order.ResourceID, order.Status,
		items, order.Amount.AssetCode, order.Amount.AtomicAmount, order.Amount.Decimals, history,
		order.CreatedAt, order.UpdatedAt, order.StatusUpdatedAt)
	if err != nil {
		return false, apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		// Order already exists: spec requires committing no changes.
		return false, nil
	}

	lockQ := s.q(`SELECT inventory_quantity, backorder_allowed FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE`)
	updQ := s.q(`UPDATE products SET inventory_quantity = $1 WHERE tenant_id = $2 AND id = $3`)
	adjQ := s.q(`INSERT INTO inventory_adjustments (id, tenant_id, product_id, quantity_before, quantity_after, delta, reason, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`)

	for _, a := range adjustments {
		var before int
		var backorder bool
		if err := tx.QueryRow(ctx, lockQ, tenantID, a.ProductID).Scan(&before, &backorder); err != nil {
			if isNoRows(err) {
				return false, apperror.ProductNotFound()
			}
			return false, apperror.DatabaseError(err)
		}
		after := before + a.Delta
		if after < 0 && !backorder {
			return false, apperror.Conflict("cart_too_large", "insufficient stock to fulfill order")
		}
		if _, err := tx.Exec(ctx, updQ, after, tenantID, a.ProductID); err != nil {
			return false, apperror.DatabaseError(err)
		}
		if _, err := tx.Exec(ctx, adjQ, uuid.New(), tenantID, a.ProductID, before, after, a.Delta, a.Reason, a.Actor, time.Now()); err != nil {
			return false, apperror.DatabaseError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, apperror.DatabaseError(err)
	}
	return true, nil
}

func (s *Store) GetOrderByPurchaseID(ctx context.Context, tenantID string, source domain.OrderSource, purchaseID string) (*domain.Order, error) {
	query := s.q(`SELECT id, tenant_id, source, purchase_id, resource_id, status, items, amount_asset_code, amount_atomic_amount, amount_decimals, history, created_at, updated_at, status_updated_at
		FROM orders WHERE tenant_id = $1 AND source = $2 AND purchase_id = $3`)
	var o domain.Order
	var items, history []byte
	err := s.pool.QueryRow(ctx, query, tenantID, source, purchaseID).Scan(
		&o.ID, &o.TenantID, &o.Source, &o.PurchaseID, &o.ResourceID, &o.Status, &items,
		&o.Amount.AssetCode, &o.Amount.AtomicAmount, &o.Amount.Decimals, &history,
		&o.CreatedAt, &o.UpdatedAt, &o.StatusUpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("order")
		}
		return nil, apperror.DatabaseError(err)
	}
	_ = json.Unmarshal(items, &o.Items)
	_ = json.Unmarshal(history, &o.History)
	return &o, nil
}

func (s *Store) AppendOrderHistory(ctx context.Context, tenantID string, orderID uuid.UUID, status domain.OrderStatus, note string) error {
	entry := domain.OrderHistoryEntry{Status: status, At: time.Now(), Note: note}
	entryJSON, _ := json.Marshal(entry)
	query := s.q(`UPDATE orders SET status = $1, status_updated_at = now(), updated_at = now(),
		history = history || $2::jsonb
		WHERE tenant_id = $3 AND id = $4`)
	tag, err := s.pool.Exec(ctx, query, status, "["+string(entryJSON)+"]", tenantID, orderID)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("order")
	}
	return nil
}

// ---- Refunds ----

func (s *Store) StoreRefundQuote(ctx context.Context, tenantID string, r *domain.RefundQuote) error {
	query := s.q(`INSERT INTO refund_quotes (id, tenant_id, original_purchase_id, amount_asset_code, amount_atomic_amount, amount_decimals, status, created_at, expires_at, processed_by, processed_at, signature)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (tenant_id, id) DO UPDATE SET status = EXCLUDED.status`)
	_, err := s.pool.Exec(ctx, query, r.ID, tenantID, r.OriginalPurchaseID, r.Amount.AssetCode, r.Amount.AtomicAmount, r.Amount.Decimals,
		r.Status, r.CreatedAt, r.ExpiresAt, r.ProcessedBy, r.ProcessedAt, r.Signature)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

func (s *Store) FinalizeRefundQuote(ctx context.Context, tenantID string, id uuid.UUID, signature *string) error {
	query := s.q(`UPDATE refund_quotes SET status = 'succeeded', processed_at = now(), signature = $1 WHERE tenant_id = $2 AND id = $3 AND processed_at IS NULL`)
	tag, err := s.pool.Exec(ctx, query, signature, tenantID, id)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("refund_quote")
	}
	return nil
}

func (s *Store) StoreStripeRefundRequest(ctx context.Context, tenantID string, r *domain.StripeRefundRequest) error {
	query := s.q(`INSERT INTO stripe_refund_requests (id, tenant_id, original_purchase_id, charge_id, amount_asset_code, amount_atomic_amount, amount_decimals, status, created_at, expires_at, processed_by, processed_at, signature)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (tenant_id, id) DO UPDATE SET status = EXCLUDED.status`)
	_, err := s.pool.Exec(ctx, query, r.ID, tenantID, r.OriginalPurchaseID, r.ChargeID, r.Amount.AssetCode, r.Amount.AtomicAmount, r.Amount.Decimals,
		r.Status, r.CreatedAt, r.ExpiresAt, r.ProcessedBy, r.ProcessedAt, r.Signature)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

func (s *Store) GetStripeRefundRequestByChargeID(ctx context.Context, tenantID, chargeID string) (*domain.StripeRefundRequest, error) {
	query := s.q(`SELECT id, tenant_id, original_purchase_id, charge_id, amount_asset_code, amount_atomic_amount, amount_decimals, status, created_at, expires_at, processed_by, processed_at, signature
		FROM stripe_refund_requests WHERE tenant_id = $1 AND charge_id = $2`)
	var r domain.StripeRefundRequest
	err := s.pool.QueryRow(ctx, query, tenantID, chargeID).Scan(&r.ID, &r.TenantID, &r.OriginalPurchaseID, &r.ChargeID,
		&r.Amount.AssetCode, &r.Amount.AtomicAmount, &r.Amount.Decimals, &r.Status, &r.CreatedAt, &r.ExpiresAt,
		&r.ProcessedBy, &r.ProcessedAt, &r.Signature)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("stripe_refund_request")
		}
		return nil, apperror.DatabaseError(err)
	}
	return &r, nil
}

func (s *Store) UpdateStripeRefundStatus(ctx context.Context, tenantID string, id uuid.UUID, status domain.RefundStatus) error {
	query := s.q(`UPDATE stripe_refund_requests SET status = $1, processed_at = CASE WHEN $1 = 'succeeded' THEN now() ELSE processed_at END
		WHERE tenant_id = $2 AND id = $3`)
	tag, err := s.pool.Exec(ctx, query, status, tenantID, id)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("stripe_refund_request")
	}
	return nil
}

// ---- Gift cards / credits ----

// AdjustGiftCardBalanceAtomic is a single-statement conditional update;
// no row returned means insufficient funds, never a race (spec §4.1, §8).
func (s *Store) AdjustGiftCardBalanceAtomic(ctx context.Context, tenantID, code string, deduction int64) (*int64, error) {
	query := s.q(`UPDATE gift_cards SET balance = balance - $1
		WHERE tenant_id = $2 AND code = $3 AND balance >= $1
		RETURNING balance`)
	var balance int64
	err := s.pool.QueryRow(ctx, query, deduction, tenantID, code).Scan(&balance)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, apperror.DatabaseError(err)
	}
	return &balance, nil
}

func (s *Store) StoreCreditsHold(ctx context.Context, hold domain.CreditsHold) error {
	query := s.q(`INSERT INTO credits_holds (tenant_id, hold_id, user_id, resource_id, amount, amount_asset, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tenant_id, hold_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE credits_holds.user_id = EXCLUDED.user_id
			AND credits_holds.resource_id = EXCLUDED.resource_id
			AND credits_holds.amount = EXCLUDED.amount
			AND credits_holds.amount_asset = EXCLUDED.amount_asset`)
	tag, err := s.pool.Exec(ctx, query, hold.TenantID, hold.HoldID, hold.UserID, hold.ResourceID, hold.Amount, hold.AmountAsset, hold.ExpiresAt)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		// Row existed but the WHERE clause excluded it from the update:
		// the hold id is already bound to a different tuple.
		return apperror.Conflict("invalid_operation", "hold id already bound to a different resource")
	}
	return nil
}

// ---- Nonces ----

func (s *Store) StoreAdminNonce(ctx context.Context, n *domain.AdminNonce) error {
	query := s.q(`INSERT INTO admin_nonces (id, tenant_id, purpose, created_at, expires_at, consumed_at)
		VALUES ($1,$2,$3,$4,$5,$6)`)
	_, err := s.pool.Exec(ctx, query, n.ID, n.TenantID, n.Purpose, n.CreatedAt, n.ExpiresAt, n.ConsumedAt)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

// ConsumeNonce distinguishes NotFound (nonce does not exist) from Conflict
// (already consumed, a replay attempt) per spec §4.1 and §8.
func (s *Store) ConsumeNonce(ctx context.Context, tenantID string, nonceID uuid.UUID) error {
	query := s.q(`UPDATE admin_nonces SET consumed_at = now() WHERE tenant_id = $1 AND id = $2 AND consumed_at IS NULL`)
	tag, err := s.pool.Exec(ctx, query, tenantID, nonceID)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	existsQ := s.q(`SELECT 1 FROM admin_nonces WHERE tenant_id = $1 AND id = $2`)
	var one int
	err = s.pool.QueryRow(ctx, existsQ, tenantID, nonceID).Scan(&one)
	if isNoRows(err) {
		return apperror.NotFound("admin_nonce")
	}
	if err != nil {
		return apperror.DatabaseError(err)
	}
	return apperror.Conflict("invalid_operation", "nonce already consumed")
}

// ---- Idempotency keys ----

func (s *Store) TryInsertIdempotencyKey(ctx context.Context, key string, body []byte, statusCode int, headers map[string]string, ttl time.Duration) (bool, error) {
	h, _ := json.Marshal(headers)
	now := time.Now()
	query := s.q(`INSERT INTO idempotency_keys (key, status_code, headers, body, cached_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET status_code = EXCLUDED.status_code, headers = EXCLUDED.headers,
			body = EXCLUDED.body, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at < $5`)
	tag, err := s.pool.Exec(ctx, query, key, statusCode, h, body, now, now.Add(ttl))
	if err != nil {
		return false, apperror.DatabaseError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetIdempotencyKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	query := s.q(`SELECT key, status_code, headers, body, cached_at, expires_at FROM idempotency_keys WHERE key = $1`)
	var k domain.IdempotencyKey
	var h []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&k.Key, &k.StatusCode, &h, &k.Body, &k.CachedAt, &k.ExpiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, apperror.DatabaseError(err)
	}
	_ = json.Unmarshal(h, &k.Headers)
	return &k, nil
}

func (s *Store) StoreIdempotencyKey(ctx context.Context, key string, body []byte, statusCode int, headers map[string]string, ttl time.Duration) error {
	h, _ := json.Marshal(headers)
	now := time.Now()
	query := s.q(`INSERT INTO idempotency_keys (key, status_code, headers, body, cached_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET status_code = EXCLUDED.status_code, headers = EXCLUDED.headers,
			body = EXCLUDED.body, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`)
	_, err := s.pool.Exec(ctx, query, key, statusCode, h, body, now, now.Add(ttl))
	if err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

// ---- Webhooks ----

func (s *Store) EnqueueWebhook(ctx context.Context, w *domain.PendingWebhook) (bool, error) {
	payload, _ := json.Marshal(w.Payload)
	headers, _ := json.Marshal(w.Headers)
	query := s.q(`INSERT INTO webhook_queue (id, tenant_id, url, payload, payload_bytes, headers, event_type, status, attempts, max_attempts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO NOTHING`)
	tag, err := s.pool.Exec(ctx, query, w.ID, w.TenantID, w.URL, payload, w.PayloadBytes, headers, w.EventType,
		domain.WebhookStatusPending, 0, w.MaxAttempts, w.CreatedAt)
	if err != nil {
		return false, apperror.DatabaseError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// DequeueWebhooks implements spec §4.1's compound crash-recovery predicate:
// pending-and-due, or processing-and-stuck-for-5min, FIFO, SKIP LOCKED.
func (s *Store) DequeueWebhooks(ctx context.Context, limit int) ([]domain.PendingWebhook, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperror.DatabaseError(err)
	}
	defer tx.Rollback(ctx)

	query := s.q(`UPDATE webhook_queue SET status = 'processing', last_attempt_at = now()
		WHERE id IN (
			SELECT id FROM webhook_queue
			WHERE (status = 'pending' AND (next_attempt_at IS NULL OR next_attempt_at <= now()))
			   OR (status = 'processing' AND last_attempt_at < now() - interval '5 minutes')
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, tenant_id, url, payload, payload_bytes, headers, event_type, status, attempts, max_attempts, last_error, last_attempt_at, next_attempt_at, created_at, completed_at`)

	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, apperror.DatabaseError(err)
	}
	var out []domain.PendingWebhook
	for rows.Next() {
		var w domain.PendingWebhook
		var payload, headers []byte
		if err := rows.Scan(&w.ID, &w.TenantID, &w.URL, &payload, &w.PayloadBytes, &headers, &w.EventType,
			&w.Status, &w.Attempts, &w.MaxAttempts, &w.LastError, &w.LastAttemptAt, &w.NextAttemptAt, &w.CreatedAt, &w.CompletedAt); err != nil {
			rows.Close()
			return nil, apperror.DatabaseError(err)
		}
		_ = json.Unmarshal(payload, &w.Payload)
		_ = json.Unmarshal(headers, &w.Headers)
		out = append(out, w)
	}
	rows.Close()
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.DatabaseError(err)
	}
	return out, nil
}

func (s *Store) MarkWebhookSuccess(ctx context.Context, id uuid.UUID) error {
	query := s.q(`UPDATE webhook_queue SET status = 'success', completed_at = now() WHERE id = $1`)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("webhook")
	}
	return nil
}

func (s *Store) MarkWebhookRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, lastErr string) error {
	query := s.q(`UPDATE webhook_queue SET status = 'pending', attempts = attempts + 1, next_attempt_at = $1, last_error = $2 WHERE id = $3`)
	tag, err := s.pool.Exec(ctx, query, nextAttemptAt, lastErr, id)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("webhook")
	}
	return nil
}

// MoveToDLQ is required to be one atomic step (insert into DLQ, delete from
// queue); otherwise a crash between the two duplicates the webhook.
func (s *Store) MoveToDLQ(ctx context.Context, id uuid.UUID, finalError string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	defer tx.Rollback(ctx)

	insQ := s.q(`INSERT INTO webhook_dlq (id, tenant_id, url, payload, payload_bytes, headers, event_type, total_attempts, final_error, created_at, moved_to_dlq_at)
		SELECT id, tenant_id, url, payload, payload_bytes, headers, event_type, attempts + 1, $2, created_at, now()
		FROM webhook_queue WHERE id = $1`)
	tag, err := tx.Exec(ctx, insQ, id, finalError)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("webhook")
	}
	delQ := s.q(`DELETE FROM webhook_queue WHERE id = $1`)
	if _, err := tx.Exec(ctx, delQ, id); err != nil {
		return apperror.DatabaseError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

func (s *Store) RetryFromDLQ(ctx context.Context, dlqID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	defer tx.Rollback(ctx)

	insQ := s.q(`INSERT INTO webhook_queue (id, tenant_id, url, payload, payload_bytes, headers, event_type, status, attempts, max_attempts, created_at)
		SELECT id, tenant_id, url, payload, payload_bytes, headers, event_type, 'pending', 0, 3, now()
		FROM webhook_dlq WHERE id = $1`)
	tag, err := tx.Exec(ctx, insQ, dlqID)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("dlq_webhook")
	}
	delQ := s.q(`DELETE FROM webhook_dlq WHERE id = $1`)
	if _, err := tx.Exec(ctx, delQ, dlqID); err != nil {
		return apperror.DatabaseError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

// ---- Subscriptions ----

func (s *Store) insertSubscription(ctx context.Context, sub *domain.Subscription, conflictTarget string) (bool, error) {
	meta, _ := json.Marshal(sub.Metadata)
	query := s.q(fmt.Sprintf(`INSERT INTO subscriptions (id, tenant_id, product_id, plan_id, wallet, user_id, external_customer_id, external_subscription_id,
			payment_method, billing_period, billing_interval, status, current_period_start, current_period_end, trial_end,
			cancelled_at, cancel_at_period_end, payment_signature, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (%s) DO NOTHING`, conflictTarget))
	tag, err := s.pool.Exec(ctx, query, sub.ID, sub.TenantID, sub.ProductID, sub.PlanID, sub.Wallet, sub.UserID,
		sub.ExternalCustomerID, sub.ExternalSubscriptionID, sub.PaymentMethod, sub.BillingPeriod, sub.BillingInterval,
		sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEnd, sub.CancelledAt, sub.CancelAtPeriodEnd,
		sub.PaymentSignature, meta)
	if err != nil {
		return false, apperror.DatabaseError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) TryStoreSubscriptionByPaymentSignature(ctx context.Context, sub *domain.Subscription) (bool, error) {
	if sub.PaymentSignature == nil {
		return false, apperror.MissingField("payment_signature")
	}
	return s.insertSubscription(ctx, sub, "tenant_id, payment_signature")
}

func (s *Store) TryStoreSubscriptionByExternalID(ctx context.Context, sub *domain.Subscription) (bool, error) {
	if sub.ExternalSubscriptionID == nil {
		return false, apperror.MissingField("external_subscription_id")
	}
	return s.insertSubscription(ctx, sub, "tenant_id, external_subscription_id")
}

func (s *Store) GetSubscriptionByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Subscription, error) {
	query := s.q(`SELECT id, tenant_id, product_id, plan_id, wallet, user_id, external_customer_id, external_subscription_id,
			payment_method, billing_period, billing_interval, status, current_period_start, current_period_end, trial_end,
			cancelled_at, cancel_at_period_end, payment_signature, metadata
		FROM subscriptions WHERE tenant_id = $1 AND external_subscription_id = $2`)
	var sub domain.Subscription
	var meta []byte
	err := s.pool.QueryRow(ctx, query, tenantID, externalID).Scan(&sub.ID, &sub.TenantID, &sub.ProductID, &sub.PlanID,
		&sub.Wallet, &sub.UserID, &sub.ExternalCustomerID, &sub.ExternalSubscriptionID, &sub.PaymentMethod,
		&sub.BillingPeriod, &sub.BillingInterval, &sub.Status, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.TrialEnd, &sub.CancelledAt, &sub.CancelAtPeriodEnd, &sub.PaymentSignature, &meta)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("subscription")
		}
		return nil, apperror.DatabaseError(err)
	}
	_ = json.Unmarshal(meta, &sub.Metadata)
	return &sub, nil
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, tenantID string, id uuid.UUID, status domain.SubscriptionStatus, periodStart, periodEnd *time.Time) error {
	query := s.q(`UPDATE subscriptions SET status = $1,
			current_period_start = COALESCE($2, current_period_start),
			current_period_end = COALESCE($3, current_period_end),
			cancelled_at = CASE WHEN $1 = 'cancelled' THEN now() ELSE cancelled_at END
		WHERE tenant_id = $4 AND id = $5`)
	tag, err := s.pool.Exec(ctx, query, status, periodStart, periodEnd, tenantID, id)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("subscription")
	}
	return nil
}

func (s *Store) UpdateSubscriptionStatuses(ctx context.Context, tenantID string, ids []uuid.UUID, status domain.SubscriptionStatus) error {
	query := s.q(`UPDATE subscriptions SET status = $1 WHERE tenant_id = $2 AND id = ANY($3)`)
	_, err := s.pool.Exec(ctx, query, status, tenantID, ids)
	if err != nil {
		return apperror.DatabaseError(err)
	}
	return nil
}

func (s *Store) ListExpiringLocalSubscriptionsLimited(ctx context.Context, tenantID string, now time.Time, limit int) ([]domain.Subscription, error) {
	query := s.q(`SELECT id, tenant_id, product_id, plan_id, wallet, user_id, external_customer_id, external_subscription_id,
			payment_method, billing_period, billing_interval, status, current_period_start, current_period_end, trial_end,
			cancelled_at, cancel_at_period_end, payment_signature, metadata
		FROM subscriptions
		WHERE tenant_id = $1 AND payment_method <> 'card' AND status <> 'cancelled' AND current_period_end <= $2
		ORDER BY current_period_end
		LIMIT $3`)
	rows, err := s.pool.Query(ctx, query, tenantID, now, limit)
	if err != nil {
		return nil, apperror.DatabaseError(err)
	}
	defer rows.Close()
	var out []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var meta []byte
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.ProductID, &sub.PlanID, &sub.Wallet, &sub.UserID,
			&sub.ExternalCustomerID, &sub.ExternalSubscriptionID, &sub.PaymentMethod, &sub.BillingPeriod,
			&sub.BillingInterval, &sub.Status, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.TrialEnd,
			&sub.CancelledAt, &sub.CancelAtPeriodEnd, &sub.PaymentSignature, &meta); err != nil {
			return nil, apperror.DatabaseError(err)
		}
		_ = json.Unmarshal(meta, &sub.Metadata)
		out = append(out, sub)
	}
	return out, nil
}

// ---- Tenant enumeration ----

// ListTenantIDs pages through tenants in batches of at most 1000 (spec
// §4.1) via a keyset cursor over a distinct tenant_id projection.
func (s *Store) ListTenantIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	query := s.q(`SELECT DISTINCT tenant_id FROM (
			SELECT tenant_id FROM cart_quotes
			UNION SELECT tenant_id FROM orders
			UNION SELECT tenant_id FROM subscriptions
		) known_tenants
		WHERE tenant_id > $1
		ORDER BY tenant_id
		LIMIT $2`)
	rows, err := s.pool.Query(ctx, query, cursor, limit)
	if err != nil {
		return nil, "", apperror.DatabaseError(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, "", apperror.DatabaseError(err)
		}
		out = append(out, t)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1]
	}
	return out, next, nil
}

var _ ports.ConfigReader = (*Store)(nil)

// LoadConfigTable implements the database-table configuration loading mode
// of spec §4.7: projects a tenant's rows from a flat key/value table into
// the dotted-path shape config.Load's file-plus-environment mode expects.
func (s *Store) LoadConfigTable(ctx context.Context, tenantID string) (map[string]string, error) {
	query := s.q(`SELECT key, value FROM config_entries WHERE tenant_id = $1`)
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, apperror.DatabaseError(err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, apperror.DatabaseError(err)
		}
		out[key] = value
	}
	return out, nil
}
