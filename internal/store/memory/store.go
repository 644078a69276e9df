// Package memory implements the volatile, in-process Store (spec §4.1's
// "implemented at least twice" requirement): a single mutex guards a set of
// maps keyed the same way the relational schema would key its rows. It
// exists for tests and for development without a database; semantics
// (atomicity unit, tenant isolation, idempotency) match the relational
// implementation in internal/store/postgres exactly.
package memory

import (
	"context"
	"sync"
	"time"

	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"

	"github.com/google/uuid"
)

type cartKey struct {
	tenant string
	id     uuid.UUID
}

type orderKey struct {
	tenant     string
	source     domain.OrderSource
	purchaseID string
}

type productKey struct {
	tenant string
	id     string
}

// Store is the volatile, in-memory implementation of ports.Store.
type Store struct {
	mu sync.Mutex

	carts         map[cartKey]*domain.CartQuote
	products      map[productKey]*domain.Product
	reservations  map[uuid.UUID]*domain.InventoryReservation
	adjustments   []domain.InventoryAdjustment
	payments      map[string]*domain.PaymentTransaction // key: tenant+"|"+signature
	orders        map[orderKey]*domain.Order
	ordersByID    map[uuid.UUID]*domain.Order
	refundQuotes  map[uuid.UUID]*domain.RefundQuote
	stripeRefunds map[uuid.UUID]*domain.StripeRefundRequest
	giftCards     map[string]*domain.GiftCard // key: tenant+"|"+code
	creditsHolds  map[string]domain.CreditsHold
	nonces        map[uuid.UUID]*domain.AdminNonce
	idempotency   map[string]*domain.IdempotencyKey
	webhookQueue  map[uuid.UUID]*domain.PendingWebhook
	webhookDLQ    map[uuid.UUID]*domain.DlqWebhook
	subs          map[uuid.UUID]*domain.Subscription
	subsByExtID   map[string]uuid.UUID // tenant+"|"+externalID
	subsBySig     map[string]uuid.UUID // tenant+"|"+signature
	tenants       map[string]struct{}
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		carts:         make(map[cartKey]*domain.CartQuote),
		products:      make(map[productKey]*domain.Product),
		reservations:  make(map[uuid.UUID]*domain.InventoryReservation),
		payments:      make(map[string]*domain.PaymentTransaction),
		orders:        make(map[orderKey]*domain.Order),
		ordersByID:    make(map[uuid.UUID]*domain.Order),
		refundQuotes:  make(map[uuid.UUID]*domain.RefundQuote),
		stripeRefunds: make(map[uuid.UUID]*domain.StripeRefundRequest),
		giftCards:     make(map[string]*domain.GiftCard),
		creditsHolds:  make(map[string]domain.CreditsHold),
		nonces:        make(map[uuid.UUID]*domain.AdminNonce),
		idempotency:   make(map[string]*domain.IdempotencyKey),
		webhookQueue:  make(map[uuid.UUID]*domain.PendingWebhook),
		webhookDLQ:    make(map[uuid.UUID]*domain.DlqWebhook),
		subs:          make(map[uuid.UUID]*domain.Subscription),
		subsByExtID:   make(map[string]uuid.UUID),
		subsBySig:     make(map[string]uuid.UUID),
		tenants:       make(map[string]struct{}),
	}
}

var _ ports.Store = (*Store)(nil)

func tenantKey(tenant, id string) string { return tenant + "|" + id }

func (s *Store) noteTenant(tenant string) {
	s.tenants[tenant] = struct{}{}
}

// SeedProduct is a test helper: production deployments read products from
// the catalog repository, but the in-memory Store owns the product rows
// that inventory locking/adjustment touches, so tests seed them directly.
func (s *Store) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[productKey{p.TenantID, p.ID}] = &cp
	s.noteTenant(p.TenantID)
}

// SeedGiftCard is a test helper mirroring SeedProduct for gift card rows.
func (s *Store) SeedGiftCard(tenantID, code string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.giftCards[tenantKey(tenantID, code)] = &domain.GiftCard{TenantID: tenantID, Code: code, Balance: balance}
	s.noteTenant(tenantID)
}

// ---- Cart / order ----

func (s *Store) StoreCartQuote(ctx context.Context, tenantID string, quote *domain.CartQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *quote
	s.carts[cartKey{tenantID, quote.ID}] = &cp
	s.noteTenant(tenantID)
	return nil
}

func (s *Store) GetCartQuote(ctx context.Context, tenantID string, id uuid.UUID) (*domain.CartQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartKey{tenantID, id}]
	if !ok {
		return nil, apperror.CartNotFound()
	}
	cp := *c
	return &cp, nil
}

func (s *Store) MarkCartPaid(ctx context.Context, tenantID string, cartID uuid.UUID, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartKey{tenantID, cartID}]
	if !ok || c.WalletPaidBy != nil {
		return apperror.CartNotFound()
	}
	w := wallet
	c.WalletPaidBy = &w
	return nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productKey{tenantID, productID}]
	if !ok {
		return nil, apperror.ProductNotFound()
	}
	cp := *p
	return &cp, nil
}

func (s *Store) activeReservedQty(tenantID, productID string, excludeCart uuid.UUID, now time.Time) int {
	total := 0
	for _, r := range s.reservations {
		if r.TenantID != tenantID || r.ProductID != productID || r.Status != domain.ReservationActive {
			continue
		}
		if r.CartID == excludeCart {
			continue
		}
		if now.After(r.ExpiresAt) {
			continue
		}
		total += r.Quantity
	}
	return total
}

func (s *Store) ReserveInventory(ctx context.Context, tenantID string, cartID uuid.UUID, productID string, variantID *string, quantity int, holdTTL time.Duration) (*domain.InventoryReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p, ok := s.products[productKey{tenantID, productID}]
	if !ok {
		return nil, apperror.ProductNotFound()
	}
	reserved := s.activeReservedQty(tenantID, productID, cartID, now)
	if reserved+quantity > p.InventoryQuantity && !p.BackorderAllowed {
		return nil, apperror.Conflict("cart_too_large", "insufficient stock to reserve requested quantity")
	}
	r := &domain.InventoryReservation{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		CartID:    cartID,
		Status:    domain.ReservationActive,
		ExpiresAt: now.Add(holdTTL),
		CreatedAt: now,
	}
	s.reservations[r.ID] = r
	cp := *r
	return &cp, nil
}

func (s *Store) ConvertReservations(ctx context.Context, tenantID string, cartID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.TenantID == tenantID && r.CartID == cartID && r.Status == domain.ReservationActive {
			r.Status = domain.ReservationConverted
			n++
		}
	}
	return n, nil
}

func (s *Store) ReleaseExpiredReservations(ctx context.Context, tenantID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.TenantID == tenantID && r.Expired(now) {
			r.Status = domain.ReservationReleased
			n++
		}
	}
	return n, nil
}

func (s *Store) TryRecordPayment(ctx context.Context, tenantID string, tx domain.PaymentTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantKey(tenantID, tx.Signature)
	if _, exists := s.payments[k]; exists {
		return false, nil
	}
	cp := tx
	cp.TenantID = tenantID
	s.payments[k] = &cp
	s.noteTenant(tenantID)
	return true, nil
}

func (s *Store) TryStoreOrderWithInventoryAdjustments(ctx context.Context, tenantID string, order *domain.Order, adjustments []ports.InventoryAdjustmentRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := orderKey{tenantID, order.Source, order.PurchaseID}
	if _, exists := s.orders[ok]; exists {
		return false, nil
	}

	// Validate every adjustment before mutating any product row, so the
	// "transaction" either fully applies or fully fails.
	newQty := make(map[string]int, len(adjustments))
	for _, a := range adjustments {
		p, exists := s.products[productKey{tenantID, a.ProductID}]
		if !exists {
			return false, apperror.ProductNotFound()
		}
		cur, seen := newQty[a.ProductID]
		if !seen {
			cur = p.InventoryQuantity
		}
		next := cur + a.Delta
		if next < 0 && !p.BackorderAllowed {
			return false, apperror.Conflict("cart_too_large", "insufficient stock to fulfill order")
		}
		newQty[a.ProductID] = next
	}

	for _, a := range adjustments {
		p := s.products[productKey{tenantID, a.ProductID}]
		before := p.InventoryQuantity
		after := newQty[a.ProductID]
		p.InventoryQuantity = after
		s.adjustments = append(s.adjustments, domain.InventoryAdjustment{
			ID:             uuid.New(),
			TenantID:       tenantID,
			ProductID:      a.ProductID,
			QuantityBefore: before,
			QuantityAfter:  after,
			Delta:          a.Delta,
			Reason:         a.Reason,
			Actor:          a.Actor,
			CreatedAt:      time.Now(),
		})
	}

	cp := *order
	cp.TenantID = tenantID
	s.orders[ok] = &cp
	s.ordersByID[order.ID] = &cp
	s.noteTenant(tenantID)
	return true, nil
}

func (s *Store) GetOrderByPurchaseID(ctx context.Context, tenantID string, source domain.OrderSource, purchaseID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderKey{tenantID, source, purchaseID}]
	if !ok {
		return nil, apperror.NotFound("order")
	}
	cp := *o
	return &cp, nil
}

func (s *Store) AppendOrderHistory(ctx context.Context, tenantID string, orderID uuid.UUID, status domain.OrderStatus, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.ordersByID[orderID]
	if !ok || o.TenantID != tenantID {
		return apperror.NotFound("order")
	}
	o.Status = status
	now := time.Now()
	o.StatusUpdatedAt = now
	o.UpdatedAt = now
	o.History = append(o.History, domain.OrderHistoryEntry{Status: status, At: now, Note: note})
	return nil
}

// ---- Refunds ----

func (s *Store) StoreRefundQuote(ctx context.Context, tenantID string, q *domain.RefundQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	cp.TenantID = tenantID
	s.refundQuotes[q.ID] = &cp
	s.noteTenant(tenantID)
	return nil
}

func (s *Store) FinalizeRefundQuote(ctx context.Context, tenantID string, id uuid.UUID, signature *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.refundQuotes[id]
	if !ok || q.TenantID != tenantID {
		return apperror.NotFound("refund_quote")
	}
	now := time.Now()
	q.ProcessedAt = &now
	q.Signature = signature
	q.Status = domain.RefundStatusSucceeded
	return nil
}

func (s *Store) StoreStripeRefundRequest(ctx context.Context, tenantID string, r *domain.StripeRefundRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.TenantID = tenantID
	s.stripeRefunds[r.ID] = &cp
	s.noteTenant(tenantID)
	return nil
}

func (s *Store) GetStripeRefundRequestByChargeID(ctx context.Context, tenantID, chargeID string) (*domain.StripeRefundRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.stripeRefunds {
		if r.TenantID == tenantID && r.ChargeID == chargeID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("stripe_refund_request")
}

func (s *Store) UpdateStripeRefundStatus(ctx context.Context, tenantID string, id uuid.UUID, status domain.RefundStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.stripeRefunds[id]
	if !ok || r.TenantID != tenantID {
		return apperror.NotFound("stripe_refund_request")
	}
	r.Status = status
	if status == domain.RefundStatusSucceeded {
		now := time.Now()
		r.ProcessedAt = &now
	}
	return nil
}

// ---- Gift cards / credits ----

func (s *Store) AdjustGiftCardBalanceAtomic(ctx context.Context, tenantID, code string, deduction int64) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gc, ok := s.giftCards[tenantKey(tenantID, code)]
	if !ok || gc.Balance < deduction {
		return nil, nil
	}
	gc.Balance -= deduction
	bal := gc.Balance
	return &bal, nil
}

func (s *Store) StoreCreditsHold(ctx context.Context, hold domain.CreditsHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantKey(hold.TenantID, hold.HoldID)
	existing, ok := s.creditsHolds[k]
	if !ok {
		s.creditsHolds[k] = hold
		s.noteTenant(hold.TenantID)
		return nil
	}
	if !existing.Matches(hold) {
		return apperror.Conflict("invalid_operation", "hold id already bound to a different resource")
	}
	existing.ExpiresAt = hold.ExpiresAt
	s.creditsHolds[k] = existing
	return nil
}

// ---- Nonces ----

func (s *Store) StoreAdminNonce(ctx context.Context, n *domain.AdminNonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.nonces[n.ID] = &cp
	s.noteTenant(n.TenantID)
	return nil
}

func (s *Store) ConsumeNonce(ctx context.Context, tenantID string, nonceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nonces[nonceID]
	if !ok || n.TenantID != tenantID {
		return apperror.NotFound("admin_nonce")
	}
	if n.ConsumedAt != nil {
		return apperror.Conflict("invalid_operation", "nonce already consumed")
	}
	now := time.Now()
	n.ConsumedAt = &now
	return nil
}

// ---- Idempotency keys ----

func (s *Store) TryInsertIdempotencyKey(ctx context.Context, key string, body []byte, statusCode int, headers map[string]string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.idempotency[key]; ok && !existing.Expired(now) {
		return false, nil
	}
	s.idempotency[key] = &domain.IdempotencyKey{
		Key: key, StatusCode: statusCode, Headers: headers, Body: body,
		CachedAt: now, ExpiresAt: now.Add(ttl),
	}
	return true, nil
}

func (s *Store) GetIdempotencyKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (s *Store) StoreIdempotencyKey(ctx context.Context, key string, body []byte, statusCode int, headers map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.idempotency[key] = &domain.IdempotencyKey{
		Key: key, StatusCode: statusCode, Headers: headers, Body: body,
		CachedAt: now, ExpiresAt: now.Add(ttl),
	}
	return nil
}

// ---- Webhooks ----

func (s *Store) EnqueueWebhook(ctx context.Context, w *domain.PendingWebhook) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.webhookQueue[w.ID]; exists {
		return false, nil
	}
	cp := *w
	if cp.Status == "" {
		cp.Status = domain.WebhookStatusPending
	}
	s.webhookQueue[w.ID] = &cp
	s.noteTenant(w.TenantID)
	return true, nil
}

func (s *Store) DequeueWebhooks(ctx context.Context, limit int) ([]domain.PendingWebhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	type candidate struct {
		w *domain.PendingWebhook
	}
	var candidates []candidate
	for _, w := range s.webhookQueue {
		if w.Ready(now) || w.Stuck(now) {
			candidates = append(candidates, candidate{w})
		}
	}
	// FIFO per (created_at, id): spec §5.
	sortCandidatesByCreatedAtID(candidates)
	out := make([]domain.PendingWebhook, 0, limit)
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		c.w.Status = domain.WebhookStatusProcessing
		t := now
		c.w.LastAttemptAt = &t
		out = append(out, *c.w)
	}
	return out, nil
}

func sortCandidatesByCreatedAtID(cs []struct{ w *domain.PendingWebhook }) {
	for i := 1; i < len(cs); i++ {
		j := i
		for j > 0 && less(cs[j], cs[j-1]) {
			cs[j], cs[j-1] = cs[j-1], cs[j]
			j--
		}
	}
}

func less(a, b struct{ w *domain.PendingWebhook }) bool {
	if a.w.CreatedAt.Equal(b.w.CreatedAt) {
		return a.w.ID.String() < b.w.ID.String()
	}
	return a.w.CreatedAt.Before(b.w.CreatedAt)
}

func (s *Store) MarkWebhookSuccess(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.webhookQueue[id]
	if !ok {
		return apperror.NotFound("webhook")
	}
	now := time.Now()
	w.Status = domain.WebhookStatusSuccess
	w.CompletedAt = &now
	return nil
}

func (s *Store) MarkWebhookRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.webhookQueue[id]
	if !ok {
		return apperror.NotFound("webhook")
	}
	w.Status = domain.WebhookStatusPending
	w.Attempts++
	w.NextAttemptAt = &nextAttemptAt
	w.LastError = &lastErr
	return nil
}

func (s *Store) MoveToDLQ(ctx context.Context, id uuid.UUID, finalError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.webhookQueue[id]
	if !ok {
		return apperror.NotFound("webhook")
	}
	s.webhookDLQ[id] = &domain.DlqWebhook{
		ID: w.ID, TenantID: w.TenantID, URL: w.URL, Payload: w.Payload,
		PayloadBytes: w.PayloadBytes, Headers: w.Headers, EventType: w.EventType,
		TotalAttempts: w.Attempts + 1, FinalError: finalError,
		CreatedAt: w.CreatedAt, MovedToDlqAt: time.Now(),
	}
	delete(s.webhookQueue, id)
	return nil
}

func (s *Store) RetryFromDLQ(ctx context.Context, dlqID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.webhookDLQ[dlqID]
	if !ok {
		return apperror.NotFound("dlq_webhook")
	}
	s.webhookQueue[d.ID] = &domain.PendingWebhook{
		ID: d.ID, TenantID: d.TenantID, URL: d.URL, Payload: d.Payload,
		PayloadBytes: d.PayloadBytes, Headers: d.Headers, EventType: d.EventType,
		Status: domain.WebhookStatusPending, Attempts: 0, MaxAttempts: 3,
		CreatedAt: time.Now(),
	}
	delete(s.webhookDLQ, dlqID)
	return nil
}

// ---- Subscriptions ----

func (s *Store) TryStoreSubscriptionByPaymentSignature(ctx context.Context, sub *domain.Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.PaymentSignature == nil {
		return false, apperror.MissingField("payment_signature")
	}
	k := tenantKey(sub.TenantID, *sub.PaymentSignature)
	if _, exists := s.subsBySig[k]; exists {
		return false, nil
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	s.subsBySig[k] = sub.ID
	s.noteTenant(sub.TenantID)
	return true, nil
}

func (s *Store) TryStoreSubscriptionByExternalID(ctx context.Context, sub *domain.Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ExternalSubscriptionID == nil {
		return false, apperror.MissingField("external_subscription_id")
	}
	k := tenantKey(sub.TenantID, *sub.ExternalSubscriptionID)
	if _, exists := s.subsByExtID[k]; exists {
		return false, nil
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	s.subsByExtID[k] = sub.ID
	s.noteTenant(sub.TenantID)
	return true, nil
}

func (s *Store) GetSubscriptionByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.subsByExtID[tenantKey(tenantID, externalID)]
	if !ok {
		return nil, apperror.NotFound("subscription")
	}
	cp := *s.subs[id]
	return &cp, nil
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, tenantID string, id uuid.UUID, status domain.SubscriptionStatus, periodStart, periodEnd *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.TenantID != tenantID {
		return apperror.NotFound("subscription")
	}
	sub.Status = status
	if periodStart != nil {
		sub.CurrentPeriodStart = *periodStart
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	if status == domain.SubscriptionCancelled {
		now := time.Now()
		sub.CancelledAt = &now
	}
	return nil
}

func (s *Store) UpdateSubscriptionStatuses(ctx context.Context, tenantID string, ids []uuid.UUID, status domain.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if sub, ok := s.subs[id]; ok && sub.TenantID == tenantID {
			sub.Status = status
		}
	}
	return nil
}

func (s *Store) ListExpiringLocalSubscriptionsLimited(ctx context.Context, tenantID string, now time.Time, limit int) ([]domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Subscription
	for _, sub := range s.subs {
		if sub.TenantID != tenantID {
			continue
		}
		if sub.Status == domain.SubscriptionCancelled {
			continue
		}
		if sub.ExpiredLocal(now) {
			out = append(out, *sub)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ---- Tenant enumeration ----

func (s *Store) ListTenantIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]string, 0, len(s.tenants))
	for t := range s.tenants {
		all = append(all, t)
	}
	// Simple lexical ordering gives deterministic, cursor-resumable pages.
	for i := 1; i < len(all); i++ {
		j := i
		for j > 0 && all[j] < all[j-1] {
			all[j], all[j-1] = all[j-1], all[j]
			j--
		}
	}
	start := 0
	if cursor != "" {
		for i, t := range all {
			if t > cursor {
				start = i
				break
			}
		}
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	next := ""
	if end < len(all) {
		next = page[len(page)-1]
	}
	return page, next, nil
}
