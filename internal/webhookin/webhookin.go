// Package webhookin implements the inbound webhook processor (C3): verifies
// the card processor's signature, deduplicates via a claim-then-complete
// idempotency key, and dispatches by event type.
package webhookin

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"paywall-gateway/internal/cart"
	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/internal/webhookout"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/idemcache"
	"paywall-gateway/pkg/metrics"
	"paywall-gateway/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Config mirrors the stripe.* knobs of spec §6.5.
type Config struct {
	SigningSecret     string
	ProcessingTTL     time.Duration
	CompletedTTL      time.Duration
	DefaultTenantID    string // dev/test only
	RequireTenantID    bool
}

func DefaultConfig() Config {
	return Config{ProcessingTTL: 2 * time.Minute, CompletedTTL: 24 * time.Hour, RequireTenantID: true}
}

// Processor wires the storage contract and cart service into the inbound
// webhook pipeline.
type Processor struct {
	store ports.Store
	cart  *cart.Service
	out   *webhookout.Dispatcher
	cfg   Config
	log   zerolog.Logger
	cache *idemcache.Client // optional L1 dedup cache; nil disables it
}

func New(store ports.Store, cartSvc *cart.Service, out *webhookout.Dispatcher, cfg Config, log zerolog.Logger) *Processor {
	return &Processor{store: store, cart: cartSvc, out: out, cfg: cfg, log: log}
}

// WithCache attaches the Redis-backed L1 dedup cache (nil is a valid,
// no-op value, matching the teacher's optional-cache wiring).
func (p *Processor) WithCache(cache *idemcache.Client) *Processor {
	p.cache = cache
	return p
}

// Handle is the full protocol of spec §4.3: verify, claim, dispatch, complete.
func (p *Processor) Handle(ctx context.Context, body []byte, sigHeader string) (statusCode int, respBody []byte, err error) {
	event, err := webhook.ConstructEvent(body, sigHeader, p.cfg.SigningSecret)
	if err != nil {
		return 0, nil, apperror.InvalidSignature()
	}

	claimKey := "stripe_webhook:" + event.ID
	if !p.cache.Claim(ctx, claimKey, p.cfg.ProcessingTTL) {
		// The L1 cache already saw this event id within the TTL window;
		// skip the database round-trip entirely.
		metrics.PaymentDedupHits.WithLabelValues("card").Inc()
		return 200, []byte(`{"status":"already_processing"}`), nil
	}

	claimed, err := p.store.TryInsertIdempotencyKey(ctx, claimKey, []byte("in_progress"), 0, nil, p.cfg.ProcessingTTL)
	if err != nil {
		return 0, nil, err
	}
	if !claimed {
		// Another worker already owns this event; the processor must not
		// retry, so we report success without redoing any work.
		metrics.PaymentDedupHits.WithLabelValues("card").Inc()
		return 200, []byte(`{"status":"already_processing"}`), nil
	}

	result, dispatchErr := p.dispatch(ctx, &event)

	respPayload := map[string]interface{}{"status": "ok"}
	if dispatchErr != nil {
		respPayload["status"] = "error"
		respPayload["error"] = dispatchErr.Error()
	} else if result != "" {
		respPayload["result"] = result
	}
	finalBody, _ := json.Marshal(respPayload)

	// Complete the claim regardless of dispatch outcome: releasing it would
	// open a double-processing window (spec §4.3 step 5).
	if err := p.store.StoreIdempotencyKey(ctx, claimKey, finalBody, 200, nil, p.cfg.CompletedTTL); err != nil {
		p.log.Warn().Err(err).Str("event_id", event.ID).Msg("webhookin: failed to complete idempotency claim")
	}

	return 200, finalBody, nil
}

func (p *Processor) dispatch(ctx context.Context, event *stripe.Event) (string, error) {
	switch event.Type {
	case "checkout.session.completed":
		return "order_processed", p.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		return "subscription_updated", p.handleSubscriptionEvent(ctx, event)
	case "charge.refunded":
		return "refund_processed", p.handleChargeRefunded(ctx, event)
	default:
		return "ignored", nil
	}
}

type checkoutSessionObject struct {
	ID          string            `json:"id"`
	AmountTotal int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	ShippingDetails *struct {
		Name    string `json:"name"`
		Address *struct {
			Line1 string `json:"line1"`
		} `json:"address"`
	} `json:"shipping_details"`
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session checkoutSessionObject
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return apperror.InvalidField("data.object")
	}

	tenantID := session.Metadata["tenant_id"]
	if tenantID == "" {
		if p.cfg.RequireTenantID {
			return apperror.MissingField("metadata.tenant_id")
		}
		tenantID = p.cfg.DefaultTenantID
	}

	resourceID := session.Metadata["resource_id"]
	if resourceID == "" {
		return apperror.MissingField("metadata.resource_id")
	}

	userID := (*string)(nil)
	if session.Metadata["user_id_trusted"] == "true" && session.Metadata["user_id"] != "" {
		uid := session.Metadata["user_id"]
		userID = &uid
	}

	purchaseID := session.ID
	signature := "stripe:" + session.ID

	var customer *domain.OrderCustomer
	if session.CustomerDetails != nil {
		customer = &domain.OrderCustomer{Email: session.CustomerDetails.Email, Name: session.CustomerDetails.Name}
	}
	var shipping *domain.OrderShipping
	if session.ShippingDetails != nil {
		addr := ""
		if session.ShippingDetails.Address != nil {
			addr = session.ShippingDetails.Address.Line1
		}
		shipping = &domain.OrderShipping{Address: addr, Name: session.ShippingDetails.Name}
	}

	amount := money.New(strings.ToUpper(session.Currency), session.AmountTotal, 2)

	var items []domain.CartItem
	var cartID *domain.CartQuote
	if strings.HasPrefix(resourceID, "cart:") {
		cartUUID, parseErr := uuid.Parse(strings.TrimPrefix(resourceID, "cart:"))
		if parseErr != nil {
			return apperror.InvalidField("resource_id")
		}
		q, err := p.store.GetCartQuote(ctx, tenantID, cartUUID)
		if err != nil {
			return err
		}
		cartID = q
		items = q.Items
	} else {
		items = []domain.CartItem{{ResourceID: resourceID, Quantity: 1, UnitPrice: amount}}
	}

	created, _, err := p.cart.EmitOrder(ctx, tenantID, cart.EmitOrderInput{
		Source:     domain.OrderSourceStripe,
		PurchaseID: purchaseID,
		ResourceID: resourceID,
		Items:      items,
		Amount:     amount,
		Customer:   customer,
		Shipping:   shipping,
		Actor:      "webhookin:checkout.session.completed",
	})
	if err != nil {
		return err
	}
	if !created {
		// Duplicate delivery: do not re-emit notifications (spec §4.3 step 4).
		return nil
	}

	if _, err := p.store.TryRecordPayment(ctx, tenantID, domain.PaymentTransaction{
		Signature: signature, TenantID: tenantID, ResourceID: resourceID,
		Wallet: "stripe", UserID: userID, Amount: amount, CreatedAt: time.Now(),
	}); err != nil {
		p.log.Warn().Err(err).Str("signature", signature).Msg("webhookin: failed to record payment")
	}

	if cartID != nil {
		if _, err := p.store.ConvertReservations(ctx, tenantID, cartID.ID); err != nil {
			p.log.Warn().Err(err).Msg("webhookin: failed to convert reservations")
		}
	}

	_, err = p.out.Enqueue(ctx, webhookout.EnqueueEventInput{
		TenantID: tenantID, EventType: "payment.succeeded",
		Payload: map[string]interface{}{"purchase_id": purchaseID, "resource_id": resourceID, "amount": amount.String()},
	})
	return err
}

func (p *Processor) handleSubscriptionEvent(ctx context.Context, event *stripe.Event) error {
	var sub struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return apperror.InvalidField("data.object")
	}
	tenantID := sub.Metadata["tenant_id"]
	if tenantID == "" {
		tenantID = p.cfg.DefaultTenantID
	}
	existing, err := p.store.GetSubscriptionByExternalID(ctx, tenantID, sub.ID)
	if err != nil {
		if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
			return nil // nothing to transition yet; creation flows through checkout
		}
		return err
	}
	status := mapStripeSubscriptionStatus(sub.Status, event.Type)
	return p.store.UpdateSubscriptionStatus(ctx, tenantID, existing.ID, status, nil, nil)
}

func mapStripeSubscriptionStatus(stripeStatus, eventType string) domain.SubscriptionStatus {
	if eventType == "customer.subscription.deleted" {
		return domain.SubscriptionCancelled
	}
	switch stripeStatus {
	case "trialing":
		return domain.SubscriptionTrialing
	case "past_due":
		return domain.SubscriptionPastDue
	case "unpaid":
		return domain.SubscriptionUnpaid
	case "canceled":
		return domain.SubscriptionCancelled
	default:
		return domain.SubscriptionActive
	}
}

func (p *Processor) handleChargeRefunded(ctx context.Context, event *stripe.Event) error {
	var charge struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return apperror.InvalidField("data.object")
	}

	tenantID := charge.Metadata["tenant_id"]
	if tenantID == "" {
		if p.cfg.RequireTenantID {
			return apperror.MissingField("metadata.tenant_id")
		}
		tenantID = p.cfg.DefaultTenantID
	}

	req, err := p.store.GetStripeRefundRequestByChargeID(ctx, tenantID, charge.ID)
	if err != nil {
		return err
	}
	if err := p.store.UpdateStripeRefundStatus(ctx, tenantID, req.ID, domain.RefundStatusSucceeded); err != nil {
		return err
	}
	_, err = p.out.Enqueue(ctx, webhookout.EnqueueEventInput{
		TenantID: tenantID, EventType: "refund.succeeded",
		Payload: map[string]interface{}{"charge_id": charge.ID},
	})
	return err
}

