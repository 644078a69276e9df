// Package subscription implements the recurring-billing lifecycle (C6):
// period accounting, status transitions, and grace/dunning handling for the
// on-chain and credits rails. The card rail's transitions arrive through
// webhookin and are applied via the same Store capabilities this package
// calls directly.
package subscription

import (
	"context"
	"time"

	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config mirrors the subscription.* knobs of spec §6.5.
type Config struct {
	GracePeriod  time.Duration // time after period end before past_due becomes unpaid
	BatchLimit   int           // rows pulled per ListExpiringLocalSubscriptionsLimited call
}

func DefaultConfig() Config {
	return Config{GracePeriod: 72 * time.Hour, BatchLimit: 200}
}

// Worker advances on-chain/credits subscriptions whose period has ended:
// active/trialing -> past_due as soon as the period end has passed, and
// past_due -> unpaid once GracePeriod has elapsed since the period end.
// The grace window does not delay the move to past_due. The card rail
// never reaches this worker; its transitions land via webhookin.
type Worker struct {
	store ports.Store
	cfg   Config
	log   zerolog.Logger
}

func NewWorker(store ports.Store, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{store: store, cfg: cfg, log: log}
}

// RunTenant processes one page of expiring local subscriptions for a single
// tenant and returns how many it moved into each target status. Callers
// loop this across the tenant set (see cmd/subscriptionworker).
func (w *Worker) RunTenant(ctx context.Context, tenantID string, now time.Time) (toPastDue, toUnpaid int, err error) {
	subs, err := w.store.ListExpiringLocalSubscriptionsLimited(ctx, tenantID, now, w.cfg.BatchLimit)
	if err != nil {
		return 0, 0, err
	}

	var pastDueIDs, unpaidIDs []uuid.UUID
	for _, s := range subs {
		if !s.ExpiredLocal(now) {
			continue
		}
		switch s.Status {
		case domain.SubscriptionActive, domain.SubscriptionTrialing:
			pastDueIDs = append(pastDueIDs, s.ID)
		case domain.SubscriptionPastDue:
			if now.Sub(s.CurrentPeriodEnd) >= w.cfg.GracePeriod {
				unpaidIDs = append(unpaidIDs, s.ID)
			}
		default:
			// cancelled/unpaid already terminal; nothing to do.
		}
	}

	if len(pastDueIDs) > 0 {
		if err := w.store.UpdateSubscriptionStatuses(ctx, tenantID, pastDueIDs, domain.SubscriptionPastDue); err != nil {
			return 0, 0, err
		}
		metrics.SubscriptionTransitions.WithLabelValues("past_due").Add(float64(len(pastDueIDs)))
	}
	if len(unpaidIDs) > 0 {
		if err := w.store.UpdateSubscriptionStatuses(ctx, tenantID, unpaidIDs, domain.SubscriptionUnpaid); err != nil {
			return len(pastDueIDs), 0, err
		}
		metrics.SubscriptionTransitions.WithLabelValues("unpaid").Add(float64(len(unpaidIDs)))
	}

	return len(pastDueIDs), len(unpaidIDs), nil
}

// RunAll sweeps every tenant once, via ListTenantIDs pagination, running
// RunTenant for each. It is the body of the subscriptionworker's poll loop.
func (w *Worker) RunAll(ctx context.Context) (toPastDue, toUnpaid int, err error) {
	now := time.Now()
	cursor := ""
	for {
		ids, next, err := w.store.ListTenantIDs(ctx, cursor, 1000)
		if err != nil {
			return toPastDue, toUnpaid, err
		}
		for _, tenantID := range ids {
			pd, up, err := w.RunTenant(ctx, tenantID, now)
			if err != nil {
				w.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("subscription: tenant sweep failed")
				continue
			}
			toPastDue += pd
			toUnpaid += up
		}
		if next == "" {
			return toPastDue, toUnpaid, nil
		}
		cursor = next
	}
}

// Cancel implements the soft-cancellation of spec §4.6: status is set to
// cancelled, the row itself is retained for reporting, and cancelled_at is
// stamped by the store's update query.
func (w *Worker) Cancel(ctx context.Context, tenantID string, id uuid.UUID) error {
	return w.store.UpdateSubscriptionStatus(ctx, tenantID, id, domain.SubscriptionCancelled, nil, nil)
}

// RecordOnchainRenewal implements the on-chain rail's idempotent creation
// path: idempotency is (tenant_id, payment_signature) (spec §4.6). It
// returns false without error when the signature has already been applied.
func (w *Worker) RecordOnchainRenewal(ctx context.Context, sub *domain.Subscription) (bool, error) {
	if sub.PaymentSignature == nil || *sub.PaymentSignature == "" {
		return false, apperror.MissingField("payment_signature")
	}
	return w.store.TryStoreSubscriptionByPaymentSignature(ctx, sub)
}

// RecordCardSubscription implements the card rail's idempotent creation
// path: idempotency is (tenant_id, external_subscription_id) (spec §4.6).
func (w *Worker) RecordCardSubscription(ctx context.Context, sub *domain.Subscription) (bool, error) {
	if sub.ExternalSubscriptionID == nil || *sub.ExternalSubscriptionID == "" {
		return false, apperror.MissingField("external_subscription_id")
	}
	return w.store.TryStoreSubscriptionByExternalID(ctx, sub)
}

// Renew advances a subscription back to active with a fresh period,
// clearing any past_due/unpaid state. Used once a renewal payment lands for
// a subscription that had already fallen into dunning.
func (w *Worker) Renew(ctx context.Context, tenantID string, id uuid.UUID, periodStart, periodEnd time.Time) error {
	return w.store.UpdateSubscriptionStatus(ctx, tenantID, id, domain.SubscriptionActive, &periodStart, &periodEnd)
}
