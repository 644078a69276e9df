package subscription

import (
	"context"
	"testing"
	"time"

	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/store/memory"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSub(t *testing.T, store *memory.Store, tenantID string, status domain.SubscriptionStatus, periodEnd time.Time) *domain.Subscription {
	t.Helper()
	sig := uuid.New().String()
	sub := &domain.Subscription{
		ID: uuid.New(), TenantID: tenantID, ProductID: "plan-1",
		PaymentMethod: domain.SubscriptionPaymentOnchain, Status: status,
		CurrentPeriodStart: periodEnd.Add(-30 * 24 * time.Hour), CurrentPeriodEnd: periodEnd,
		PaymentSignature: &sig,
	}
	ok, err := store.TryStoreSubscriptionByPaymentSignature(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, ok)
	return sub
}

func TestRunTenant_ActiveToPastDue(t *testing.T) {
	store := memory.New()
	seedSub(t, store, "tenant-1", domain.SubscriptionActive, time.Now().Add(-time.Hour))

	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	toPastDue, toUnpaid, err := w.RunTenant(context.Background(), "tenant-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, toPastDue)
	assert.Equal(t, 0, toUnpaid)
}

func TestRunTenant_PastDueToUnpaidAfterGrace(t *testing.T) {
	store := memory.New()
	sub := seedSub(t, store, "tenant-1", domain.SubscriptionPastDue, time.Now().Add(-96*time.Hour))

	cfg := DefaultConfig()
	w := NewWorker(store, cfg, zerolog.Nop())
	toPastDue, toUnpaid, err := w.RunTenant(context.Background(), "tenant-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, toPastDue)
	assert.Equal(t, 1, toUnpaid)
	_ = sub
}

func TestRunTenant_PastDueWithinGraceUntouched(t *testing.T) {
	store := memory.New()
	seedSub(t, store, "tenant-1", domain.SubscriptionPastDue, time.Now().Add(-time.Hour))

	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	toPastDue, toUnpaid, err := w.RunTenant(context.Background(), "tenant-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, toPastDue)
	assert.Equal(t, 0, toUnpaid)
}

func TestRunTenant_CardSubscriptionNeverTouched(t *testing.T) {
	store := memory.New()
	extID := "sub_stripe_123"
	sub := &domain.Subscription{
		ID: uuid.New(), TenantID: "tenant-1", ProductID: "plan-1",
		PaymentMethod: domain.SubscriptionPaymentCard, Status: domain.SubscriptionActive,
		CurrentPeriodEnd: time.Now().Add(-time.Hour), ExternalSubscriptionID: &extID,
	}
	ok, err := store.TryStoreSubscriptionByExternalID(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, ok)

	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	toPastDue, toUnpaid, err := w.RunTenant(context.Background(), "tenant-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, toPastDue)
	assert.Equal(t, 0, toUnpaid)
}

func TestCancel_SoftCancellation(t *testing.T) {
	store := memory.New()
	sub := seedSub(t, store, "tenant-1", domain.SubscriptionActive, time.Now().Add(24*time.Hour))

	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	assert.NoError(t, w.Cancel(context.Background(), "tenant-1", sub.ID))
}

func TestCancel_UnknownSubscriptionNotFound(t *testing.T) {
	store := memory.New()
	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	assert.Error(t, w.Cancel(context.Background(), "tenant-1", uuid.New()))
}

func TestRecordOnchainRenewal_IdempotentOnSignature(t *testing.T) {
	store := memory.New()
	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	sig := "sig-abc"
	sub := &domain.Subscription{ID: uuid.New(), TenantID: "tenant-1", PaymentSignature: &sig, Status: domain.SubscriptionActive}

	created1, err := w.RecordOnchainRenewal(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, created1)

	created2, err := w.RecordOnchainRenewal(context.Background(), sub)
	require.NoError(t, err)
	assert.False(t, created2)
}

func TestRecordOnchainRenewal_MissingSignatureRejected(t *testing.T) {
	store := memory.New()
	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	_, err := w.RecordOnchainRenewal(context.Background(), &domain.Subscription{ID: uuid.New(), TenantID: "tenant-1"})
	assert.Error(t, err)
}

func TestRecordCardSubscription_IdempotentOnExternalID(t *testing.T) {
	store := memory.New()
	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	extID := "sub_123"
	sub := &domain.Subscription{ID: uuid.New(), TenantID: "tenant-1", ExternalSubscriptionID: &extID, Status: domain.SubscriptionActive}

	created1, err := w.RecordCardSubscription(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, created1)

	created2, err := w.RecordCardSubscription(context.Background(), sub)
	require.NoError(t, err)
	assert.False(t, created2)
}

func TestRunAll_SweepsAcrossTenants(t *testing.T) {
	store := memory.New()
	seedSub(t, store, "tenant-1", domain.SubscriptionActive, time.Now().Add(-time.Hour))
	seedSub(t, store, "tenant-2", domain.SubscriptionActive, time.Now().Add(-time.Hour))

	w := NewWorker(store, DefaultConfig(), zerolog.Nop())
	toPastDue, _, err := w.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, toPastDue)
}
