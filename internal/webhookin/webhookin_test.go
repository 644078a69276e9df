package webhookin

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"paywall-gateway/internal/cart"
	"paywall-gateway/internal/catalog"
	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/store/memory"
	"paywall-gateway/internal/webhookout"
	"paywall-gateway/pkg/breaker"
	"paywall-gateway/pkg/idemcache"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "whsec_test"

// sign replicates stripe's "t=<ts>,v1=<hex hmac>" header scheme so
// webhook.ConstructEvent validates it without a live Stripe account.
func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newFixture(t *testing.T) (*Processor, *memory.Store) {
	t.Helper()
	store := memory.New()
	cat := catalog.NewStaticRepository()
	cat.SetPrice("tenant-1", "sku-1", catalog.Entry{AssetCode: "USD", AtomicAmount: 1000, Decimals: 2})
	store.SeedProduct(domain.Product{TenantID: "tenant-1", ID: "sku-1", InventoryQuantity: 10})
	cartSvc := cart.New(store, cat, cart.DefaultConfig())
	out := webhookout.New(store, nil, breaker.New("webhook_out_test", breaker.DefaultConfig()), "hmac-secret", webhookout.DefaultBackoffConfig(), time.Second, true, zerolog.Nop())

	cfg := DefaultConfig()
	cfg.SigningSecret = testSigningSecret
	p := New(store, cartSvc, out, cfg, zerolog.Nop())

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	p.WithCache(idemcache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	return p, store
}

func checkoutCompletedEvent(t *testing.T, tenantID, resourceID, purchaseID string) []byte {
	t.Helper()
	body := map[string]interface{}{
		"id":   "evt_" + purchaseID,
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":           purchaseID,
				"amount_total": 1000,
				"currency":     "usd",
				"metadata":     map[string]string{"tenant_id": tenantID, "resource_id": resourceID},
			},
		},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return b
}

func TestHandle_InvalidSignatureRejected(t *testing.T) {
	p, _ := newFixture(t)
	body := checkoutCompletedEvent(t, "tenant-1", "sku-1", "cs_1")
	_, _, err := p.Handle(context.Background(), body, "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestHandle_CheckoutCompleted_CreatesOrder(t *testing.T) {
	p, store := newFixture(t)
	body := checkoutCompletedEvent(t, "tenant-1", "sku-1", "cs_1")
	sig := sign(body, testSigningSecret)

	status, _, err := p.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, 200, status)

	order, err := store.GetOrderByPurchaseID(context.Background(), "tenant-1", domain.OrderSourceStripe, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
}

func TestHandle_DuplicateEvent_SkipsReprocessing(t *testing.T) {
	p, _ := newFixture(t)
	body := checkoutCompletedEvent(t, "tenant-1", "sku-1", "cs_1")
	sig := sign(body, testSigningSecret)

	status1, _, err := p.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, 200, status1)

	status2, body2, err := p.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, 200, status2)
	assert.Contains(t, string(body2), "already_processing")
}

func TestHandle_MissingResourceIDRejected(t *testing.T) {
	p, _ := newFixture(t)
	body := map[string]interface{}{
		"id":   "evt_missing",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "cs_missing",
				"metadata": map[string]string{"tenant_id": "tenant-1"},
			},
		},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	sig := sign(b, testSigningSecret)

	_, respBody, err := p.Handle(context.Background(), b, sig)
	require.NoError(t, err)
	assert.Contains(t, string(respBody), "error")
}

func chargeRefundedEvent(t *testing.T, tenantID, chargeID string) []byte {
	t.Helper()
	body := map[string]interface{}{
		"id":   "evt_refund_" + chargeID,
		"type": "charge.refunded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       chargeID,
				"metadata": map[string]string{"tenant_id": tenantID},
			},
		},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return b
}

func TestHandle_ChargeRefunded_ScopedToMetadataTenant(t *testing.T) {
	p, store := newFixture(t)

	req := &domain.StripeRefundRequest{
		ID:       uuid.New(),
		ChargeID: "ch_1",
		Status:   domain.RefundStatusPending,
	}
	require.NoError(t, store.StoreStripeRefundRequest(context.Background(), "tenant-1", req))

	body := chargeRefundedEvent(t, "tenant-1", "ch_1")
	sig := sign(body, testSigningSecret)

	status, _, err := p.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, 200, status)

	got, err := store.GetStripeRefundRequestByChargeID(context.Background(), "tenant-1", "ch_1")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStatusSucceeded, got.Status)
}

func TestHandle_ChargeRefunded_MissingTenantMetadataRejected(t *testing.T) {
	p, _ := newFixture(t)
	body := chargeRefundedEvent(t, "", "ch_2")
	sig := sign(body, testSigningSecret)

	_, respBody, err := p.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Contains(t, string(respBody), "error")
}

func TestHandle_UnknownEventTypeIgnored(t *testing.T) {
	p, _ := newFixture(t)
	body := map[string]interface{}{
		"id":   "evt_unknown",
		"type": "customer.created",
		"data": map[string]interface{}{"object": map[string]interface{}{}},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	sig := sign(b, testSigningSecret)

	status, respBody, err := p.Handle(context.Background(), b, sig)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Contains(t, string(respBody), "ignored")
}
