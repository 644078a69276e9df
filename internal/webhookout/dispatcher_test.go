package webhookout

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paywall-gateway/pkg/breaker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paywall-gateway/internal/store/memory"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func newDispatcher(client roundTripFunc) *Dispatcher {
	return New(memory.New(), client, breaker.New("webhook_out_test", breaker.DefaultConfig()), "test-secret",
		DefaultBackoffConfig(), 2*time.Second, true, zerolog.Nop())
}

func TestEnqueue_ContentDerivedIDCollapsesRetries(t *testing.T) {
	d := newDispatcher(nil)
	ctx := context.Background()
	in := EnqueueEventInput{TenantID: "tenant-1", URL: "https://example.com/hook", EventType: "payment.succeeded", Payload: map[string]interface{}{"id": "1"}}

	created1, err := d.Enqueue(ctx, in)
	require.NoError(t, err)
	assert.True(t, created1)

	created2, err := d.Enqueue(ctx, in)
	require.NoError(t, err)
	assert.False(t, created2, "same logical event must collapse to the same queue row")
}

func TestProcessBatch_DeliveredOnSuccess(t *testing.T) {
	d := newDispatcher(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.NotEmpty(t, req.Header.Get("X-Signature"))
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}, nil
	}))
	ctx := context.Background()
	_, err := d.Enqueue(ctx, EnqueueEventInput{TenantID: "tenant-1", URL: "https://example.com/hook", EventType: "payment.succeeded", Payload: map[string]interface{}{"id": "1"}})
	require.NoError(t, err)

	delivered, retried, dead, err := d.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, retried)
	assert.Equal(t, 0, dead)
}

func TestProcessBatch_RetriedOnFailure(t *testing.T) {
	d := newDispatcher(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 500, Body: io.NopCloser(strings.NewReader(""))}, nil
	}))
	ctx := context.Background()
	_, err := d.Enqueue(ctx, EnqueueEventInput{TenantID: "tenant-1", URL: "https://example.com/hook", EventType: "payment.succeeded", Payload: map[string]interface{}{"id": "1"}, MaxAttempts: 3})
	require.NoError(t, err)

	delivered, retried, dead, err := d.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 1, retried)
	assert.Equal(t, 0, dead)
}

func TestProcessBatch_DeadLetteredAfterMaxAttempts(t *testing.T) {
	d := newDispatcher(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 500, Body: io.NopCloser(strings.NewReader(""))}, nil
	}))
	ctx := context.Background()
	_, err := d.Enqueue(ctx, EnqueueEventInput{TenantID: "tenant-1", URL: "https://example.com/hook", EventType: "payment.succeeded", Payload: map[string]interface{}{"id": "1"}, MaxAttempts: 1})
	require.NoError(t, err)

	delivered, retried, dead, err := d.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 0, retried)
	assert.Equal(t, 1, dead)
}

func TestValidateWebhookURL_RejectsHTTP(t *testing.T) {
	assert.Error(t, ValidateWebhookURL("http://example.com/hook", false))
}

func TestValidateWebhookURL_RejectsPrivateAddress(t *testing.T) {
	assert.Error(t, ValidateWebhookURL("https://localhost/hook", false))
}

func TestValidateWebhookURL_AllowsPrivateWhenConfigured(t *testing.T) {
	assert.NoError(t, ValidateWebhookURL("http://localhost/hook", true))
}

func TestNextAttempt_RespectsMaxInterval(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Multiplier: 10, MaxInterval: 5 * time.Second, Jitter: 0}
	d := cfg.NextAttempt(10)
	assert.LessOrEqual(t, d, 5*time.Second)
}

func TestLiveHTTPServer_DeliversSignedRequest(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	d := New(memory.New(), http.DefaultClient, breaker.New("webhook_out_live_test", breaker.DefaultConfig()), "test-secret",
		DefaultBackoffConfig(), 2*time.Second, true, zerolog.Nop())

	ctx := context.Background()
	_, err := d.Enqueue(ctx, EnqueueEventInput{TenantID: "tenant-1", URL: srv.URL, EventType: "payment.succeeded", Payload: map[string]interface{}{"id": "1"}})
	require.NoError(t, err)

	delivered, _, _, err := d.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.True(t, strings.HasPrefix(gotSig, "sha256="))
}
