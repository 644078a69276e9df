// Package webhookout implements the outbound webhook dispatcher (C4): a
// durable queue of HTTP deliveries with exponential backoff, a circuit
// breaker gate, and a dead-letter queue for exhausted retries.
package webhookout

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paywall-gateway/internal/core/domain"
	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/breaker"
	"paywall-gateway/pkg/metrics"
	"paywall-gateway/pkg/webhooktemplate"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BackoffConfig mirrors the webhook_retry.* knobs of spec §6.5.
type BackoffConfig struct {
	Initial    time.Duration
	Multiplier float64
	MaxInterval time.Duration
	Jitter     float64 // in [0,1]
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:     15 * time.Second,
		Multiplier:  2,
		MaxInterval: 30 * time.Minute,
		Jitter:      0.2,
	}
}

// NextAttempt implements spec §4.4 step 4's backoff-with-jitter formula.
func (c BackoffConfig) NextAttempt(attempts int) time.Duration {
	raw := float64(c.Initial) * math.Pow(c.Multiplier, float64(attempts))
	if raw > float64(c.MaxInterval) {
		raw = float64(c.MaxInterval)
	}
	jittered := raw * (1 + c.Jitter*(rand.Float64()-0.5)*2)
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// Dispatcher queues and delivers outbound webhooks. allowPrivateTargets
// disables the SSRF private-address check and admits plain http URLs; only
// set it in non-production environments.
type Dispatcher struct {
	store               ports.Store
	httpClient          ports.HTTPClient
	breaker             *breaker.Breaker
	secret              string
	backoff             BackoffConfig
	requestTimeout      time.Duration
	allowPrivateTargets bool
	log                 zerolog.Logger
}

func New(store ports.Store, httpClient ports.HTTPClient, cb *breaker.Breaker, secret string, backoff BackoffConfig, requestTimeout time.Duration, allowPrivateTargets bool, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:               store,
		httpClient:          httpClient,
		breaker:             cb,
		secret:              secret,
		backoff:             backoff,
		requestTimeout:      requestTimeout,
		allowPrivateTargets: allowPrivateTargets,
		log:                 log,
	}
}

// EnqueueEventInput is the producer-side payload for a notification event.
type EnqueueEventInput struct {
	TenantID   string
	URL        string
	EventType  string
	Payload    map[string]interface{}
	Headers    map[string]string
	MaxAttempts int
}

// contentDerivedID hashes the tenant, URL, event type, and payload so retries
// of the same logical event collapse into the same queue row (spec §4.4:
// "id is content-derived so enqueue is idempotent on retry").
func contentDerivedID(in EnqueueEventInput) uuid.UUID {
	body, _ := json.Marshal(in.Payload)
	sum := sha256.Sum256([]byte(in.TenantID + "|" + in.URL + "|" + in.EventType + "|" + string(body)))
	return uuid.NewSHA1(uuid.NameSpaceOID, sum[:])
}

// Enqueue renders, signs, and durably queues an outbound event.
func (d *Dispatcher) Enqueue(ctx context.Context, in EnqueueEventInput) (bool, error) {
	if err := ValidateWebhookURL(in.URL, d.allowPrivateTargets); err != nil {
		return false, err
	}
	payloadBytes, err := json.Marshal(in.Payload)
	if err != nil {
		return false, err
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	w := &domain.PendingWebhook{
		ID:           contentDerivedID(in),
		TenantID:     in.TenantID,
		URL:          in.URL,
		Payload:      in.Payload,
		PayloadBytes: payloadBytes,
		Headers:      in.Headers,
		EventType:    in.EventType,
		Status:       domain.WebhookStatusPending,
		MaxAttempts:  maxAttempts,
		CreatedAt:    time.Now(),
	}
	return d.store.EnqueueWebhook(ctx, w)
}

// sign computes the HMAC-SHA256 over the raw payload bytes, matching the
// hex-encoded X-Signature header scheme of spec §4.4/§6.6.
func (d *Dispatcher) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(d.secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// ProcessBatch dequeues up to batchSize webhooks and attempts delivery of
// each, per spec §4.4's worker path.
func (d *Dispatcher) ProcessBatch(ctx context.Context, batchSize int) (delivered, retried, deadLettered int, err error) {
	batch, err := d.store.DequeueWebhooks(ctx, batchSize)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, w := range batch {
		switch d.deliverOne(ctx, w) {
		case outcomeDelivered:
			delivered++
		case outcomeRetried:
			retried++
		case outcomeDeadLettered:
			deadLettered++
		}
	}
	return delivered, retried, deadLettered, nil
}

type outcome int

const (
	outcomeRetried outcome = iota
	outcomeDelivered
	outcomeDeadLettered
)

func (d *Dispatcher) deliverOne(ctx context.Context, w domain.PendingWebhook) outcome {
	if !d.breaker.Allow() {
		// Gate on the circuit breaker without counting against it; re-queue
		// with a small fixed delay (spec §4.4 step 1).
		_ = d.store.MarkWebhookRetry(ctx, w.ID, time.Now().Add(5*time.Second), "webhook circuit breaker open")
		return outcomeRetried
	}

	status, lastErr := d.attemptDelivery(ctx, w)

	deliverErr := d.breaker.Do(func() error {
		if status >= 200 && status < 300 {
			return nil
		}
		return fmt.Errorf("webhook delivery failed: %s", lastErr)
	})

	if status >= 200 && status < 300 {
		if err := d.store.MarkWebhookSuccess(ctx, w.ID); err != nil {
			d.log.Warn().Err(err).Str("webhook_id", w.ID.String()).Msg("webhookout: failed to record success")
		}
		metrics.WebhookAttempts.WithLabelValues("delivered").Inc()
		return outcomeDelivered
	}

	_ = deliverErr
	if w.Attempts+1 >= w.MaxAttempts {
		if err := d.store.MoveToDLQ(ctx, w.ID, lastErr); err != nil {
			d.log.Warn().Err(err).Str("webhook_id", w.ID.String()).Msg("webhookout: failed to move to dlq")
		}
		metrics.WebhookAttempts.WithLabelValues("dead_lettered").Inc()
		metrics.WebhookDeadLettered.Inc()
		return outcomeDeadLettered
	}
	next := time.Now().Add(d.backoff.NextAttempt(w.Attempts))
	if err := d.store.MarkWebhookRetry(ctx, w.ID, next, lastErr); err != nil {
		d.log.Warn().Err(err).Str("webhook_id", w.ID.String()).Msg("webhookout: failed to schedule retry")
	}
	metrics.WebhookAttempts.WithLabelValues("retried").Inc()
	return outcomeRetried
}

func (d *Dispatcher) attemptDelivery(ctx context.Context, w domain.PendingWebhook) (status int, lastErr string) {
	if err := ValidateWebhookURL(w.URL, d.allowPrivateTargets); err != nil {
		return 0, err.Error()
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, w.URL, bytes.NewReader(w.PayloadBytes))
	if err != nil {
		return 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", d.sign(w.PayloadBytes))
	req.Header.Set("X-Event-Type", w.EventType)
	for k, tmpl := range w.Headers {
		req.Header.Set(k, webhooktemplate.Render(tmpl, w.Payload))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()
	return resp.StatusCode, fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// ValidateWebhookURL rejects loopback/private-range targets unless
// allowPrivate is set, implementing the SSRF protection of spec §4.4.
func ValidateWebhookURL(rawURL string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "https" && !(allowPrivate && u.Scheme == "http") {
		return fmt.Errorf("webhook url must use https")
	}
	if allowPrivate {
		return nil
	}
	host := u.Hostname()
	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("could not resolve webhook host: %w", err)
	}
	for _, ip := range ips {
		if isPrivateOrLoopback(ip) {
			return fmt.Errorf("webhook url resolves to a private address")
		}
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("webhook url targets localhost")
	}
	return nil
}

func isPrivateOrLoopback(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
