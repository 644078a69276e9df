// Package metrics defines the counters and histograms components
// increment as they run (spec §1: the core "emits records into durable
// queues and counters; delivery is someone else's problem"). No /metrics
// HTTP exposition lives here — that belongs to whatever deployment wires
// prometheus.Registry into its own transport; components only touch the
// package-level collectors below, registered against the default
// registry so a binary that does want exposition just needs to mount
// promhttp.Handler() once.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PaymentDedupHits counts verify/payment attempts rejected as
	// duplicates by the idempotency layer (spec §4.2.1/§4.3).
	PaymentDedupHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_payment_dedup_hits_total",
		Help: "Payment or webhook attempts rejected as duplicates.",
	}, []string{"rail"})

	// WebhookAttempts counts outbound webhook delivery attempts by outcome.
	WebhookAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_webhook_attempts_total",
		Help: "Outbound webhook delivery attempts by outcome.",
	}, []string{"outcome"})

	// WebhookDeadLettered counts webhooks moved to the dead-letter state
	// after exhausting retries (spec §4.4).
	WebhookDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paywall_webhook_dead_lettered_total",
		Help: "Outbound webhooks moved to the dead-letter queue.",
	})

	// BreakerTrips counts circuit breaker state transitions into open.
	BreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_breaker_trips_total",
		Help: "Circuit breaker transitions into the open state.",
	}, []string{"breaker"})

	// ConfirmationLatency observes the time from transaction submission to
	// confirmed/finalized status on the x402 rail (spec §4.2.3).
	ConfirmationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "paywall_x402_confirmation_seconds",
		Help:    "Time from transaction submission to confirmation.",
		Buckets: prometheus.DefBuckets,
	})

	// SubscriptionTransitions counts lifecycle sweep transitions by target
	// status (spec §4.6).
	SubscriptionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_subscription_transitions_total",
		Help: "Subscription lifecycle sweep transitions by target status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(
		PaymentDedupHits,
		WebhookAttempts,
		WebhookDeadLettered,
		BreakerTrips,
		ConfirmationLatency,
		SubscriptionTransitions,
	)
}
