// Package breaker wraps sony/gobreaker to expose the closed/open/half-open
// state machine of spec §4.2.4, configured per external dependency
// (Solana RPC, Stripe API, outbound webhook delivery).
package breaker

import (
	"time"

	"paywall-gateway/pkg/metrics"

	"github.com/sony/gobreaker"
)

// Config mirrors the circuit_breaker.<name>.* knobs of spec §6.5.
type Config struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// DefaultConfig gives sane defaults matching the teacher's config style of
// always having a safe zero-value fallback.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
	}
}

// Breaker gates calls to a single external dependency.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New constructs a named breaker. name is used only for observability.
func New(name string, cfg Config) *Breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests >= cfg.MinRequests && cfg.FailureRatio > 0 {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cfg.FailureRatio
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.BreakerTrips.WithLabelValues(name).Inc()
			}
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(st)}
}

// Allow reports whether a call may proceed. Per spec §4.2.4, callers must
// not record success or failure when Allow returns false — the breaker is
// in the open state and the caller should fail fast without touching the
// breaker's counters.
func (b *Breaker) Allow() bool {
	return b.cb.State() != gobreaker.StateOpen
}

// Do runs fn gated by the breaker, recording success/failure on its behalf.
// It returns the breaker's own ErrOpenState if the breaker is open; callers
// that need the "do not count this against the breaker" semantics of
// §4.2.3 step 1 should call Allow() first and skip Do entirely when closed
// would have been false.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string { return b.name }

// State returns a string form of the current state, for health reporting.
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "open"
	}
}
