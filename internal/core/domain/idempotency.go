package domain

import "time"

// IdempotencyKey is a mutual-exclusion claim and response cache, keyed by a
// caller-chosen string (spec §3.1, e.g. "stripe_webhook:<event_id>").
type IdempotencyKey struct {
	Key        string    `json:"key"`
	StatusCode int       `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte    `json:"body"`
	CachedAt   time.Time `json:"cached_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the cached response/claim has lapsed.
func (k *IdempotencyKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
