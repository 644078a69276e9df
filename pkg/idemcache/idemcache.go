// Package idemcache is the fast-path (L1) cache in front of the Store's
// idempotency-key claim path: a Redis SETNX check before the database
// round-trip, exactly the two-layer "cache check -> DB check -> claim"
// pattern the teacher's payment service used for its own dedup path. The
// Store remains the source of truth and the mutual-exclusion primitive;
// this cache only saves a database hit on the common case of a duplicate
// delivery arriving within the same TTL window.
package idemcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps *redis.Client with the narrow surface this cache needs.
type Client struct {
	rdb *redis.Client
}

func New(addr string) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewFromClient wraps an already-constructed client (used by tests against
// miniredis).
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Claim attempts to atomically mark key as seen for ttl, returning true if
// this call won the race (first claim) and false if key was already
// present. Redis errors are treated as a cache miss: callers fall through
// to the database claim path rather than failing the request over a cache
// outage.
func (c *Client) Claim(ctx context.Context, key string, ttl time.Duration) bool {
	if c == nil || c.rdb == nil {
		return true
	}
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
