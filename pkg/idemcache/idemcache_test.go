package idemcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestClaim_FirstClaimSucceeds(t *testing.T) {
	c := newTestClient(t)
	assert.True(t, c.Claim(context.Background(), "stripe_webhook:evt_1", time.Minute))
}

func TestClaim_SecondClaimFails(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.True(t, c.Claim(ctx, "stripe_webhook:evt_1", time.Minute))
	assert.False(t, c.Claim(ctx, "stripe_webhook:evt_1", time.Minute))
}

func TestClaim_DifferentKeysIndependent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	assert.True(t, c.Claim(ctx, "stripe_webhook:evt_1", time.Minute))
	assert.True(t, c.Claim(ctx, "stripe_webhook:evt_2", time.Minute))
}

func TestClaim_NilClientFailsOpen(t *testing.T) {
	var c *Client
	assert.True(t, c.Claim(context.Background(), "any_key", time.Minute))
}

func TestClaim_ZeroValueFailsOpen(t *testing.T) {
	c := &Client{}
	assert.True(t, c.Claim(context.Background(), "any_key", time.Minute))
}

func TestClose_NilSafe(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}
