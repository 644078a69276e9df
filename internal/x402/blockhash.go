package x402

import (
	"context"
	"sync"
	"time"

	"paywall-gateway/internal/core/ports"
)

// blockhashCacheTTL is the 1-second TTL spec §4.2.1/§4.2.5 requires, shared
// across the verifier and the ATA auto-create path.
const blockhashCacheTTL = 1 * time.Second

// BlockhashCache memoizes getLatestBlockhash for up to 1 second, absorbing
// RPC bursts when many requests need a fresh blockhash in quick succession.
type BlockhashCache struct {
	rpc ports.RPCClient

	mu        sync.Mutex
	blockhash string
	fetchedAt time.Time
}

func NewBlockhashCache(rpc ports.RPCClient) *BlockhashCache {
	return &BlockhashCache{rpc: rpc}
}

func (c *BlockhashCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blockhash != "" && time.Since(c.fetchedAt) < blockhashCacheTTL {
		return c.blockhash, nil
	}

	bh, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	c.blockhash = bh
	c.fetchedAt = time.Now()
	return bh, nil
}
