package x402

import (
	"sync"

	"paywall-gateway/internal/core/ports"

	"github.com/gagliardetto/solana-go"
)

// WalletRouter picks the next server wallet via health-aware round-robin
// (spec §4.2.7): scan forward from the current index for one whose health
// is usable (healthy or low, not critical); if none is usable, fall back to
// plain round-robin.
type WalletRouter struct {
	mu      sync.Mutex
	wallets []*ServerWallet
	index   int
	health  ports.WalletHealthSource
}

func NewWalletRouter(wallets []*ServerWallet, health ports.WalletHealthSource) *WalletRouter {
	return &WalletRouter{wallets: wallets, health: health}
}

func usable(h ports.ServerWalletHealth) bool {
	return h == ports.WalletHealthy || h == ports.WalletLow
}

// Find returns the configured wallet matching pubkey, if any.
func (r *WalletRouter) Find(pubkey solana.PublicKey) *ServerWallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return FindServerWallet(r.wallets, pubkey)
}

// Next returns the next wallet to use for a gasless co-sign.
func (r *WalletRouter) Next() *ServerWallet {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.wallets)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return r.wallets[0]
	}

	start := r.index
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		w := r.wallets[idx]
		if r.health == nil || usable(r.health.Health(w.PublicKey.String())) {
			r.index = (idx + 1) % n
			return w
		}
	}

	// No usable wallet: fall back to plain round-robin.
	w := r.wallets[r.index%n]
	r.index = (r.index + 1) % n
	return w
}
