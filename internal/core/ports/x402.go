package ports

import (
	"context"
	"time"
)

// Requirement is the payment obligation C5 hands to the verifier: recipient
// owner, expected mint, expected amount, TTL, and the resource_id the memo
// must bind to (spec §4.2).
type Requirement struct {
	RecipientTokenAccount string
	TokenMint             string
	TokenDecimals         uint8
	AmountAtomic          *int64
	AmountMajor           *float64
	QuoteTTL              time.Duration
	ResourceID            string
	Network               string
}

// SignatureStatus is the result of polling getSignatureStatuses.
type SignatureStatus struct {
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                string // non-empty means the transaction failed on-chain
	Found               bool
}

// RPCClient is the subset of the Solana JSON-RPC surface the verifier calls
// through a circuit breaker. Implementations wrap gagliardetto/solana-go's
// rpc.Client.
type RPCClient interface {
	SendTransaction(ctx context.Context, rawTx []byte, skipPreflight bool) (signature string, err error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]SignatureStatus, error)
	GetLatestBlockhash(ctx context.Context) (blockhash string, err error)
	GetAccountInfo(ctx context.Context, address string) (exists bool, err error)
}

// ServerWalletHealth is the health-aware round-robin state of spec §4.2.7.
type ServerWalletHealth string

const (
	WalletHealthy  ServerWalletHealth = "healthy"
	WalletLow      ServerWalletHealth = "low"
	WalletCritical ServerWalletHealth = "critical"
)

// WalletHealthSource is the external collaborator that polls balances and
// marks wallets healthy/low/critical against configured thresholds; the
// core only consumes the resulting map.
type WalletHealthSource interface {
	Health(pubkey string) ServerWalletHealth
}
