package x402

import (
	"context"
	"strings"
	"time"

	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/breaker"
	"paywall-gateway/pkg/metrics"

	"github.com/rs/zerolog"
)

// SubmitConfig mirrors the x402.submit.* knobs of spec §6.5.
type SubmitConfig struct {
	SkipPreflight        bool
	CommitmentLevel       string // processed | confirmed | finalized
	RateLimitInitialBackoff time.Duration
	RateLimitMultiplier    float64
	RateLimitMaxBackoff    time.Duration
	RateLimitMaxRetries    int
	TimeoutBackoff         time.Duration
	TimeoutMaxRetries      int
	ConfirmPollInterval    time.Duration
	ConfirmTimeout         time.Duration
}

func DefaultSubmitConfig() SubmitConfig {
	return SubmitConfig{
		SkipPreflight:           false,
		CommitmentLevel:         "confirmed",
		RateLimitInitialBackoff: 500 * time.Millisecond,
		RateLimitMultiplier:     2.0,
		RateLimitMaxBackoff:     2 * time.Second,
		RateLimitMaxRetries:     3,
		TimeoutBackoff:          500 * time.Millisecond,
		TimeoutMaxRetries:       2,
		ConfirmPollInterval:     2 * time.Second,
		ConfirmTimeout:          120 * time.Second,
	}
}

// Submitter submits and confirms transactions against a Solana RPC client
// through a circuit breaker, per spec §4.2.3.
type Submitter struct {
	rpc     ports.RPCClient
	breaker *breaker.Breaker
	cfg     SubmitConfig
	log     zerolog.Logger
}

func NewSubmitter(rpc ports.RPCClient, cb *breaker.Breaker, cfg SubmitConfig, log zerolog.Logger) *Submitter {
	return &Submitter{rpc: rpc, breaker: cb, cfg: cfg, log: log}
}

// classifiedErr tags an RPC error with the substring-pattern classification
// of spec §4.2.3 step 2.
type classifiedErr int

const (
	errRateLimit classifiedErr = iota
	errTimeout
	errAlreadyProcessed
	errInsufficientTokenFunds
	errInsufficientSolFunds
	errAccountNotFound
	errBlockhashExpired
	errServer
	errOther
)

func classifySendError(err error) classifiedErr {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "too many requests") || strings.Contains(s, "rate limit") || strings.Contains(s, "429"):
		return errRateLimit
	case strings.Contains(s, "already processed") || strings.Contains(s, "alreadyprocessed"):
		return errAlreadyProcessed
	case strings.Contains(s, "insufficient funds for rent") || strings.Contains(s, "insufficient token"):
		return errInsufficientTokenFunds
	case strings.Contains(s, "insufficient lamports") || strings.Contains(s, "insufficient sol"):
		return errInsufficientSolFunds
	case strings.Contains(s, "account not found") || strings.Contains(s, "accountnotfound") || strings.Contains(s, "invalid account data"):
		return errAccountNotFound
	case strings.Contains(s, "blockhash not found") || strings.Contains(s, "blockhash expired"):
		return errBlockhashExpired
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return errTimeout
	case strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "internal server error"):
		return errServer
	default:
		return errOther
	}
}

// Submit sends rawTx, retrying per the classification rules of spec §4.2.3
// step 2, and returns the transaction signature.
func (s *Submitter) Submit(ctx context.Context, rawTx []byte) (string, error) {
	if !s.breaker.Allow() {
		return "", apperror.Network("service_unavailable", "solana rpc circuit breaker is open", nil)
	}

	rateLimitRetries := 0
	timeoutRetries := 0
	backoff := s.cfg.RateLimitInitialBackoff

	for {
		sig, sendErr := s.rpc.SendTransaction(ctx, rawTx, s.cfg.SkipPreflight)
		if sendErr == nil {
			_ = s.breaker.Do(func() error { return nil })
			return sig, nil
		}

		switch classifySendError(sendErr) {
		case errRateLimit:
			if rateLimitRetries < s.cfg.RateLimitMaxRetries {
				rateLimitRetries++
				time.Sleep(backoff)
				backoff = time.Duration(float64(backoff) * s.cfg.RateLimitMultiplier)
				if backoff > s.cfg.RateLimitMaxBackoff {
					backoff = s.cfg.RateLimitMaxBackoff
				}
				continue
			}
			// Rate-limit exhaustion does not open the breaker (spec §4.2.3
			// step 2): it reflects the caller's send pace, not RPC health.
			return "", apperror.RateLimited()
		case errTimeout:
			if timeoutRetries < s.cfg.TimeoutMaxRetries {
				timeoutRetries++
				_ = s.breaker.Do(func() error { return sendErr })
				time.Sleep(s.cfg.TimeoutBackoff)
				continue
			}
			_ = s.breaker.Do(func() error { return sendErr })
			return "", apperror.Network("network", "solana rpc timeout", sendErr)
		case errAlreadyProcessed:
			_ = s.breaker.Do(func() error { return nil })
			// The failed send returned no signature; the transaction's own
			// signature is its first (fee payer) signature.
			if tx, decErr := decodeRawTransaction(rawTx); decErr == nil && len(tx.Signatures) > 0 {
				return tx.Signatures[0].String(), nil
			}
			return sig, nil
		case errInsufficientTokenFunds:
			return "", apperror.Of(apperror.KindInvalid, "insufficient_token_funds", "payer has insufficient token balance")
		case errInsufficientSolFunds:
			return "", apperror.Of(apperror.KindInvalid, "insufficient_sol_funds", "payer has insufficient SOL balance")
		case errAccountNotFound:
			return "", apperror.Of(apperror.KindNotFound, "account_not_found", "token account not found")
		case errBlockhashExpired:
			return "", apperror.Of(apperror.KindInvalid, "blockhash_expired", "blockhash expired before submission")
		case errServer:
			_ = s.breaker.Do(func() error { return sendErr })
			return "", apperror.Network("network", "solana rpc server error", sendErr)
		default:
			return "", apperror.Network("network", "solana rpc error", sendErr)
		}
	}
}

// Confirm polls getSignatureStatuses every ConfirmPollInterval for up to
// ConfirmTimeout, per spec §4.2.3 step 3.
func (s *Submitter) Confirm(ctx context.Context, signature string) error {
	start := time.Now()
	deadline := start.Add(s.cfg.ConfirmTimeout)
	consecutiveNetworkErrors := 0

	for {
		if time.Now().After(deadline) {
			return apperror.Of(apperror.KindUnavailable, "transaction_not_found", "confirmation timed out; reconcile externally")
		}

		statuses, err := s.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err != nil {
			consecutiveNetworkErrors++
			if consecutiveNetworkErrors > s.cfg.TimeoutMaxRetries {
				return apperror.Network("network", "persistent error polling signature status", err)
			}
			time.Sleep(s.cfg.TimeoutBackoff)
			continue
		}
		consecutiveNetworkErrors = 0

		if len(statuses) > 0 && statuses[0].Found {
			st := statuses[0]
			if st.Err != "" {
				return apperror.Of(apperror.KindInvalid, "transaction_failed", "transaction failed on-chain: "+st.Err)
			}
			if meetsCommitment(st.ConfirmationStatus, s.cfg.CommitmentLevel) {
				metrics.ConfirmationLatency.Observe(time.Since(start).Seconds())
				return nil
			}
		}

		time.Sleep(s.cfg.ConfirmPollInterval)
	}
}

var commitmentRank = map[string]int{"processed": 0, "confirmed": 1, "finalized": 2}

func meetsCommitment(got, want string) bool {
	g, ok1 := commitmentRank[got]
	w, ok2 := commitmentRank[want]
	if !ok1 || !ok2 {
		return false
	}
	return g >= w
}
