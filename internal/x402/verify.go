package x402

import (
	"context"
	"time"

	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/breaker"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// VerifierConfig selects the network the verifier is configured for and
// whether gasless co-signing is offered at all.
type VerifierConfig struct {
	Network        string
	GaslessEnabled bool
}

// Verifier is the single end-to-end entry point C5 calls: decode and
// validate a payment proof, optionally co-sign as gas sponsor, submit it to
// the network, confirm it, and return the settled result (spec §4.2).
type Verifier struct {
	rpc       ports.RPCClient
	submitter *Submitter
	wallets   *WalletRouter
	bhCache   *BlockhashCache
	queue     *TransactionQueue
	ataCfg    ATAConfig
	cfg       VerifierConfig
	log       zerolog.Logger
}

func NewVerifier(rpc ports.RPCClient, cb *breaker.Breaker, wallets *WalletRouter, submitCfg SubmitConfig, queueCfg TransactionQueueConfig, ataCfg ATAConfig, cfg VerifierConfig, log zerolog.Logger) *Verifier {
	return &Verifier{
		rpc:       rpc,
		submitter: NewSubmitter(rpc, cb, submitCfg, log),
		wallets:   wallets,
		bhCache:   NewBlockhashCache(rpc),
		queue:     NewTransactionQueue(queueCfg),
		ataCfg:    ataCfg,
		cfg:       cfg,
		log:       log,
	}
}

// Verify implements spec §4.2 end to end. gasless requests that the
// configured server wallet co-sign and pay network fees; the caller passes
// this based on the payer's declared intent and the configuration's
// x402.gasless_enabled flag.
func (v *Verifier) Verify(ctx context.Context, txBase64 string, req ports.Requirement, gasless bool) (*VerificationResult, error) {
	transfer, err := VerifyStatic(txBase64, req, v.cfg.Network)
	if err != nil {
		return nil, err
	}

	tx, err := decodeTransaction(txBase64)
	if err != nil {
		return nil, err
	}

	if gasless {
		if !v.cfg.GaslessEnabled || v.wallets == nil {
			return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "gasless co-signing is not enabled")
		}
		if len(tx.Message.AccountKeys) == 0 {
			return nil, apperror.InvalidPaymentProof()
		}
		// Match the proof's declared fee payer against the configured
		// wallet set (spec §4.2.2 steps 1-2) rather than picking one by
		// round-robin: CoSign requires AccountKeys[0] to equal the signing
		// wallet, so the wallet that signs must be the one the proof names.
		wallet := v.wallets.Find(tx.Message.AccountKeys[0])
		if wallet == nil {
			return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "fee payer does not match a configured server wallet")
		}
		if err := wallet.CoSign(tx, tx.Message.AccountKeys[0]); err != nil {
			return nil, err
		}
	}

	signature, err := v.submitRaw(ctx, tx)
	if err != nil {
		appErr, ok := apperror.As(err)
		if ok && appErr.Code == "account_not_found" && v.ataCfg.Enabled && gasless {
			if retryErr := v.recoverMissingAccount(ctx, transfer); retryErr != nil {
				return nil, retryErr
			}
			signature, err = v.submitRaw(ctx, tx)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := v.submitter.Confirm(ctx, signature); err != nil {
		return nil, err
	}

	return &VerificationResult{
		Wallet:       transfer.Owner.String(),
		AmountAtomic: int64(transfer.Amount),
		Signature:    signature,
		ExpiresAt:    accessExpiry(time.Now(), req.QuoteTTL),
	}, nil
}

func (v *Verifier) submitRaw(ctx context.Context, tx *solana.Transaction) (string, error) {
	rawTx, err := tx.MarshalBinary()
	if err != nil {
		return "", apperror.InternalError(err)
	}

	var signature string
	err = v.queue.Enqueue(ctx, func(ctx context.Context) error {
		sig, sendErr := v.submitter.Submit(ctx, rawTx)
		if sendErr != nil {
			return sendErr
		}
		signature = sig
		return nil
	})
	if err != nil {
		return "", err
	}
	return signature, nil
}

// recoverMissingAccount implements spec §4.2.5: on AccountNotFound for the
// destination token account, auto-create it funded by the server wallet
// the health-aware round robin (wallets.Next) picks, before retrying the
// original transfer once.
func (v *Verifier) recoverMissingAccount(ctx context.Context, transfer *TransferDetails) error {
	wallet := v.wallets.Next()
	if wallet == nil {
		return apperror.ServiceUnavailable()
	}
	return EnsureAccount(ctx, v.rpc, v.bhCache, wallet, transfer.Owner, transfer.Mint, v.submitter, v.ataCfg)
}

// Shutdown releases resources held by the verifier's internal queue.
func (v *Verifier) Shutdown() {
	v.queue.Shutdown()
}
