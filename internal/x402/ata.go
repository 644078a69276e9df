package x402

import (
	"context"
	"time"

	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/associated_token_account"
)

// ATAConfig mirrors the x402.auto_create_token_accounts.* knobs of spec §6.5.
type ATAConfig struct {
	Enabled        bool
	PollInitial    time.Duration
	PollMax        time.Duration
	PollMaxAttempts int
	RPCTimeout     time.Duration
	OpTimeout      time.Duration
}

func DefaultATAConfig() ATAConfig {
	return ATAConfig{
		Enabled: false, PollInitial: 500 * time.Millisecond, PollMax: 2 * time.Second,
		PollMaxAttempts: 30, RPCTimeout: 2 * time.Second, OpTimeout: 120 * time.Second,
	}
}

// EnsureAccount implements spec §4.2.5: on AccountNotFound, build and submit
// an associated-token-account creation instruction funded and signed by the
// server wallet, await confirmation, then poll for the new account's
// existence with exponential backoff.
func EnsureAccount(ctx context.Context, rpc ports.RPCClient, bhCache *BlockhashCache, wallet *ServerWallet, owner, mint solana.PublicKey, submitter *Submitter, cfg ATAConfig) error {
	if !cfg.Enabled {
		return apperror.Of(apperror.KindNotFound, "account_not_found", "recipient token account does not exist and auto-create is disabled")
	}

	opCtx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
	defer cancel()

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return apperror.InternalError(err)
	}

	createIx := associated_token_account.NewCreateInstruction(wallet.PublicKey, owner, mint).Build()

	blockhashStr, err := bhCache.Get(opCtx)
	if err != nil {
		return apperror.Network("network", "failed to fetch blockhash for ata creation", err)
	}
	blockhash, err := solana.HashFromBase58(blockhashStr)
	if err != nil {
		return apperror.InternalError(err)
	}

	tx, err := solana.NewTransaction([]solana.Instruction{createIx}, blockhash, solana.TransactionPayer(wallet.PublicKey))
	if err != nil {
		return apperror.InternalError(err)
	}

	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return apperror.InternalError(err)
	}
	sig, err := wallet.keypair.Sign(msgBytes)
	if err != nil {
		return apperror.InternalError(err)
	}
	tx.Signatures = []solana.Signature{sig}

	rawTx, err := tx.MarshalBinary()
	if err != nil {
		return apperror.InternalError(err)
	}

	signature, err := submitter.Submit(opCtx, rawTx)
	if err != nil {
		return err
	}
	if err := submitter.Confirm(opCtx, signature); err != nil {
		return err
	}

	backoff := cfg.PollInitial
	for attempt := 0; attempt < cfg.PollMaxAttempts; attempt++ {
		exists, err := rpc.GetAccountInfo(opCtx, ata.String())
		if err == nil && exists {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > cfg.PollMax {
			backoff = cfg.PollMax
		}
	}
	return apperror.Of(apperror.KindUnavailable, "account_not_found", "token account was not observed after auto-create")
}
