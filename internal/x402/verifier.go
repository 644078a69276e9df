// Package x402 implements the on-chain verifier (C2): decodes a
// user-signed SPL token transfer, validates it against a Requirement,
// optionally co-signs as gas sponsor, submits it, and confirms it against a
// Solana RPC endpoint through a circuit breaker.
package x402

import (
	"regexp"
	"strings"
	"time"

	"paywall-gateway/internal/core/ports"
	"paywall-gateway/pkg/apperror"
	"paywall-gateway/pkg/money"

	"github.com/gagliardetto/solana-go"
)

// DefaultAccessTTL is the floor access window spec §4.2.3 step 4 grants a
// verified payment when the requirement names no quote TTL of its own.
const DefaultAccessTTL = 15 * time.Minute

// splTokenTransferOpcode and splTokenTransferCheckedOpcode are the SPL token
// program instruction discriminants relevant to payment verification.
const (
	splTokenTransferOpcode        = 3
	splTokenTransferCheckedOpcode = 12
)

var splTokenProgramID = solana.TokenProgramID
var splMemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// TransferDetails is what the instruction scan of spec §4.2.1 extracts from
// a TransferChecked instruction.
type TransferDetails struct {
	Source      solana.PublicKey
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Owner       solana.PublicKey
	Amount      uint64
	Decimals    uint8
}

// VerificationResult is returned to C5 on successful verification (spec §4.2.3).
type VerificationResult struct {
	Wallet       string
	AmountAtomic int64
	Signature    string
	ExpiresAt    time.Time
}

// accessExpiry computes expires_at = now + max(requirement.quote_ttl,
// DefaultAccessTTL): a requirement may widen the access window but never
// narrow it below the floor.
func accessExpiry(now time.Time, quoteTTL time.Duration) time.Time {
	ttl := DefaultAccessTTL
	if quoteTTL > ttl {
		ttl = quoteTTL
	}
	return now.Add(ttl)
}

// decodeTransaction decodes a base64-encoded versioned transaction. solana-go's
// TransactionFromBase64 accepts the same bincode-compatible wire format the
// Solana runtime itself produces.
func decodeTransaction(txBase64 string) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromBase64(txBase64)
	if err != nil {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_field", "invalid transaction: "+err.Error())
	}
	return tx, nil
}

// extractTransferDetails walks the message's instructions looking for the
// SPL token program. It rejects opcode 3 (plain Transfer) outright: that
// instruction does not carry the mint, so an attacker could substitute a
// worthless mint at the token-account level. Only opcode 12
// (TransferChecked) is accepted.
func extractTransferDetails(tx *solana.Transaction) (*TransferDetails, error) {
	keys := tx.Message.AccountKeys
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			continue
		}
		programID := keys[ix.ProgramIDIndex]
		if !programID.Equals(splTokenProgramID) || len(ix.Data) == 0 {
			continue
		}

		opcode := ix.Data[0]
		switch opcode {
		case splTokenTransferOpcode:
			return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof",
				"plain Transfer (opcode 3) not accepted; use TransferChecked (opcode 12) for security")
		case splTokenTransferCheckedOpcode:
			if len(ix.Accounts) < 4 || len(ix.Data) < 10 {
				continue
			}
			source := keys[ix.Accounts[0]]
			mint := keys[ix.Accounts[1]]
			dest := keys[ix.Accounts[2]]
			owner := keys[ix.Accounts[3]]
			amount := leUint64(ix.Data[1:9])
			decimals := ix.Data[9]
			return &TransferDetails{
				Source: source, Mint: mint, Destination: dest, Owner: owner,
				Amount: amount, Decimals: decimals,
			}, nil
		default:
			continue
		}
	}
	return nil, apperror.InvalidPaymentProof()
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// extractMemoText returns the UTF-8 payload of the first SPL-memo
// instruction, if any.
func extractMemoText(tx *solana.Transaction) (string, bool) {
	keys := tx.Message.AccountKeys
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			continue
		}
		if keys[ix.ProgramIDIndex].Equals(splMemoProgramID) {
			return string(ix.Data), true
		}
	}
	return "", false
}

var nonceCharRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8}$`)
var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// memoMatchesResource implements the three-way memo binding rule of spec
// §4.2.1 step 8.
func memoMatchesResource(memo, resourceID string) bool {
	if memo == resourceID {
		return true
	}
	if rest, ok := strings.CutPrefix(memo, resourceID+":"); ok {
		if nonceCharRe.MatchString(rest) || uuidRe.MatchString(rest) {
			return true
		}
	}
	if (strings.HasPrefix(resourceID, "cart:") || strings.HasPrefix(resourceID, "refund:")) && strings.HasSuffix(memo, resourceID) {
		return true
	}
	return false
}

func verifyMemo(tx *solana.Transaction, resourceID string) error {
	if resourceID == "" {
		return nil
	}
	memo, found := extractMemoText(tx)
	if !found {
		return apperror.MissingMemo()
	}
	if !memoMatchesResource(memo, resourceID) {
		return apperror.InvalidMemo()
	}
	return nil
}

// VerifyStatic performs the offline checks of spec §4.2.1: decode,
// instruction scan, mint/decimals/amount/recipient match, and memo binding.
// It does not touch the network.
func VerifyStatic(txBase64 string, req ports.Requirement, configuredNetwork string) (*TransferDetails, error) {
	if req.Network != "" && configuredNetwork != "" && req.Network != configuredNetwork {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_field", "payment proof network does not match configured network")
	}

	tx, err := decodeTransaction(txBase64)
	if err != nil {
		return nil, err
	}

	transfer, err := extractTransferDetails(tx)
	if err != nil {
		return nil, err
	}

	expectedMint, err := solana.PublicKeyFromBase58(req.TokenMint)
	if err != nil {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_field", "requirement token_mint is malformed")
	}
	if !transfer.Mint.Equals(expectedMint) {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "token mint mismatch")
	}

	if transfer.Decimals != req.TokenDecimals {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "token decimals mismatch")
	}

	required, err := requiredAtomicAmount(req, transfer.Decimals)
	if err != nil {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof", err.Error())
	}
	if !money.VerifyAmount(int64(transfer.Amount), required) {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "transferred amount is below the required amount")
	}

	expectedDest, err := solana.PublicKeyFromBase58(req.RecipientTokenAccount)
	if err != nil {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_field", "requirement recipient_token_account is malformed")
	}
	if !transfer.Destination.Equals(expectedDest) {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "recipient token account mismatch")
	}

	if err := verifyMemo(tx, req.ResourceID); err != nil {
		return nil, err
	}

	return transfer, nil
}

func requiredAtomicAmount(req ports.Requirement, decimals uint8) (int64, error) {
	if req.AmountAtomic != nil {
		return *req.AmountAtomic, nil
	}
	if req.AmountMajor != nil {
		return money.RequiredAtomicAmount(*req.AmountMajor, decimals)
	}
	return 0, apperror.MissingField("amount_atomic_or_major")
}
