package x402

import (
	"paywall-gateway/pkg/apperror"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/bcrypt"
)

// ServerWallet is a gas-sponsor keypair configured for gasless co-signing.
type ServerWallet struct {
	PublicKey solana.PublicKey
	keypair   solana.PrivateKey

	fingerprint string // lazily computed, cf. Fingerprint
}

func NewServerWallet(base58Key string) (*ServerWallet, error) {
	pk, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, apperror.Of(apperror.KindInvalid, "invalid_field", "invalid server wallet key: "+err.Error())
	}
	return &ServerWallet{PublicKey: pk.PublicKey(), keypair: pk}, nil
}

// Fingerprint returns a short, non-reversible identifier for this wallet
// suitable for health-report/log lines ("wallet fp=6a3c... is critical")
// that never print the key itself. Computed once per process and cached;
// bcrypt's built-in salt means the value is stable only for this process's
// lifetime, which is all the health reporter needs.
func (w *ServerWallet) Fingerprint() string {
	if w.fingerprint == "" {
		sum, err := bcrypt.GenerateFromPassword(w.keypair[:8], bcrypt.DefaultCost)
		if err != nil {
			w.fingerprint = w.PublicKey.String()[:8]
		} else {
			w.fingerprint = string(sum[len(sum)-8:])
		}
	}
	return w.fingerprint
}

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// gaslessAllowlist names the programs a gasless co-sign transaction may
// invoke (spec §4.2.2 step 3): SPL token, SPL associated token account,
// memo, and compute budget. Any other program is a gasless abuse attempt.
var gaslessAllowlist = map[solana.PublicKey]bool{
	solana.TokenProgramID:                     true,
	solana.SPLAssociatedTokenAccountProgramID: true,
	splMemoProgramID:                          true,
	computeBudgetProgramID:                    true,
}

// validateGaslessAllowlist rejects any transaction that invokes a program
// outside the gasless allowlist.
func validateGaslessAllowlist(tx *solana.Transaction) error {
	for _, key := range tx.Message.AccountKeys {
		isProgram := false
		for _, ix := range tx.Message.Instructions {
			if int(ix.ProgramIDIndex) < len(tx.Message.AccountKeys) && tx.Message.AccountKeys[ix.ProgramIDIndex].Equals(key) {
				isProgram = true
				break
			}
		}
		if isProgram && !gaslessAllowlist[key] {
			return apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "transaction invokes a program outside the gasless allowlist")
		}
	}
	return nil
}

// CoSign implements spec §4.2.2: validates the fee payer slot and the
// program allowlist, then signs the message with the server wallet's key,
// placing the signature in slot 0.
func (w *ServerWallet) CoSign(tx *solana.Transaction, feePayer solana.PublicKey) error {
	if !feePayer.Equals(w.PublicKey) {
		return apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "fee payer does not match a configured server wallet")
	}
	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(w.PublicKey) {
		return apperror.Of(apperror.KindInvalid, "invalid_payment_proof", "fee payer slot does not match the server wallet")
	}
	if err := validateGaslessAllowlist(tx); err != nil {
		return err
	}

	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return apperror.InternalError(err)
	}
	sig, err := w.keypair.Sign(msgBytes)
	if err != nil {
		return apperror.InternalError(err)
	}
	if len(tx.Signatures) == 0 {
		tx.Signatures = make([]solana.Signature, 1)
	}
	tx.Signatures[0] = sig
	return nil
}

// FindServerWallet returns the configured wallet matching pubkey, if any.
func FindServerWallet(wallets []*ServerWallet, pubkey solana.PublicKey) *ServerWallet {
	for _, w := range wallets {
		if w.PublicKey.Equals(pubkey) {
			return w
		}
	}
	return nil
}
