package x402

import (
	"context"

	"paywall-gateway/internal/core/ports"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCAdapter narrows *rpc.Client (gagliardetto/solana-go) to the
// ports.RPCClient surface the verifier calls through a circuit breaker.
type RPCAdapter struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

func NewRPCAdapter(rpcURL string, commitment string) *RPCAdapter {
	ct := rpc.CommitmentConfirmed
	switch commitment {
	case "processed":
		ct = rpc.CommitmentProcessed
	case "finalized":
		ct = rpc.CommitmentFinalized
	}
	return &RPCAdapter{client: rpc.New(rpcURL), commitment: ct}
}

func (a *RPCAdapter) SendTransaction(ctx context.Context, rawTx []byte, skipPreflight bool) (string, error) {
	decoded, decErr := decodeRawTransaction(rawTx)
	if decErr != nil {
		return "", decErr
	}
	sig, sendErr := a.client.SendTransactionWithOpts(ctx, decoded, rpc.TransactionOpts{
		SkipPreflight:       skipPreflight,
		PreflightCommitment: a.commitment,
	})
	if sendErr != nil {
		return "", sendErr
	}
	return sig.String(), nil
}

func (a *RPCAdapter) GetSignatureStatuses(ctx context.Context, signatures []string) ([]ports.SignatureStatus, error) {
	sigs := make([]solana.Signature, 0, len(signatures))
	for _, s := range signatures {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	out, err := a.client.GetSignatureStatuses(ctx, true, sigs...)
	if err != nil {
		return nil, err
	}
	result := make([]ports.SignatureStatus, len(sigs))
	for i, v := range out.Value {
		if v == nil {
			result[i] = ports.SignatureStatus{Found: false}
			continue
		}
		errStr := ""
		if v.Err != nil {
			errStr = "transaction failed"
		}
		result[i] = ports.SignatureStatus{
			ConfirmationStatus: string(v.ConfirmationStatus),
			Err:                errStr,
			Found:              true,
		}
	}
	return result, nil
}

func (a *RPCAdapter) GetLatestBlockhash(ctx context.Context) (string, error) {
	out, err := a.client.GetLatestBlockhash(ctx, a.commitment)
	if err != nil {
		return "", err
	}
	return out.Value.Blockhash.String(), nil
}

func (a *RPCAdapter) GetAccountInfo(ctx context.Context, address string) (bool, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return false, err
	}
	out, err := a.client.GetAccountInfo(ctx, pubkey)
	if err != nil {
		if err == rpc.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return out != nil && out.Value != nil, nil
}

func decodeRawTransaction(rawTx []byte) (*solana.Transaction, error) {
	return solana.TransactionFromDecoder(solana.NewBinDecoder(rawTx))
}

var _ ports.RPCClient = (*RPCAdapter)(nil)
