package x402

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) *ServerWallet {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return &ServerWallet{PublicKey: pk.PublicKey(), keypair: pk}
}

func TestNewServerWallet_RejectsInvalidKey(t *testing.T) {
	_, err := NewServerWallet("not-a-valid-key")
	assert.Error(t, err)
}

func TestFingerprint_NeverContainsKeyMaterial(t *testing.T) {
	w := newTestWallet(t)
	fp := w.Fingerprint()
	assert.NotEmpty(t, fp)
	assert.NotContains(t, fp, w.keypair.String())
}

func TestFingerprint_StableWithinProcess(t *testing.T) {
	w := newTestWallet(t)
	first := w.Fingerprint()
	second := w.Fingerprint()
	assert.Equal(t, first, second, "fingerprint must be cached, not recomputed with a fresh bcrypt salt each call")
}

func TestFingerprint_DifferentWalletsDiffer(t *testing.T) {
	a := newTestWallet(t)
	b := newTestWallet(t)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFindServerWallet_MatchesByPublicKey(t *testing.T) {
	a := newTestWallet(t)
	b := newTestWallet(t)
	got := FindServerWallet([]*ServerWallet{a, b}, b.PublicKey)
	assert.Same(t, b, got)
}

func TestFindServerWallet_NoMatch(t *testing.T) {
	a := newTestWallet(t)
	other := newTestWallet(t)
	got := FindServerWallet([]*ServerWallet{a}, other.PublicKey)
	assert.Nil(t, got)
}

func TestWalletRouter_FindMatchesDeclaredFeePayer(t *testing.T) {
	a := newTestWallet(t)
	b := newTestWallet(t)
	router := NewWalletRouter([]*ServerWallet{a, b}, nil)
	assert.Same(t, b, router.Find(b.PublicKey))
}

func TestWalletRouter_FindNoMatch(t *testing.T) {
	a := newTestWallet(t)
	other := newTestWallet(t)
	router := NewWalletRouter([]*ServerWallet{a}, nil)
	assert.Nil(t, router.Find(other.PublicKey))
}
