package x402

import (
	"testing"
	"time"

	"paywall-gateway/internal/core/ports"

	"github.com/stretchr/testify/assert"
)

func TestAccessExpiry_FloorAppliedWhenQuoteTTLUnset(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := accessExpiry(now, 0)
	assert.Equal(t, now.Add(DefaultAccessTTL), got)
}

func TestAccessExpiry_WidensBeyondFloor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := accessExpiry(now, time.Hour)
	assert.Equal(t, now.Add(time.Hour), got)
}

func TestAccessExpiry_NeverNarrowsBelowFloor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := accessExpiry(now, time.Minute)
	assert.Equal(t, now.Add(DefaultAccessTTL), got)
}

func TestMemoMatchesResource_ExactMatch(t *testing.T) {
	assert.True(t, memoMatchesResource("product-1", "product-1"))
}

func TestMemoMatchesResource_NonceSuffix(t *testing.T) {
	assert.True(t, memoMatchesResource("product-1:abcDEF12", "product-1"))
}

func TestMemoMatchesResource_UUIDSuffix(t *testing.T) {
	assert.True(t, memoMatchesResource("product-1:550e8400-e29b-41d4-a716-446655440000", "product-1"))
}

func TestMemoMatchesResource_CartPrefixSuffixMatch(t *testing.T) {
	assert.True(t, memoMatchesResource("order for cart:abc123", "cart:abc123"))
}

func TestMemoMatchesResource_Mismatch(t *testing.T) {
	assert.False(t, memoMatchesResource("product-2", "product-1"))
}

func TestMemoMatchesResource_InvalidNonceSuffixRejected(t *testing.T) {
	assert.False(t, memoMatchesResource("product-1:short", "product-1"))
}

func TestRequiredAtomicAmount_PrefersAmountAtomic(t *testing.T) {
	atomic := int64(5000)
	req := ports.Requirement{AmountAtomic: &atomic}
	got, err := requiredAtomicAmount(req, 6)
	assert.NoError(t, err)
	assert.Equal(t, int64(5000), got)
}

func TestRequiredAtomicAmount_FallsBackToMajor(t *testing.T) {
	major := 1.5
	req := ports.Requirement{AmountMajor: &major}
	got, err := requiredAtomicAmount(req, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(150), got)
}

func TestRequiredAtomicAmount_MissingBothRejected(t *testing.T) {
	_, err := requiredAtomicAmount(ports.Requirement{}, 6)
	assert.Error(t, err)
}

func TestVerifyStatic_InvalidBase64Rejected(t *testing.T) {
	req := ports.Requirement{TokenMint: "So11111111111111111111111111111111111111112", RecipientTokenAccount: "So11111111111111111111111111111111111111112"}
	_, err := VerifyStatic("not-valid-base64!!", req, "mainnet")
	assert.Error(t, err)
}

func TestVerifyStatic_NetworkMismatchRejected(t *testing.T) {
	req := ports.Requirement{Network: "devnet"}
	_, err := VerifyStatic("", req, "mainnet")
	assert.Error(t, err)
}

func TestVerifyStatic_EmptyTransactionRejected(t *testing.T) {
	req := ports.Requirement{TokenMint: "not-a-valid-pubkey", RecipientTokenAccount: "So11111111111111111111111111111111111111112"}
	// An empty-but-valid-base64 transaction fails to decode before the
	// mint is even checked; this exercises the decode-error path,
	// confirming VerifyStatic never panics on malformed input.
	_, err := VerifyStatic("", req, "")
	assert.Error(t, err)
}
