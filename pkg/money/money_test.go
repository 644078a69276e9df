package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd(t *testing.T) {
	a := New("USDC", 1000, 6)
	b := New("USDC", 500, 6)
	assert.Equal(t, New("USDC", 1500, 6), a.Add(b))
}

func TestString(t *testing.T) {
	m := New("USDC", 12340000, 6)
	assert.Equal(t, "12.340000 USDC", m.String())
}

func TestMajor(t *testing.T) {
	m := New("USD", 1999, 2)
	assert.InDelta(t, 19.99, m.Major(), 0.0001)
}

func TestRequiredAtomicAmount(t *testing.T) {
	atomic, err := RequiredAtomicAmount(19.99, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(1999), atomic)
}

func TestRequiredAtomicAmount_ExceedsBoundary(t *testing.T) {
	_, err := RequiredAtomicAmount(1e20, 6)
	assert.Error(t, err)
}

func TestVerifyAmount_ExactMatch(t *testing.T) {
	assert.True(t, VerifyAmount(1000, 1000))
}

func TestVerifyAmount_OneUnitShortfallAllowed(t *testing.T) {
	assert.True(t, VerifyAmount(999, 1000))
}

func TestVerifyAmount_TwoUnitShortfallRejected(t *testing.T) {
	assert.False(t, VerifyAmount(998, 1000))
}

func TestVerifyAmount_Overpayment(t *testing.T) {
	assert.True(t, VerifyAmount(1500, 1000))
}
