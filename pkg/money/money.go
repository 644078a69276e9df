// Package money implements the gateway's atomic-unit money representation
// (spec §3): amounts are always carried as integer atomic units alongside
// an asset code and decimal count, and are converted to a human decimal
// only at display time.
package money

import (
	"fmt"
	"math"
)

// Money is {asset_code, atomic_amount, decimals} per spec §3.
type Money struct {
	AssetCode    string `json:"asset_code"`
	AtomicAmount int64  `json:"atomic_amount"`
	Decimals     uint8  `json:"decimals"`
}

// New constructs a Money value.
func New(assetCode string, atomicAmount int64, decimals uint8) Money {
	return Money{AssetCode: assetCode, AtomicAmount: atomicAmount, Decimals: decimals}
}

// Major returns the human decimal representation, for display only.
func (m Money) Major() float64 {
	return float64(m.AtomicAmount) / math.Pow10(int(m.Decimals))
}

// Add returns the sum of m and o. Both must share an asset code and
// decimals; callers that mix assets have a programming error.
func (m Money) Add(o Money) Money {
	return Money{AssetCode: m.AssetCode, AtomicAmount: m.AtomicAmount + o.AtomicAmount, Decimals: m.Decimals}
}

// String renders a human-readable amount, e.g. "12.340000 USDC".
func (m Money) String() string {
	return fmt.Sprintf("%.*f %s", m.Decimals, m.Major(), m.AssetCode)
}

// exactIntegerBoundary is 2^53, the largest integer an IEEE-754 float64
// represents exactly.
const exactIntegerBoundary = 1 << 53

// RequiredAtomicAmount converts a major-unit amount to atomic units applying
// the two precision safeguards of spec §4.2.1 step 6: reject amounts whose
// scaled value would exceed the f64 exact-integer boundary, and reject
// amounts whose atomic->major->atomic round trip drifts by more than
// 2/10^decimals.
func RequiredAtomicAmount(majorAmount float64, decimals uint8) (int64, error) {
	scale := math.Pow10(int(decimals))
	scaled := majorAmount * scale
	if scaled > exactIntegerBoundary {
		return 0, fmt.Errorf("major amount %.10f at %d decimals exceeds the f64 exact-integer boundary", majorAmount, decimals)
	}
	atomic := int64(math.Round(scaled))

	roundTrip := float64(atomic) / scale
	roundTripAtomic := int64(math.Round(roundTrip * scale))
	drift := roundTripAtomic - atomic
	if drift < 0 {
		drift = -drift
	}
	const maxDrift = int64(2)
	if drift > maxDrift {
		return 0, fmt.Errorf("amount %.10f drifts by %d atomic units on round trip, exceeding the %d unit tolerance", majorAmount, drift, maxDrift)
	}
	return atomic, nil
}

// VerifyAmount implements spec §4.2.1 step 6's acceptance rule and the
// boundary test of §8: the transferred amount is accepted when
// transferred+1 >= required, i.e. transferred may fall short of required
// by at most one atomic unit.
func VerifyAmount(transferredAtomic, requiredAtomic int64) bool {
	return transferredAtomic+1 >= requiredAtomic
}
