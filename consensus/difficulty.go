package consensus

import "math/big"

var (
	beginningDifficultyBig = new(big.Int).SetBytes(BeginningDifficulty[:])
	maxDifficultyBig       = new(big.Int).SetBytes(MaxDifficulty[:])
)

// RecalculateDifficulty adjusts prevDifficulty by the ratio of the actual
// inter-block interval to TimePerBlock, clamped to [MaxDifficulty,
// BeginningDifficulty] (spec §4.H step 4). A smaller numeric target is a
// harder difficulty, so MaxDifficulty is the numeric lower bound and
// BeginningDifficulty the numeric upper bound of the allowed range.
func RecalculateDifficulty(prevDifficulty [32]byte, actualIntervalSeconds uint64) [32]byte {
	old := new(big.Int).SetBytes(prevDifficulty[:])
	if old.Sign() == 0 {
		old = new(big.Int).Set(beginningDifficultyBig)
	}
	if actualIntervalSeconds == 0 {
		actualIntervalSeconds = 1
	}

	next := new(big.Int).Mul(old, new(big.Int).SetUint64(actualIntervalSeconds))
	next.Div(next, new(big.Int).SetUint64(TimePerBlock))

	if next.Cmp(maxDifficultyBig) < 0 {
		next = new(big.Int).Set(maxDifficultyBig)
	}
	if next.Cmp(beginningDifficultyBig) > 0 {
		next = new(big.Int).Set(beginningDifficultyBig)
	}

	out, err := U256FixedBytes(next)
	if err != nil {
		return BeginningDifficulty
	}
	return out
}

// RecalculateFee derives the per-transaction fee credited to a block's
// founder from the current difficulty (spec §4.H step 5): fee scales
// inversely with the numeric difficulty value (harder difficulty, smaller
// target, higher fee), anchored at InitialFee for BeginningDifficulty.
func RecalculateFee(difficulty [32]byte) *big.Int {
	d := new(big.Int).SetBytes(difficulty[:])
	if d.Sign() == 0 {
		d = new(big.Int).Set(maxDifficultyBig)
	}
	fee := new(big.Int).Mul(big.NewInt(InitialFee), beginningDifficultyBig)
	fee.Div(fee, d)
	return fee
}
