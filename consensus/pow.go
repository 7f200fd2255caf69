package consensus

import (
	"bytes"
	"math/big"
)

// CheckPow verifies that SHA-256(prevHash ‖ pow.be_bytes()) is at most
// difficulty, compared as four 64-bit big-endian limbs (spec §4.A/§9).
//
// The source computes this comparison via an endianness-sensitive
// transmute of the digest into four u64 limbs; because both digest and
// difficulty are already big-endian 32-byte arrays, limb-wise comparison
// in limb order is equivalent to a plain byte-wise lexicographic compare,
// which is what this implementation does.
func CheckPow(prevHash [32]byte, difficulty [32]byte, pow *big.Int) bool {
	if pow == nil {
		pow = new(big.Int)
	}
	preimage := make([]byte, 0, 32+32)
	preimage = append(preimage, prevHash[:]...)
	preimage = append(preimage, pow.Bytes()...)
	digest := Hash(preimage)
	return bytes.Compare(digest[:], difficulty[:]) <= 0
}
