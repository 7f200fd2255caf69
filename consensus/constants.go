package consensus

import "github.com/decred/dcrd/dcrec/secp256k1/v4"

// Protocol-wide constants, spec §6.
const (
	InceptionTimestamp uint64 = 1597924800
	BlocksPerEpoch     uint64 = 12960
	TimePerBlock       uint64 = 600 // seconds

	CoinFractions = 1_000_000_000_000_000_000 // 10^18
	InitialFee    = 25_000_000_000_000_000    // 25 * 10^15

	MainChainPayment = 2 * CoinFractions
)

// BeginningDifficulty is the easy genesis target: [0x7F, 0xFF, ..., 0xFF].
var BeginningDifficulty = func() [32]byte {
	var d [32]byte
	d[0] = 0x7F
	for i := 1; i < 32; i++ {
		d[i] = 0xFF
	}
	return d
}()

// MaxDifficulty is the hardest allowed target: [0;31, 128].
var MaxDifficulty = func() [32]byte {
	var d [32]byte
	d[31] = 128
	return d
}()

// RootPrivateKey is [1;32], 32 bytes each set to 1, the seed used to derive
// the protocol's inception account.
var RootPrivateKey = func() [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = 1
	}
	return k
}()

// RootPublicAddress is the compressed secp256k1 public key derived from
// RootPrivateKey.
var RootPublicAddress = func() Address {
	priv := secp256k1.PrivKeyFromBytes(RootPrivateKey[:])
	var addr Address
	copy(addr[:], priv.PubKey().SerializeCompressed())
	return addr
}()
