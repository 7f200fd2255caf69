package consensus

import "crypto/sha256"

// Hash is the consensus hash function: SHA-256, per spec §4.A. Every other
// package in this pack reaches for SHA3-256 or a keyed hash, but this
// protocol's wire format mandates plain SHA-256 — that is the spec'd
// primitive itself, not a stdlib fallback standing in for a missing
// library.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}
