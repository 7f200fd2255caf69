// Package keys provides secp256k1 key generation and address derivation
// for the sender/founder addresses used throughout consensus (spec §3).
package keys

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"blockchaintree.dev/core/consensus"
)

// KeyPair is a secp256k1 private key plus its derived compressed-pubkey
// address.
type KeyPair struct {
	Private [32]byte
	Address consensus.Address
}

// Generate creates a fresh random key pair.
func Generate() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return FromPrivateKey(priv.Serialize())
}

// FromPrivateKey derives the KeyPair for a given 32-byte private scalar,
// e.g. consensus.RootPrivateKey.
func FromPrivateKey(priv [32]byte) (*KeyPair, error) {
	sk := secp256k1.PrivKeyFromBytes(priv[:])
	var addr consensus.Address
	copy(addr[:], sk.PubKey().SerializeCompressed())
	return &KeyPair{Private: priv, Address: addr}, nil
}

// Sign builds and signs a transaction on behalf of this key pair.
func (k *KeyPair) Sign(tx *consensus.Transaction) error {
	signed, err := consensus.NewTransaction(tx.Sender, tx.Receiver, tx.Timestamp, tx.Amount, k.Private[:], tx.Data)
	if err != nil {
		return err
	}
	tx.Signature = signed.Signature
	return nil
}
