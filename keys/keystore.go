package keys

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"
)

// Keystore is the on-disk encrypted key file format for the example CLI
// driver (cmd/treed), adapted from the teacher's RBKSv1 wrapped-keystore
// shape (node/keymgr.go) but simplified to this protocol's single
// secp256k1 scalar instead of a post-quantum ML-DSA/SLH-DSA key.
type Keystore struct {
	Version      string `json:"version"` // "BCTKSv1"
	AddressHex   string `json:"address_hex"`
	WrapAlg      string `json:"wrap_alg"` // "AES-256-KW"
	KdfAlg       string `json:"kdf_alg"`  // "scrypt"
	KdfSaltHex   string `json:"kdf_salt_hex"`
	WrappedSKHex string `json:"wrapped_sk_hex"`
}

const keystoreVersion = "BCTKSv1"

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	scryptSaltLen = 16
)

// padTo8 returns the key material as an AES-KW input, which must be a
// multiple of 8 bytes. A 32-byte key already is, so it returns a plain
// copy: no padding and no length byte are added.
func padTo8(sk [32]byte) []byte {
	// 32 is already a multiple of 8; no padding needed, but keep the helper
	// symmetric in case a future key size isn't.
	out := make([]byte, 32)
	copy(out, sk[:])
	return out
}

// Seal encrypts priv under a key derived from passphrase and writes a
// Keystore JSON file to path. A fresh random scrypt salt is generated
// per call so Open can re-derive the same key-encryption key later.
func Seal(priv [32]byte, passphrase string, path string) error {
	kp, err := FromPrivateKey(priv)
	if err != nil {
		return err
	}
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keystore: salt: %w", err)
	}
	kek, err := deriveKEK(passphrase, salt)
	if err != nil {
		return fmt.Errorf("keystore: kdf: %w", err)
	}
	wrapped, err := aesKeyWrap(kek, padTo8(priv))
	if err != nil {
		return fmt.Errorf("keystore: wrap: %w", err)
	}
	ks := Keystore{
		Version:      keystoreVersion,
		AddressHex:   hex.EncodeToString(kp.Address[:]),
		WrapAlg:      "AES-256-KW",
		KdfAlg:       "scrypt",
		KdfSaltHex:   hex.EncodeToString(salt),
		WrappedSKHex: hex.EncodeToString(wrapped),
	}
	b, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o600)
}

// Open reads a Keystore file, re-derives its key-encryption key from
// passphrase and the stored salt, and returns the recovered KeyPair.
func Open(path string, passphrase string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks Keystore
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, fmt.Errorf("keystore: parse: %w", err)
	}
	if ks.Version != keystoreVersion {
		return nil, fmt.Errorf("keystore: unsupported version %q", ks.Version)
	}
	if ks.KdfAlg != "scrypt" {
		return nil, fmt.Errorf("keystore: unsupported kdf_alg %q", ks.KdfAlg)
	}
	salt, err := hex.DecodeString(ks.KdfSaltHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: kdf_salt_hex: %w", err)
	}
	kek, err := deriveKEK(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("keystore: kdf: %w", err)
	}
	wrapped, err := hex.DecodeString(ks.WrappedSKHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: wrapped_sk_hex: %w", err)
	}
	plain, err := aesKeyUnwrap(kek, wrapped)
	if err != nil {
		return nil, fmt.Errorf("keystore: unwrap: %w", err)
	}
	if len(plain) != 32 {
		return nil, fmt.Errorf("keystore: unexpected key length %d", len(plain))
	}
	var priv [32]byte
	copy(priv[:], plain)
	kp, err := FromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(kp.Address[:]) != ks.AddressHex {
		return nil, fmt.Errorf("keystore: address mismatch after unwrap — wrong passphrase?")
	}
	return kp, nil
}

// deriveKEK derives a 32-byte AES key-encryption key from an operator
// passphrase and a per-keystore salt via scrypt.
func deriveKEK(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
}
