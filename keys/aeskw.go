package keys

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
)

// AES-256 Key Wrap (RFC 3394 / NIST SP 800-38F), used by the dev keystore
// format (Keystore in keystore.go) to protect a signing private key at
// rest between treed runs.
var kwDefaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// aesKeyWrap wraps plaintext key material using AES-KW. kek must be 32
// bytes. keyIn must be 16..4096 bytes and a multiple of 8 bytes.
//
// Unlike a slice-of-8-byte-block implementation, this keeps the running
// ciphertext state (A ‖ R1 ‖ ... ‖ Rn) as one contiguous buffer and slides
// a window over it each round, which avoids per-block copies in and out of
// [8]byte arrays.
func aesKeyWrap(kek, keyIn []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, errors.New("aeskw: kek must be 32 bytes (AES-256)")
	}
	if len(keyIn) < 16 || len(keyIn) > 4096 || len(keyIn)%8 != 0 {
		return nil, errors.New("aeskw: keyIn must be 16..4096 bytes and multiple of 8")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(keyIn) / 8
	state := make([]byte, 8+len(keyIn))
	copy(state[:8], kwDefaultIV[:])
	copy(state[8:], keyIn)

	var cipherBlock, counterBytes [8]byte
	for j := 0; j < 6; j++ {
		for i := 1; i <= n; i++ {
			r := state[i*8 : (i+1)*8]

			var in [16]byte
			copy(in[:8], state[:8])
			copy(in[8:], r)
			block.Encrypt(in[:], in[:])

			binary.BigEndian.PutUint64(counterBytes[:], uint64(n*j+i))
			for k := range cipherBlock {
				cipherBlock[k] = in[k] ^ counterBytes[k]
			}
			copy(state[:8], cipherBlock[:])
			copy(r, in[8:])
		}
	}
	return state, nil
}

// aesKeyUnwrap unwraps an AES-KW blob and returns the plaintext key
// material. kek must be 32 bytes. wrapped must be 24..4104 bytes and a
// multiple of 8 bytes.
func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, errors.New("aeskw: kek must be 32 bytes (AES-256)")
	}
	if len(wrapped) < 24 || len(wrapped) > 4104 || len(wrapped)%8 != 0 {
		return nil, errors.New("aeskw: wrapped must be 24..4104 bytes and multiple of 8")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(wrapped)/8 - 1
	state := make([]byte, len(wrapped))
	copy(state, wrapped)

	var counterBytes [8]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			r := state[i*8 : (i+1)*8]

			binary.BigEndian.PutUint64(counterBytes[:], uint64(n*j+i))
			var in [16]byte
			for k := 0; k < 8; k++ {
				in[k] = state[k] ^ counterBytes[k]
			}
			copy(in[8:], r)
			block.Decrypt(in[:], in[:])
			copy(state[:8], in[:8])
			copy(r, in[8:])
		}
	}

	var a [8]byte
	copy(a[:], state[:8])
	if a != kwDefaultIV {
		return nil, errors.New("aeskw: integrity check failed")
	}
	return state[8:], nil
}
