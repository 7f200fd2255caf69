package consensus

import (
	"encoding/binary"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// HeaderTransaction is the on-disk variant byte for a bare Transaction
// record (spec §3).
const HeaderTransaction byte = 0

// AddressSize, HashSize and SignatureSize are the fixed wire widths from
// spec §3.
const (
	AddressSize   = 33
	HashSize      = 32
	SignatureSize = 64
)

type Address [AddressSize]byte

type Signature [SignatureSize]byte

// Transaction is a signed value transfer, spec §3/§4.C.
type Transaction struct {
	Sender    Address
	Receiver  Address
	Timestamp uint64
	Amount    *big.Int // U256
	Data      []byte   // optional, nil means absent
	Signature Signature
}

// signingPreimage builds header-byte ‖ sender ‖ receiver ‖ timestamp ‖
// dump(amount) ‖ data? — the bytes that get SHA-256'd and signed (spec §3).
func (t *Transaction) signingPreimage() ([]byte, error) {
	var buf []byte
	buf = append(buf, HeaderTransaction)
	buf = append(buf, t.Sender[:]...)
	buf = append(buf, t.Receiver[:]...)
	buf = appendU64BE(buf, t.Timestamp)
	var err error
	buf, err = DumpU256(t.Amount, buf)
	if err != nil {
		return nil, err
	}
	if t.Data != nil {
		buf = append(buf, t.Data...)
	}
	return buf, nil
}

// signedHash is SHA-256 of the signing preimage — the value that gets
// signed and that Verify recomputes.
func (t *Transaction) signedHash() [32]byte {
	preimage, err := t.signingPreimage()
	if err != nil {
		// Amount is always validated non-negative and <= 256 bits by the
		// caller (NewTransaction / ParseTransaction); this path is
		// unreachable in practice.
		return [32]byte{}
	}
	return Hash(preimage)
}

// NewTransaction builds and signs a Transaction with privateKey, a 32-byte
// secp256k1 scalar (spec §4.C).
func NewTransaction(sender, receiver Address, timestamp uint64, amount *big.Int, privateKey []byte, data []byte) (*Transaction, error) {
	t := &Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Timestamp: timestamp,
		Amount:    amount,
		Data:      data,
	}
	if _, err := t.signingPreimage(); err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxDump, "amount", err)
	}
	priv := secp256k1.PrivKeyFromBytes(privateKey)
	h := t.signedHash()
	sig64, err := signCompact(priv, h)
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxVerify, "sign", err)
	}
	t.Signature = sig64
	return t, nil
}

// signCompact produces the 64-byte R‖S compact signature spec §3 calls for,
// built on decred's recoverable-compact signer (65 bytes: 1 recovery byte +
// R‖S) with the recovery byte dropped, since the sender's public key is
// always carried alongside the signature in this wire format.
func signCompact(priv *secp256k1.PrivateKey, hash [32]byte) (Signature, error) {
	var out Signature
	sig65 := ecdsa.SignCompact(priv, hash[:], true)
	if len(sig65) != 65 {
		return out, newErr(CategoryTransaction, KindTxVerify, "unexpected compact signature length")
	}
	copy(out[:], sig65[1:])
	return out, nil
}

// verifyCompact checks a 64-byte R‖S signature against a compressed
// public key.
func verifyCompact(pubkeyCompressed []byte, hash [32]byte, sig Signature) (bool, error) {
	pub, err := secp256k1.ParsePubKey(pubkeyCompressed)
	if err != nil {
		return false, err
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return false, nil
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return false, nil
	}
	signature := ecdsa.NewSignature(&r, &s)
	return signature.Verify(hash[:], pub), nil
}

// Verify checks that Signature is a valid ECDSA signature of the signed
// hash under Sender as a compressed secp256k1 public key (spec §3).
// Verification failure is reported as (false, nil); only malformed key or
// signature bytes surface as an error.
func (t *Transaction) Verify() (bool, error) {
	h := t.signedHash()
	ok, err := verifyCompact(t.Sender[:], h, t.Signature)
	if err != nil {
		return false, wrapErr(CategoryTransaction, KindTxVerify, "malformed key or signature", err)
	}
	return ok, nil
}

// Hash is SHA-256 of header-byte ‖ sender ‖ receiver ‖ signature ‖
// timestamp ‖ dump(amount) ‖ data? — the signed hash plus the signature
// (spec §3). This is the transaction's identity, referenced by blocks.
func (t *Transaction) Hash() [32]byte {
	var buf []byte
	buf = append(buf, HeaderTransaction)
	buf = append(buf, t.Sender[:]...)
	buf = append(buf, t.Receiver[:]...)
	buf = append(buf, t.Signature[:]...)
	buf = appendU64BE(buf, t.Timestamp)
	buf, _ = DumpU256(t.Amount, buf)
	if t.Data != nil {
		buf = append(buf, t.Data...)
	}
	return Hash(buf)
}

// HashWithoutSignature is SHA-256 of the signing preimage, exposed for
// callers that need the pre-signature identity (e.g. replay checks against
// an unsigned template).
func (t *Transaction) HashWithoutSignature() [32]byte {
	return t.signedHash()
}

// Dump serializes t to its canonical wire bytes:
// header(1) ‖ sender(33) ‖ receiver(33) ‖ timestamp(8) ‖ dump(amount) ‖
// signature(64) ‖ data_len(2) ‖ data.
func (t *Transaction) Dump() ([]byte, error) {
	var buf []byte
	buf = append(buf, HeaderTransaction)
	buf = append(buf, t.Sender[:]...)
	buf = append(buf, t.Receiver[:]...)
	buf = appendU64BE(buf, t.Timestamp)
	var err error
	buf, err = DumpU256(t.Amount, buf)
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxDump, "amount", err)
	}
	buf = append(buf, t.Signature[:]...)
	if len(t.Data) > 0xFFFF {
		return nil, newErr(CategoryTransaction, KindTxDump, "data exceeds 65535 bytes")
	}
	buf = appendU16BE(buf, uint16(len(t.Data)))
	buf = append(buf, t.Data...)
	return buf, nil
}

// ParseTransaction is the exact inverse of Dump minus its leading header
// byte: data starts at the sender field, and callers strip and check the
// header byte first (store.MainChain.GetTransaction does). A zero-length
// Data round-trips as nil rather than
// an empty non-nil slice; harmless since the spec treats Data as optional,
// but a struct built with Data: []byte{} won't compare bit-equal to its
// parsed-back form.
func ParseTransaction(data []byte) (*Transaction, error) {
	c := newCursor(data)
	sender, err := c.readExact(AddressSize)
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxParse, "sender", err)
	}
	receiver, err := c.readExact(AddressSize)
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxParse, "receiver", err)
	}
	timestamp, err := c.readU64BE()
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxParse, "timestamp", err)
	}
	amount, consumed, err := LoadU256(c.b[c.pos:])
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxParse, "amount", err)
	}
	c.pos += consumed
	sig, err := c.readExact(SignatureSize)
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxParse, "signature", err)
	}
	dataLen, err := c.readU16BE()
	if err != nil {
		return nil, wrapErr(CategoryTransaction, KindTxParse, "data length", err)
	}
	var data []byte
	if dataLen > 0 {
		d, err := c.readExact(int(dataLen))
		if err != nil {
			return nil, wrapErr(CategoryTransaction, KindTxParse, "data", err)
		}
		data = append([]byte(nil), d...)
	}

	t := &Transaction{Timestamp: timestamp, Amount: amount, Data: data}
	copy(t.Sender[:], sender)
	copy(t.Receiver[:], receiver)
	copy(t.Signature[:], sig)
	return t, nil
}

// TxLess implements the pool's total order (spec §4.C): timestamp
// ascending, ties broken by hash compared as four 64-bit big-endian
// limbs. The pool's heap is a min-heap over this order, so the
// earliest-timestamp transaction is popped first with no inversion
// needed.
func TxLess(a, b *Transaction) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	ha, hb := a.Hash(), b.Hash()
	for i := 0; i < 32; i += 8 {
		la := binary.BigEndian.Uint64(ha[i : i+8])
		lb := binary.BigEndian.Uint64(hb[i : i+8])
		if la != lb {
			return la < lb
		}
	}
	return false
}
