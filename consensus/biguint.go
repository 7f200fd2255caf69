package consensus

import "math/big"

// DumpBiguint writes n as one length byte followed by n's minimal
// big-endian byte representation (spec §3/§4.A). It fails if the byte
// length exceeds 255, since the length prefix is a single byte.
func DumpBiguint(n *big.Int, buf []byte) ([]byte, error) {
	if n == nil {
		n = new(big.Int)
	}
	if n.Sign() < 0 {
		return nil, newErr(CategoryCodec, KindBiguintDump, "biguint must be non-negative")
	}
	be := n.Bytes()
	if len(be) > 255 {
		return nil, newErr(CategoryCodec, KindBiguintDump, "biguint exceeds 255 bytes")
	}
	buf = append(buf, byte(len(be)))
	buf = append(buf, be...)
	return buf, nil
}

// LoadBiguint reads a length-prefixed big integer and returns the decoded
// value plus the number of bytes consumed from data's front.
func LoadBiguint(data []byte) (*big.Int, int, error) {
	if len(data) < 1 {
		return nil, 0, newErr(CategoryCodec, KindBiguintLoad, "missing length byte")
	}
	l := int(data[0])
	if len(data) < 1+l {
		return nil, 0, newErr(CategoryCodec, KindBiguintLoad, "truncated biguint body")
	}
	n := new(big.Int).SetBytes(data[1 : 1+l])
	return n, 1 + l, nil
}

// DumpU256 writes n as a length byte followed by n's minimal big-endian
// bytes, same shape as DumpBiguint but bounded to 32 bytes — callers that
// need the fixed 32-byte wire width (block height/difficulty fields) use
// U256FixedBytes instead.
func DumpU256(n *big.Int, buf []byte) ([]byte, error) {
	if n == nil {
		n = new(big.Int)
	}
	if n.Sign() < 0 {
		return nil, newErr(CategoryCodec, KindBiguintDump, "u256 must be non-negative")
	}
	be := n.Bytes()
	if len(be) > 32 {
		return nil, newErr(CategoryCodec, KindBiguintDump, "u256 overflow")
	}
	buf = append(buf, byte(len(be)))
	buf = append(buf, be...)
	return buf, nil
}

// LoadU256 mirrors LoadBiguint but additionally rejects a decoded value
// that would not fit in 256 bits.
func LoadU256(data []byte) (*big.Int, int, error) {
	n, consumed, err := LoadBiguint(data)
	if err != nil {
		return nil, 0, err
	}
	if n.BitLen() > 256 {
		return nil, 0, newErr(CategoryCodec, KindBiguintLoad, "u256 overflow")
	}
	return n, consumed, nil
}

// U256Size returns the number of bytes DumpU256 would write for n.
func U256Size(n *big.Int) int {
	if n == nil {
		return 1
	}
	return 1 + len(n.Bytes())
}

// U256FixedBytes renders n as a fixed 32-byte big-endian array, used for
// wire fields that are always 32 bytes wide (height, difficulty) rather
// than length-prefixed (spec §3 BasicInfo).
func U256FixedBytes(n *big.Int) ([32]byte, error) {
	var out [32]byte
	if n == nil {
		return out, nil
	}
	if n.Sign() < 0 {
		return out, newErr(CategoryCodec, KindBiguintDump, "u256 must be non-negative")
	}
	be := n.Bytes()
	if len(be) > 32 {
		return out, newErr(CategoryCodec, KindBiguintDump, "u256 exceeds 32 bytes")
	}
	copy(out[32-len(be):], be)
	return out, nil
}

// U256FromFixedBytes is the inverse of U256FixedBytes.
func U256FromFixedBytes(b [32]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}
