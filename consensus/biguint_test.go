package consensus

import (
	"math/big"
	"testing"
)

func TestDumpLoadBiguintRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, 255, 256, 1 << 40} {
		n := big.NewInt(v)
		dumped, err := DumpBiguint(n, nil)
		if err != nil {
			t.Fatalf("dump %d: %v", v, err)
		}
		loaded, consumed, err := LoadBiguint(dumped)
		if err != nil {
			t.Fatalf("load %d: %v", v, err)
		}
		if consumed != len(dumped) {
			t.Fatalf("consumed %d want %d", consumed, len(dumped))
		}
		if loaded.Cmp(n) != 0 {
			t.Fatalf("got %s want %s", loaded, n)
		}
	}
}

func TestDumpBiguintRejectsNegative(t *testing.T) {
	if _, err := DumpBiguint(big.NewInt(-1), nil); err == nil {
		t.Fatalf("expected error for negative value")
	}
}

func TestU256FixedBytesRoundTrip(t *testing.T) {
	n := new(big.Int).SetUint64(0x0102030405060708)
	fixed, err := U256FixedBytes(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixed[31] != 0x08 || fixed[24] != 0x01 {
		t.Fatalf("unexpected layout: %x", fixed)
	}
	back := U256FromFixedBytes(fixed)
	if back.Cmp(n) != 0 {
		t.Fatalf("got %s want %s", back, n)
	}
}

func TestLoadU256RejectsOverflow(t *testing.T) {
	raw := make([]byte, 1+33)
	raw[0] = 33
	for i := 1; i < len(raw); i++ {
		raw[i] = 0xFF
	}
	if _, _, err := LoadU256(raw); err == nil {
		t.Fatalf("expected overflow error")
	}
}
