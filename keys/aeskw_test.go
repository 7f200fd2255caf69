package keys

import (
	"bytes"
	"testing"
)

func TestAESKeyWrapRoundtrip(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	keyIn := bytes.Repeat([]byte{0x22}, 32)
	wrapped, err := aesKeyWrap(kek, keyIn)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := aesKeyUnwrap(kek, wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, keyIn) {
		t.Fatalf("unwrap mismatch")
	}
}

func TestAESKeyUnwrapRejectsTamperedData(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	keyIn := bytes.Repeat([]byte{0x22}, 32)
	wrapped, err := aesKeyWrap(kek, keyIn)
	if err != nil {
		t.Fatal(err)
	}
	wrapped[0] ^= 0xFF
	if _, err := aesKeyUnwrap(kek, wrapped); err == nil {
		t.Fatalf("expected integrity check failure")
	}
}
