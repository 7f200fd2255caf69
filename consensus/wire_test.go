package consensus

import "testing"

func TestCursorReadExactTruncated(t *testing.T) {
	c := newCursor([]byte{1, 2, 3})
	if _, err := c.readExact(4); err == nil {
		t.Fatalf("expected error reading past end")
	}
}

func TestCursorU64RoundTrip(t *testing.T) {
	var buf []byte
	buf = appendU64BE(buf, 0x0102030405060708)
	c := newCursor(buf)
	got, err := c.readU64BE()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0x0102030405060708 {
		t.Fatalf("got %x", got)
	}
}

func TestCursorU16AndU32RoundTrip(t *testing.T) {
	var buf []byte
	buf = appendU16BE(buf, 0xABCD)
	buf = appendU32BE(buf, 0xDEADBEEF)
	c := newCursor(buf)
	gotU16, err := c.readU16BE()
	if err != nil || gotU16 != 0xABCD {
		t.Fatalf("u16 mismatch: got %x err %v", gotU16, err)
	}
	gotU32, err := c.readU32BE()
	if err != nil || gotU32 != 0xDEADBEEF {
		t.Fatalf("u32 mismatch: got %x err %v", gotU32, err)
	}
}
