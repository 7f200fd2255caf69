package consensus

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.zst")
	data := bytes.Repeat([]byte("block data "), 100)

	if err := CompressToFile(path, data); err != nil {
		t.Fatalf("CompressToFile: %v", err)
	}
	out, err := DecompressFromFile(path)
	if err != nil {
		t.Fatalf("DecompressFromFile: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch")
	}
}
