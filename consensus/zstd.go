package consensus

import (
	"os"

	"github.com/klauspost/compress/zstd"
)

// CompressToFile zstd-compresses data at level 1 (SpeedFastest) and writes
// it to path, per spec §4.A.
func CompressToFile(path string, data []byte) error {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return wrapErr(CategoryCodec, KindZstdCompress, "new encoder", err)
	}
	defer enc.Close()

	compressed := enc.EncodeAll(data, nil)
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return wrapErr(CategoryCodec, KindZstdCompress, "write file", err)
	}
	return nil
}

// DecompressFromFile reads path and zstd-decompresses its contents.
func DecompressFromFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapErr(CategoryCodec, KindZstdDecompress, "read file", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, wrapErr(CategoryCodec, KindZstdDecompress, "new decoder", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, wrapErr(CategoryCodec, KindZstdDecompress, "decode", err)
	}
	return out, nil
}
