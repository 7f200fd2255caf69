package store

import (
	"math/big"
	"os"
)

// chainConfig is the small on-disk file holding height(32) ‖ difficulty(32)
// (spec §4.E/§6, Chain.config).
type chainConfig struct {
	Height     *big.Int
	Difficulty [32]byte
}

func readChainConfig(path string) (*chainConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) != 64 {
		return nil, newErr(CategoryChain, KindDumpConfig, "config file must be 64 bytes")
	}
	cfg := &chainConfig{Height: new(big.Int).SetBytes(raw[:32])}
	copy(cfg.Difficulty[:], raw[32:])
	return cfg, nil
}

func writeChainConfig(path string, cfg *chainConfig) error {
	heightFixed, err := heightToFixed32(cfg.Height)
	if err != nil {
		return wrapErr(CategoryChain, KindDumpConfig, "height", err)
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, heightFixed[:]...)
	buf = append(buf, cfg.Difficulty[:]...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return wrapErr(CategoryChain, KindDumpConfig, "write", err)
	}
	return nil
}

func heightToFixed32(n *big.Int) ([32]byte, error) {
	var out [32]byte
	if n == nil {
		return out, nil
	}
	be := n.Bytes()
	if len(be) > 32 {
		return out, newErr(CategoryChain, KindDumpConfig, "height overflow")
	}
	copy(out[32-len(be):], be)
	return out, nil
}
