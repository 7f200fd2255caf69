package store

import (
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"blockchaintree.dev/core/consensus"
)

// derivChainConfigFileName is wider than the main chain's (96 vs 64 bytes):
// it additionally carries the genesis_hash anchoring this derivative to
// the main chain (spec §4.E "Derivative chain differs in... genesis_hash
// is stored in place of an inception transaction").
const derivChainConfigFileName = "Chain.config"

// DerivativeChain is a per-miner side chain anchored to a main-chain block
// by genesis_hash (spec §4.E, GLOSSARY "Derivative chain"). It stores
// DerivativeBlocks under ./BlockChainTree/DERIVATIVES/<addr>/.
type DerivativeChain struct {
	mu sync.RWMutex

	dir         string
	kv          *chainKV
	height      *big.Int
	diff        [32]byte
	genesisHash [32]byte

	logger *zap.Logger
}

// OpenDerivativeChain opens (or initializes) the derivative chain for
// miner addr, spawned at mainChainBlockHash with initialDifficulty.
func OpenDerivativeChain(base string, addr consensus.Address, mainChainBlockHash [32]byte, initialDifficulty [32]byte, logger *zap.Logger) (*DerivativeChain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := DerivativeChainDir(base, addr)
	if err := ensureDir(dir); err != nil {
		return nil, wrapErr(CategoryDerivChain, KindInit, "mkdir", err)
	}
	kv, err := openChainKV(dir, false)
	if err != nil {
		return nil, err
	}

	d := &DerivativeChain{dir: dir, kv: kv, logger: logger}

	cfgPath := filepath.Join(dir, derivChainConfigFileName)
	if cfg, genesisHash, err := readDerivConfig(cfgPath); err == nil {
		d.height = cfg.Height
		d.diff = cfg.Difficulty
		d.genesisHash = genesisHash
		return d, nil
	} else if !isNotExist(err) {
		_ = kv.Close()
		return nil, wrapErr(CategoryDerivChain, KindInit, "read config", err)
	}

	d.height = big.NewInt(0)
	d.diff = initialDifficulty
	d.genesisHash = mainChainBlockHash
	if err := d.flushLocked(); err != nil {
		_ = kv.Close()
		return nil, err
	}
	return d, nil
}

func readDerivConfig(path string) (*chainConfig, [32]byte, error) {
	var genesisHash [32]byte
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, genesisHash, err
	}
	if len(raw) != 96 {
		return nil, genesisHash, newErr(CategoryDerivChain, KindDumpConfig, "config file must be 96 bytes")
	}
	cfg := &chainConfig{Height: new(big.Int).SetBytes(raw[:32])}
	copy(cfg.Difficulty[:], raw[32:64])
	copy(genesisHash[:], raw[64:96])
	return cfg, genesisHash, nil
}

func writeDerivConfig(path string, cfg *chainConfig, genesisHash [32]byte) error {
	heightFixed, err := heightToFixed32(cfg.Height)
	if err != nil {
		return wrapErr(CategoryDerivChain, KindDumpConfig, "height", err)
	}
	buf := make([]byte, 0, 96)
	buf = append(buf, heightFixed[:]...)
	buf = append(buf, cfg.Difficulty[:]...)
	buf = append(buf, genesisHash[:]...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return wrapErr(CategoryDerivChain, KindDumpConfig, "write", err)
	}
	return nil
}

// GenesisHash returns the main-chain block hash this derivative is
// anchored to.
func (d *DerivativeChain) GenesisHash() [32]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.genesisHash
}

func (d *DerivativeChain) Height() *big.Int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return new(big.Int).Set(d.height)
}

func (d *DerivativeChain) Difficulty() [32]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.diff
}

// AddBlock appends a DerivativeBlock at the chain's current height. Height
// 0 validates previous_hash against genesisHash directly since there is no
// locally stored predecessor; later heights run DerivativeBlock.Validate
// against the local predecessor (height, previous_hash, pow, timestamp).
// MainChain.AddBlock, by contrast, checks only the height.
func (d *DerivativeChain) AddBlock(b *consensus.DerivativeBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b.Info().Height.Cmp(d.height) != 0 {
		return newErr(CategoryDerivChain, KindAddingBlock, "block height does not match chain height")
	}

	if d.height.Sign() == 0 {
		if b.Info().PreviousHash != d.genesisHash {
			return newErr(CategoryDerivChain, KindAddingBlock, "previous_hash does not match genesis_hash")
		}
		if !consensus.CheckPow(b.Info().PreviousHash, d.diff, b.Info().Pow) {
			return newErr(CategoryDerivChain, KindWrongPow, "pow invalid against genesis difficulty")
		}
	} else {
		prevHeight := new(big.Int).Sub(d.height, big.NewInt(1))
		prevDump, ok, err := d.kv.getBlockByHeight(prevHeight)
		if err != nil {
			return wrapErr(CategoryDerivChain, KindAddingBlock, "load predecessor", err)
		}
		if !ok {
			return newErr(CategoryDerivChain, KindAddingBlock, "missing predecessor block")
		}
		prevBlk, err := consensus.ParseBlock(prevDump)
		if err != nil {
			return wrapErr(CategoryDerivChain, KindAddingBlock, "parse predecessor", err)
		}
		if err := b.Validate(prevBlk); err != nil {
			return wrapErr(CategoryDerivChain, KindFailedToVerifyBlock, "validate", err)
		}
	}

	dump, err := b.Dump()
	if err != nil {
		return wrapErr(CategoryDerivChain, KindAddingBlock, "dump", err)
	}
	hash, err := b.Hash()
	if err != nil {
		return wrapErr(CategoryDerivChain, KindAddingBlock, "hash", err)
	}
	if err := d.kv.putBlock(b.Info().Height, hash, dump); err != nil {
		return wrapErr(CategoryDerivChain, KindAddingBlock, "put", err)
	}
	d.height = new(big.Int).Add(d.height, big.NewInt(1))
	d.diff = b.Info().Difficulty
	return d.flushLocked()
}

func (d *DerivativeChain) FindByHeight(h *big.Int) (*consensus.DerivativeBlock, bool, error) {
	d.mu.RLock()
	tooHigh := h.Cmp(d.height) >= 0
	d.mu.RUnlock()
	if tooHigh {
		return nil, false, nil
	}
	dump, ok, err := d.kv.getBlockByHeight(h)
	if err != nil {
		return nil, false, wrapErr(CategoryDerivChain, KindFindByHeight, "get", err)
	}
	if !ok {
		return nil, false, nil
	}
	parsed, err := consensus.ParseBlock(dump)
	if err != nil {
		return nil, false, wrapErr(CategoryDerivChain, KindFindByHeight, "parse", err)
	}
	blk, ok := parsed.(*consensus.DerivativeBlock)
	if !ok {
		return nil, false, newErr(CategoryDerivChain, KindFindByHeight, "stored block is not a derivative block")
	}
	return blk, true, nil
}

func (d *DerivativeChain) FindByHash(hash [32]byte) (*consensus.DerivativeBlock, bool, error) {
	height, ok, err := d.kv.getHeightByHash(hash)
	if err != nil {
		return nil, false, wrapErr(CategoryDerivChain, KindFindByHash, "index lookup", err)
	}
	if !ok {
		return nil, false, nil
	}
	return d.FindByHeight(height)
}

func (d *DerivativeChain) GetLastBlock() (*consensus.DerivativeBlock, bool, error) {
	d.mu.RLock()
	prev := new(big.Int).Sub(d.height, big.NewInt(1))
	d.mu.RUnlock()
	if prev.Sign() < 0 {
		return nil, false, nil
	}
	return d.FindByHeight(prev)
}

func (d *DerivativeChain) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushLocked()
}

func (d *DerivativeChain) flushLocked() error {
	cfgPath := filepath.Join(d.dir, derivChainConfigFileName)
	if err := writeDerivConfig(cfgPath, &chainConfig{Height: d.height, Difficulty: d.diff}, d.genesisHash); err != nil {
		return err
	}
	if err := d.kv.Sync(); err != nil {
		return wrapErr(CategoryDerivChain, KindFlush, "sync kv", err)
	}
	return nil
}

func (d *DerivativeChain) Close() error {
	return d.kv.Close()
}
