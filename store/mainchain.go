package store

import (
	"math/big"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"blockchaintree.dev/core/consensus"
)

const chainConfigFileName = "Chain.config"

// MainChain is the authoritative ledger of value-transfer blocks (spec
// §4.E, GLOSSARY "Main chain"). It owns three bbolt-backed stores and the
// in-memory height/difficulty pair, mutated under an exclusive lock so
// concurrent AddBlock calls at the same height never both succeed (spec
// §5).
type MainChain struct {
	mu sync.RWMutex

	dir    string
	kv     *chainKV
	height *big.Int
	diff   [32]byte

	logger *zap.Logger
}

// OpenMainChain opens (or cold-initializes) the main chain rooted at
// store.MainDir(base). A missing Chain.config means this is a fresh
// chain: height is set to 0, difficulty to BeginningDifficulty, and a
// genesis SummarizeBlock is written at height 0 built from an inception
// transaction sending zero from ROOT to ROOT at InceptionTimestamp (spec
// §4.E Initialization).
func OpenMainChain(base string, logger *zap.Logger) (*MainChain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := MainDir(base)
	if err := ensureDir(dir); err != nil {
		return nil, wrapErr(CategoryChain, KindInit, "mkdir", err)
	}
	kv, err := openChainKV(dir, true)
	if err != nil {
		return nil, err
	}

	c := &MainChain{dir: dir, kv: kv, logger: logger}

	cfgPath := filepath.Join(dir, chainConfigFileName)
	cfg, err := readChainConfig(cfgPath)
	if err != nil {
		if !isNotExist(err) {
			_ = kv.Close()
			return nil, wrapErr(CategoryChain, KindInit, "read config", err)
		}
		if err := c.initGenesis(); err != nil {
			_ = kv.Close()
			return nil, err
		}
		logger.Info("main chain initialized", zap.String("dir", dir))
		return c, nil
	}

	c.height = cfg.Height
	c.diff = cfg.Difficulty
	return c, nil
}

func (c *MainChain) initGenesis() error {
	c.diff = consensus.BeginningDifficulty
	c.height = big.NewInt(0)

	inception := &consensus.Transaction{
		Sender:    consensus.RootPublicAddress,
		Receiver:  consensus.RootPublicAddress,
		Timestamp: consensus.InceptionTimestamp,
		Amount:    big.NewInt(0),
	}
	txHash := inception.Hash()
	root := consensus.BuildMerkleTree([][32]byte{txHash}).Root()

	genesis := &consensus.GenesisBlock{
		Body: consensus.SummarizeBlock{
			DefaultInfo: consensus.BasicInfo{
				Timestamp:  consensus.InceptionTimestamp,
				Pow:        big.NewInt(0),
				Height:     big.NewInt(0),
				Difficulty: consensus.BeginningDifficulty,
				Founder:    consensus.RootPublicAddress,
			},
			MerkleTreeRoot: root,
		},
	}

	dump, err := genesis.Dump()
	if err != nil {
		return wrapErr(CategoryChain, KindInit, "dump genesis", err)
	}
	hash, err := genesis.Hash()
	if err != nil {
		return wrapErr(CategoryChain, KindInit, "hash genesis", err)
	}
	if err := c.kv.putBlock(big.NewInt(0), hash, dump); err != nil {
		return wrapErr(CategoryChain, KindInit, "store genesis", err)
	}

	txDump, err := inception.Dump()
	if err != nil {
		return wrapErr(CategoryChain, KindInit, "dump inception tx", err)
	}
	if err := c.kv.putTransaction(txHash, txDump); err != nil {
		return wrapErr(CategoryChain, KindInit, "store inception tx", err)
	}

	c.height = big.NewInt(1)
	return c.flushLocked()
}

// AddBlock appends b at the chain's current height. It rejects b when its
// height does not equal the chain's next expected height (spec §4.E).
func (c *MainChain) AddBlock(b consensus.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.Info().Height.Cmp(c.height) != 0 {
		return newErr(CategoryChain, KindAddingBlock, "block height does not match chain height")
	}
	dump, err := b.Dump()
	if err != nil {
		return wrapErr(CategoryChain, KindAddingBlock, "dump", err)
	}
	hash, err := b.Hash()
	if err != nil {
		return wrapErr(CategoryChain, KindAddingBlock, "hash", err)
	}
	if err := c.kv.putBlock(b.Info().Height, hash, dump); err != nil {
		return wrapErr(CategoryChain, KindAddingBlock, "put", err)
	}
	c.height = new(big.Int).Add(c.height, big.NewInt(1))
	c.diff = b.Info().Difficulty
	if err := c.flushLocked(); err != nil {
		return err
	}
	c.logger.Info("block added", zap.String("hash", hex32(hash)), zap.String("height", b.Info().Height.String()))
	return nil
}

// FindByHeight returns the block at h, or ok=false if h >= chain height.
func (c *MainChain) FindByHeight(h *big.Int) (consensus.Block, bool, error) {
	c.mu.RLock()
	tooHigh := h.Cmp(c.height) >= 0
	c.mu.RUnlock()
	if tooHigh {
		return nil, false, nil
	}
	dump, ok, err := c.kv.getBlockByHeight(h)
	if err != nil {
		return nil, false, wrapErr(CategoryChain, KindFindByHeight, "get", err)
	}
	if !ok {
		return nil, false, nil
	}
	blk, err := consensus.ParseBlock(dump)
	if err != nil {
		return nil, false, wrapErr(CategoryChain, KindFindByHeight, "parse", err)
	}
	return blk, true, nil
}

// FindByHash resolves a block by hash via the height_reference index.
func (c *MainChain) FindByHash(hash [32]byte) (consensus.Block, bool, error) {
	height, ok, err := c.kv.getHeightByHash(hash)
	if err != nil {
		return nil, false, wrapErr(CategoryChain, KindFindByHash, "index lookup", err)
	}
	if !ok {
		return nil, false, nil
	}
	dump, ok, err := c.kv.getBlockByHeight(height)
	if err != nil {
		return nil, false, wrapErr(CategoryChain, KindFindByHash, "get", err)
	}
	if !ok {
		return nil, false, nil
	}
	blk, err := consensus.ParseBlock(dump)
	if err != nil {
		return nil, false, wrapErr(CategoryChain, KindFindByHash, "parse", err)
	}
	return blk, true, nil
}

// GetLastBlock returns the chain's tip (height-1).
func (c *MainChain) GetLastBlock() (consensus.Block, bool, error) {
	c.mu.RLock()
	prev := new(big.Int).Sub(c.height, big.NewInt(1))
	c.mu.RUnlock()
	if prev.Sign() < 0 {
		return nil, false, nil
	}
	return c.FindByHeight(prev)
}

// Height returns a copy of the chain's current height.
func (c *MainChain) Height() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return new(big.Int).Set(c.height)
}

// Difficulty returns the chain's current difficulty target.
func (c *MainChain) Difficulty() [32]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.diff
}

// AddTransactions writes each transaction's dump keyed by its identity hash
// (Transaction.Hash, the value blocks reference) into the transactions
// store (spec §4.E).
func (c *MainChain) AddTransactions(txs []*consensus.Transaction) error {
	for _, t := range txs {
		dump, err := t.Dump()
		if err != nil {
			return wrapErr(CategoryChain, KindAddingTransaction, "dump", err)
		}
		if err := c.kv.putTransaction(t.Hash(), dump); err != nil {
			return wrapErr(CategoryChain, KindAddingTransaction, "put", err)
		}
	}
	return c.kv.Sync()
}

// GetTransaction reads and parses a transaction by hash.
func (c *MainChain) GetTransaction(hash [32]byte) (*consensus.Transaction, bool, error) {
	dump, ok, err := c.kv.getTransaction(hash)
	if err != nil {
		return nil, false, wrapErr(CategoryChain, KindFindByHash, "get tx", err)
	}
	if !ok {
		return nil, false, nil
	}
	if len(dump) == 0 || dump[0] != consensus.HeaderTransaction {
		return nil, false, newErr(CategoryChain, KindFindByHash, "stored transaction has wrong header byte")
	}
	tx, err := consensus.ParseTransaction(dump[1:])
	if err != nil {
		return nil, false, wrapErr(CategoryChain, KindFindByHash, "parse tx", err)
	}
	return tx, true, nil
}

// Flush writes the config file then flushes the underlying KV stores
// (spec §4.E).
func (c *MainChain) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *MainChain) flushLocked() error {
	cfgPath := filepath.Join(c.dir, chainConfigFileName)
	if err := writeChainConfig(cfgPath, &chainConfig{Height: c.height, Difficulty: c.diff}); err != nil {
		return err
	}
	if err := c.kv.Sync(); err != nil {
		return wrapErr(CategoryChain, KindFlush, "sync kv", err)
	}
	return nil
}

// Recover rescans the blocks bucket and rebuilds any height_reference
// entries missing because a prior process was cancelled between the block
// insert and the hash-index insert (spec §5).
func (c *MainChain) Recover() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.forEachBlock(func(height *big.Int, dump []byte) error {
		blk, err := consensus.ParseBlock(dump)
		if err != nil {
			return wrapErr(CategoryChain, KindRecover, "parse", err)
		}
		hash, err := blk.Hash()
		if err != nil {
			return wrapErr(CategoryChain, KindRecover, "hash", err)
		}
		if _, ok, err := c.kv.getHeightByHash(hash); err != nil {
			return wrapErr(CategoryChain, KindRecover, "lookup", err)
		} else if !ok {
			if err := c.kv.putHeightReference(hash, height); err != nil {
				return wrapErr(CategoryChain, KindRecover, "rebuild index", err)
			}
			c.logger.Warn("recovered missing height_reference entry", zap.String("hash", hex32(hash)))
		}
		return nil
	})
}

// Close releases the underlying bbolt handle.
func (c *MainChain) Close() error {
	return c.kv.Close()
}
