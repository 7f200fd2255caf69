// Package tree implements the chain tree facade of spec §4.H: the single
// owner of the main chain, the open-ended set of per-miner derivative
// chains, and the balance/gas stores.
package tree

import (
	"math/big"
	"sync"

	"go.uber.org/zap"

	"blockchaintree.dev/core/consensus"
	"blockchaintree.dev/core/pool"
	"blockchaintree.dev/core/store"
)

// ChainTree owns one MainChain, a lazily-populated map of DerivativeChains
// keyed by miner address, and the balance/gas stores (spec §4.H). It is
// shared across many callers behind a single instance; internal mutable
// state is guarded by locks, matching the ownership model of spec §9
// ("the tree own[s] the chains by value, and pass[es] only borrows
// outward").
type ChainTree struct {
	base string

	mainChain *store.MainChain
	balances  *store.BalanceStore
	pool      *pool.TxPool

	derivMu     sync.Mutex
	derivatives map[consensus.Address]*store.DerivativeChain

	logger *zap.Logger
}

// Open opens (or cold-initializes) a full chain tree rooted at base.
func Open(base string, logger *zap.Logger) (*ChainTree, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mainChain, err := store.OpenMainChain(base, logger)
	if err != nil {
		return nil, err
	}
	balances, err := store.OpenBalanceStore(base, logger)
	if err != nil {
		_ = mainChain.Close()
		return nil, err
	}
	return &ChainTree{
		base:        base,
		mainChain:   mainChain,
		balances:    balances,
		pool:        pool.New(),
		derivatives: make(map[consensus.Address]*store.DerivativeChain),
		logger:      logger,
	}, nil
}

// MainChain exposes the owned main chain for read-mostly callers (miners,
// explorers). Mutating calls must still go through ChainTree's emission
// methods so epoch/reward bookkeeping stays consistent.
func (t *ChainTree) MainChain() *store.MainChain { return t.mainChain }

// Pool exposes the pending-transaction pool.
func (t *ChainTree) Pool() *pool.TxPool { return t.pool }

// SendTransaction verifies tx's signature and, if valid, records it in the
// main chain's transaction index and the pending pool (spec §4.H
// send_transaction).
func (t *ChainTree) SendTransaction(tx *consensus.Transaction) error {
	ok, err := tx.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return newTreeErr(KindFailedToVerifyTransaction, "signature verification failed")
	}
	if err := t.mainChain.AddTransactions([]*consensus.Transaction{tx}); err != nil {
		return err
	}
	t.pool.Push(tx)
	return nil
}

// EmitNewMainBlock implements the main-chain block emission path of spec
// §4.H: validates pow against the tip's difficulty, assembles either a
// TransactionBlock or — at an epoch boundary — a SummarizeBlock, appends
// it, recalculates difficulty, and credits the founder.
func (t *ChainTree) EmitNewMainBlock(pow *big.Int, founder consensus.Address, txHashes [][32]byte, timestamp uint64) (consensus.Block, error) {
	prevBlock, ok, err := t.mainChain.GetLastBlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newTreeErr(KindWrongPow, "chain has no blocks to extend")
	}
	prevInfo := prevBlock.Info()

	if !consensus.CheckPow(mustHash(prevBlock), prevInfo.Difficulty, pow) {
		return nil, newTreeErr(KindWrongPow, "pow does not satisfy previous difficulty")
	}

	nextHeight := new(big.Int).Add(prevInfo.Height, big.NewInt(1))
	nextDifficulty := consensus.RecalculateDifficulty(prevInfo.Difficulty, timeSince(prevInfo.Timestamp, timestamp))

	basic := consensus.BasicInfo{
		Timestamp:    timestamp,
		Pow:          pow,
		PreviousHash: mustHash(prevBlock),
		Height:       nextHeight,
		Difficulty:   nextDifficulty,
		Founder:      founder,
	}

	var next consensus.Block
	isEpochBoundary := new(big.Int).Mod(nextHeight, new(big.Int).SetUint64(consensus.BlocksPerEpoch)).Sign() == 0

	if isEpochBoundary {
		root := consensus.BuildMerkleTree(txHashes).Root()
		next = &consensus.SummarizeBlock{DefaultInfo: basic, MerkleTreeRoot: root}
	} else {
		root := consensus.BuildMerkleTree(txHashes).Root()
		next = &consensus.TransactionBlock{
			DefaultInfo:    basic,
			Fee:            consensus.RecalculateFee(prevInfo.Difficulty),
			MerkleTreeRoot: root,
			Transactions:   txHashes,
		}
	}

	if err := t.mainChain.AddBlock(next); err != nil {
		return nil, err
	}

	reward := new(big.Int).SetInt64(consensus.MainChainPayment)
	if tb, ok := next.(*consensus.TransactionBlock); ok {
		fee := new(big.Int).Mul(tb.Fee, big.NewInt(int64(len(tb.Transactions))))
		reward = new(big.Int).Add(reward, fee)
	}
	if err := t.balances.AddAmount(founder, reward); err != nil {
		return nil, err
	}

	if isEpochBoundary {
		if err := t.balances.RolloverEpoch(); err != nil {
			return nil, err
		}
	}

	t.logger.Info("main block emitted",
		zap.String("height", nextHeight.String()),
		zap.Bool("epoch_boundary", isEpochBoundary),
	)
	return next, nil
}

// EmitNewDerivativeBlock appends a DerivativeBlock to miner's derivative
// chain, lazily spawning the chain anchored at the main chain's current
// tip if it doesn't exist yet.
func (t *ChainTree) EmitNewDerivativeBlock(miner consensus.Address, pow *big.Int, paymentTransaction [32]byte, timestamp uint64) (*consensus.DerivativeBlock, error) {
	dc, err := t.GetDerivativeChain(miner)
	if err != nil {
		return nil, err
	}

	height := dc.Height()
	difficulty := dc.Difficulty()
	var prevHash [32]byte
	if height.Sign() == 0 {
		prevHash = dc.GenesisHash()
	} else {
		last, ok, err := dc.GetLastBlock()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newTreeErr(KindWrongPow, "derivative chain missing predecessor")
		}
		h, err := last.Hash()
		if err != nil {
			return nil, err
		}
		prevHash = h
	}

	if !consensus.CheckPow(prevHash, difficulty, pow) {
		return nil, newTreeErr(KindWrongPow, "pow does not satisfy derivative difficulty")
	}

	block := &consensus.DerivativeBlock{
		DefaultInfo: consensus.BasicInfo{
			Timestamp:    timestamp,
			Pow:          pow,
			PreviousHash: prevHash,
			Height:       height,
			Difficulty:   difficulty,
			Founder:      miner,
		},
		PaymentTransaction: paymentTransaction,
	}
	if err := dc.AddBlock(block); err != nil {
		return nil, err
	}
	return block, nil
}

// GetDerivativeChain returns the derivative chain for addr, creating it
// (anchored at the main chain's current tip) on first access.
func (t *ChainTree) GetDerivativeChain(addr consensus.Address) (*store.DerivativeChain, error) {
	t.derivMu.Lock()
	defer t.derivMu.Unlock()

	if dc, ok := t.derivatives[addr]; ok {
		return dc, nil
	}

	tip, ok, err := t.mainChain.GetLastBlock()
	if err != nil {
		return nil, err
	}
	var genesisHash [32]byte
	difficulty := consensus.BeginningDifficulty
	if ok {
		genesisHash = mustHash(tip)
		difficulty = tip.Info().Difficulty
	}
	dc, err := store.OpenDerivativeChain(t.base, addr, genesisHash, difficulty, t.logger)
	if err != nil {
		return nil, err
	}
	t.derivatives[addr] = dc
	return dc, nil
}

// AddAmount, SubAmount and SendAmount delegate to the owned BalanceStore.
func (t *ChainTree) AddAmount(owner consensus.Address, amount *big.Int) error {
	return t.balances.AddAmount(owner, amount)
}

func (t *ChainTree) SubAmount(owner consensus.Address, amount *big.Int) error {
	return t.balances.SubAmount(owner, amount)
}

func (t *ChainTree) SendAmount(from, to consensus.Address, amount *big.Int) error {
	return t.balances.SendAmount(from, to, amount)
}

func (t *ChainTree) GetAmount(owner consensus.Address) (*big.Int, error) {
	return t.balances.GetAmount(owner)
}

// AddGas, SubGas and GetGas delegate to the owned BalanceStore's gas
// ledger.
func (t *ChainTree) AddGas(owner consensus.Address, amount *big.Int) error {
	return t.balances.AddGas(owner, amount)
}

func (t *ChainTree) SubGas(owner consensus.Address, amount *big.Int) error {
	return t.balances.SubGas(owner, amount)
}

func (t *ChainTree) GetGas(owner consensus.Address) (*big.Int, error) {
	return t.balances.GetGas(owner)
}

// Flush persists the main chain and every spawned derivative chain. The
// balance stores are not touched here: each balance update is committed by
// its own bbolt transaction.
func (t *ChainTree) Flush() error {
	if err := t.mainChain.Flush(); err != nil {
		return err
	}
	t.derivMu.Lock()
	defer t.derivMu.Unlock()
	for _, dc := range t.derivatives {
		if err := dc.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every owned store handle.
func (t *ChainTree) Close() error {
	t.derivMu.Lock()
	for _, dc := range t.derivatives {
		_ = dc.Close()
	}
	t.derivMu.Unlock()
	_ = t.balances.Close()
	return t.mainChain.Close()
}

func mustHash(b consensus.Block) [32]byte {
	h, err := b.Hash()
	if err != nil {
		return [32]byte{}
	}
	return h
}

// timeSince returns the non-negative elapsed seconds between prev and
// next, clamped to at least 1 so difficulty recalculation never divides by
// a non-positive interval.
func timeSince(prev, next uint64) uint64 {
	if next <= prev {
		return 1
	}
	return next - prev
}
