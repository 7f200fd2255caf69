package node

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"blockchaintree.dev/core/consensus"
	"blockchaintree.dev/core/tree"
)

// Miner repeatedly grinds pow values against the chain tree's tip
// difficulty and emits main-chain blocks, draining the pending pool into
// each block it mines. It is a thin driver, not a full node: networking
// and peer gossip are out of scope (SPEC_FULL.md Non-goals).
type Miner struct {
	t       *tree.ChainTree
	founder consensus.Address
	logger  *zap.Logger

	// maxTxPerBlock bounds how many pending transactions are drained into
	// a single mined block.
	maxTxPerBlock int
}

// NewMiner builds a Miner that credits founder for every block it mines.
func NewMiner(t *tree.ChainTree, founder consensus.Address, logger *zap.Logger) *Miner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Miner{t: t, founder: founder, logger: logger, maxTxPerBlock: consensus.MaxTransactionsPerBlock}
}

// MineOne grinds a single pow value satisfying the tip's difficulty and
// emits exactly one block built from whatever is currently pending in the
// pool. now is the caller-supplied wall-clock timestamp for the new
// block (injected rather than read internally, matching the teacher's
// convention of keeping miner loops deterministic and testable).
func (m *Miner) MineOne(ctx context.Context, now uint64) (consensus.Block, error) {
	prev, ok, err := m.t.MainChain().GetLastBlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	prevHash, err := prev.Hash()
	if err != nil {
		return nil, err
	}
	difficulty := prev.Info().Difficulty

	pow, err := grind(ctx, prevHash, difficulty)
	if err != nil {
		return nil, err
	}

	txHashes := m.drainPool()
	return m.t.EmitNewMainBlock(pow, m.founder, txHashes, now)
}

// MineN mines up to n blocks in sequence, stopping early if ctx is
// cancelled or a block fails to emit.
func (m *Miner) MineN(ctx context.Context, n int, startTimestamp uint64) ([]consensus.Block, error) {
	out := make([]consensus.Block, 0, n)
	ts := startTimestamp
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		b, err := m.MineOne(ctx, ts)
		if err != nil {
			return out, err
		}
		out = append(out, b)
		ts++
	}
	return out, nil
}

func (m *Miner) drainPool() [][32]byte {
	out := make([][32]byte, 0, m.maxTxPerBlock)
	for i := 0; i < m.maxTxPerBlock; i++ {
		hash, _, ok := m.t.Pool().Pop()
		if !ok {
			break
		}
		out = append(out, hash)
	}
	return out
}

// grind increments candidate pow values from zero until one satisfies
// consensus.CheckPow against prevHash/difficulty, or ctx is cancelled.
func grind(ctx context.Context, prevHash [32]byte, difficulty [32]byte) (*big.Int, error) {
	candidate := big.NewInt(0)
	one := big.NewInt(1)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if consensus.CheckPow(prevHash, difficulty, candidate) {
			return new(big.Int).Set(candidate), nil
		}
		candidate = new(big.Int).Add(candidate, one)
	}
}
