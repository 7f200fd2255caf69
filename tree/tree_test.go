package tree

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"blockchaintree.dev/core/consensus"
)

func openTestTree(t *testing.T) *ChainTree {
	t.Helper()
	ct, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ct.Close() })
	return ct
}

func grindForTest(t *testing.T, prevHash, difficulty [32]byte) *big.Int {
	t.Helper()
	candidate := big.NewInt(0)
	for i := 0; i < 100000; i++ {
		if consensus.CheckPow(prevHash, difficulty, candidate) {
			return candidate
		}
		candidate = new(big.Int).Add(candidate, big.NewInt(1))
	}
	t.Fatalf("failed to grind a satisfying pow within bound")
	return nil
}

func TestEmitNewMainBlockAdvancesChainAndCreditsFounder(t *testing.T) {
	ct := openTestTree(t)
	var founder consensus.Address
	founder[0] = 0x01

	prev, ok, err := ct.MainChain().GetLastBlock()
	require.NoError(t, err)
	require.True(t, ok)
	prevHash, err := prev.Hash()
	require.NoError(t, err)
	pow := grindForTest(t, prevHash, prev.Info().Difficulty)

	blk, err := ct.EmitNewMainBlock(pow, founder, nil, prev.Info().Timestamp+600)
	require.NoError(t, err)
	require.IsType(t, &consensus.TransactionBlock{}, blk)

	bal, err := ct.GetAmount(founder)
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(consensus.MainChainPayment)))
}

func TestEmitNewMainBlockRejectsInvalidPow(t *testing.T) {
	ct := openTestTree(t)
	var founder consensus.Address
	founder[0] = 0x02

	prev, ok, err := ct.MainChain().GetLastBlock()
	require.NoError(t, err)
	require.True(t, ok)
	prevHash, err := prev.Hash()
	require.NoError(t, err)
	// pow 0 happens to satisfy the genesis difficulty, so search for the
	// first candidate that does not.
	pow := big.NewInt(0)
	for consensus.CheckPow(prevHash, prev.Info().Difficulty, pow) {
		pow = new(big.Int).Add(pow, big.NewInt(1))
	}

	_, err = ct.EmitNewMainBlock(pow, founder, nil, 1)
	require.Error(t, err)
}

func TestSendTransactionRejectsBadSignature(t *testing.T) {
	ct := openTestTree(t)
	var sender, receiver consensus.Address
	sender[0], receiver[0] = 0x01, 0x02

	tx := &consensus.Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Timestamp: 1,
		Amount:    big.NewInt(1),
	}
	require.Error(t, ct.SendTransaction(tx))
	require.Zero(t, ct.Pool().Len(), "invalid transaction should not enter the pool")
}

func TestGetDerivativeChainIsLazyAndStable(t *testing.T) {
	ct := openTestTree(t)
	var miner consensus.Address
	miner[0] = 0x03

	dc1, err := ct.GetDerivativeChain(miner)
	require.NoError(t, err)
	dc2, err := ct.GetDerivativeChain(miner)
	require.NoError(t, err)
	require.Same(t, dc1, dc2, "expected the same derivative chain instance to be reused")
}
