package store

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"blockchaintree.dev/core/consensus"
)

func openTestMainChain(t *testing.T) *MainChain {
	t.Helper()
	c, err := OpenMainChain(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenMainChainInitializesGenesis(t *testing.T) {
	c := openTestMainChain(t)
	require.Equal(t, 0, c.Height().Cmp(big.NewInt(1)))

	genesis, ok, err := c.FindByHeight(big.NewInt(0))
	require.NoError(t, err)
	require.True(t, ok)
	require.IsType(t, &consensus.GenesisBlock{}, genesis)
}

func TestMainChainAddBlockAdvancesHeight(t *testing.T) {
	c := openTestMainChain(t)
	prev, ok, err := c.GetLastBlock()
	require.NoError(t, err)
	require.True(t, ok)
	prevHash, err := prev.Hash()
	require.NoError(t, err)

	next := &consensus.TransactionBlock{
		DefaultInfo: consensus.BasicInfo{
			Timestamp:    prev.Info().Timestamp + 1,
			Pow:          big.NewInt(0),
			PreviousHash: prevHash,
			Height:       new(big.Int).Add(prev.Info().Height, big.NewInt(1)),
			Difficulty:   prev.Info().Difficulty,
			Founder:      consensus.RootPublicAddress,
		},
		Fee: big.NewInt(1),
	}
	require.NoError(t, c.AddBlock(next))
	require.Equal(t, 0, c.Height().Cmp(big.NewInt(2)))
}

func TestMainChainAddBlockRejectsWrongHeight(t *testing.T) {
	c := openTestMainChain(t)
	bad := &consensus.TransactionBlock{
		DefaultInfo: consensus.BasicInfo{
			Pow:    big.NewInt(0),
			Height: big.NewInt(99),
		},
		Fee: big.NewInt(0),
	}
	require.Error(t, c.AddBlock(bad))
}

func TestMainChainRecoverRebuildsIndex(t *testing.T) {
	c := openTestMainChain(t)
	require.NoError(t, c.Recover())

	_, ok, err := c.FindByHash(mustHashAt(t, c, 0))
	require.NoError(t, err)
	require.True(t, ok)
}

func mustHashAt(t *testing.T, c *MainChain, height int64) [32]byte {
	t.Helper()
	b, ok, err := c.FindByHeight(big.NewInt(height))
	require.NoError(t, err)
	require.True(t, ok)
	h, err := b.Hash()
	require.NoError(t, err)
	return h
}
