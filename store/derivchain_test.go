package store

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"blockchaintree.dev/core/consensus"
)

func openTestDerivChain(t *testing.T) (*DerivativeChain, consensus.Address, [32]byte) {
	t.Helper()
	var addr consensus.Address
	addr[0] = 0xAB
	genesisHash := consensus.Hash([]byte("main-chain-tip"))

	dc, err := OpenDerivativeChain(t.TempDir(), addr, genesisHash, consensus.BeginningDifficulty, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dc.Close() })
	return dc, addr, genesisHash
}

func TestOpenDerivativeChainStartsAtHeightZero(t *testing.T) {
	dc, _, genesisHash := openTestDerivChain(t)
	require.Zero(t, dc.Height().Sign())
	require.Equal(t, genesisHash, dc.GenesisHash())
}

func TestDerivativeChainAddBlockAtHeightZero(t *testing.T) {
	dc, addr, genesisHash := openTestDerivChain(t)

	blk := &consensus.DerivativeBlock{
		DefaultInfo: consensus.BasicInfo{
			Timestamp:    1,
			Pow:          big.NewInt(0),
			PreviousHash: genesisHash,
			Height:       big.NewInt(0),
			Difficulty:   consensus.BeginningDifficulty,
			Founder:      addr,
		},
		PaymentTransaction: consensus.Hash([]byte("payment")),
	}
	require.NoError(t, dc.AddBlock(blk))
	require.Equal(t, 0, dc.Height().Cmp(big.NewInt(1)))
}

func TestDerivativeChainAddBlockRejectsWrongGenesisLink(t *testing.T) {
	dc, addr, _ := openTestDerivChain(t)

	blk := &consensus.DerivativeBlock{
		DefaultInfo: consensus.BasicInfo{
			Timestamp:    1,
			Pow:          big.NewInt(0),
			PreviousHash: consensus.Hash([]byte("not-the-genesis")),
			Height:       big.NewInt(0),
			Difficulty:   consensus.BeginningDifficulty,
			Founder:      addr,
		},
	}
	require.Error(t, dc.AddBlock(blk))
}
