package store

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"blockchaintree.dev/core/consensus"
)

func openTestBalanceStore(t *testing.T) *BalanceStore {
	t.Helper()
	s, err := OpenBalanceStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBalanceStoreAddAndGet(t *testing.T) {
	s := openTestBalanceStore(t)
	var owner consensus.Address
	owner[0] = 1

	require.NoError(t, s.AddAmount(owner, big.NewInt(100)))
	got, err := s.GetAmount(owner)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(big.NewInt(100)))
}

func TestBalanceStoreSubAmountInsufficientFunds(t *testing.T) {
	s := openTestBalanceStore(t)
	var owner consensus.Address
	owner[0] = 2

	require.Error(t, s.SubAmount(owner, big.NewInt(1)))
}

func TestBalanceStoreSendAmountMovesFunds(t *testing.T) {
	s := openTestBalanceStore(t)
	var from, to consensus.Address
	from[0], to[0] = 3, 4

	require.NoError(t, s.AddAmount(from, big.NewInt(100)))
	require.NoError(t, s.SendAmount(from, to, big.NewInt(40)))

	fromBal, err := s.GetAmount(from)
	require.NoError(t, err)
	toBal, err := s.GetAmount(to)
	require.NoError(t, err)
	require.Equal(t, 0, fromBal.Cmp(big.NewInt(60)))
	require.Equal(t, 0, toBal.Cmp(big.NewInt(40)))
}

func TestBalanceStoreSendAmountRejectsInsufficientFunds(t *testing.T) {
	s := openTestBalanceStore(t)
	var from, to consensus.Address
	from[0], to[0] = 5, 6

	require.NoError(t, s.AddAmount(from, big.NewInt(10)))
	require.Error(t, s.SendAmount(from, to, big.NewInt(50)))

	fromBal, err := s.GetAmount(from)
	require.NoError(t, err)
	require.Equal(t, 0, fromBal.Cmp(big.NewInt(10)), "failed send should not have moved funds")
}

func TestBalanceStoreRolloverPreservesExplicitZero(t *testing.T) {
	s := openTestBalanceStore(t)
	var owner consensus.Address
	owner[0] = 7

	require.NoError(t, s.AddAmount(owner, big.NewInt(100)))
	require.NoError(t, s.SubAmount(owner, big.NewInt(100)))

	got, err := s.GetAmount(owner)
	require.NoError(t, err)
	require.Zero(t, got.Sign())

	require.NoError(t, s.RolloverEpoch())

	got, err = s.GetAmount(owner)
	require.NoError(t, err)
	require.Zero(t, got.Sign(), "balance explicitly zeroed before the rollover must still read as zero after it")
}

func TestBalanceStoreRolloverFallsThroughForAbsentOwner(t *testing.T) {
	s := openTestBalanceStore(t)
	var owner consensus.Address
	owner[0] = 8

	require.NoError(t, s.AddAmount(owner, big.NewInt(77)))
	require.NoError(t, s.RolloverEpoch())

	got, err := s.GetAmount(owner)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(big.NewInt(77)))
}

func TestBalanceStoreGasLedgerIndependentOfSummary(t *testing.T) {
	s := openTestBalanceStore(t)
	var owner consensus.Address
	owner[0] = 9

	require.NoError(t, s.AddAmount(owner, big.NewInt(5)))
	require.NoError(t, s.AddGas(owner, big.NewInt(3)))

	amount, err := s.GetAmount(owner)
	require.NoError(t, err)
	gas, err := s.GetGas(owner)
	require.NoError(t, err)
	require.Equal(t, 0, amount.Cmp(big.NewInt(5)))
	require.Equal(t, 0, gas.Cmp(big.NewInt(3)))
}
