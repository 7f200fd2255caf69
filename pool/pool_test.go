package pool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"blockchaintree.dev/core/consensus"
)

func testTx(sender byte, timestamp uint64) *consensus.Transaction {
	var addr consensus.Address
	addr[0] = sender
	return &consensus.Transaction{
		Sender:    addr,
		Receiver:  addr,
		Timestamp: timestamp,
		Amount:    big.NewInt(1),
		Data:      []byte{sender},
	}
}

func TestPushRejectsDuplicateHash(t *testing.T) {
	p := New()
	tx := testTx(1, 100)
	require.True(t, p.Push(tx))
	require.False(t, p.Push(tx))
	require.Equal(t, 1, p.Len())
}

func TestPopOrdersByTimestamp(t *testing.T) {
	p := New()
	late := testTx(1, 300)
	early := testTx(2, 100)
	mid := testTx(3, 200)
	p.Push(late)
	p.Push(early)
	p.Push(mid)

	_, got1, ok := p.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(100), got1.Timestamp)

	_, got2, ok := p.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(200), got2.Timestamp)

	_, got3, ok := p.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(300), got3.Timestamp)

	require.True(t, p.IsEmpty())
}

func TestPopOnEmptyPool(t *testing.T) {
	p := New()
	_, _, ok := p.Pop()
	require.False(t, ok)
}

func TestTransactionExists(t *testing.T) {
	p := New()
	tx := testTx(1, 1)
	require.False(t, p.TransactionExists(tx.Hash()))
	p.Push(tx)
	require.True(t, p.TransactionExists(tx.Hash()))
	p.Pop()
	require.False(t, p.TransactionExists(tx.Hash()))
}

func TestTransactionsIterIsSnapshot(t *testing.T) {
	p := New()
	p.Push(testTx(1, 1))
	p.Push(testTx(2, 2))
	snapshot := p.TransactionsIter()
	require.Len(t, snapshot, 2)
	p.Pop()
	require.Len(t, snapshot, 2, "snapshot should not mutate after later pool changes")
}
