// Package pool implements the in-memory transaction pool of spec §4.G: a
// priority queue of pending transactions deduplicated by hash, guarded by
// a read/write lock so many readers can iterate concurrently.
package pool

import (
	"container/heap"
	"sync"

	"blockchaintree.dev/core/consensus"
)

// txHeap is a container/heap priority queue ordered by consensus.TxLess.
// Go's container/heap is natively a min-heap over Less, which is exactly
// the priority order spec §4.C specifies (earliest timestamp first, ties
// broken by the smaller hash-as-limbs); the source needs an inverted Ord
// because Rust's BinaryHeap is a max-heap, but that inversion has no
// counterpart here.
type txHeap []*consensus.Transaction

func (h txHeap) Len() int { return len(h) }
func (h txHeap) Less(i, j int) bool {
	return consensus.TxLess(h[i], h[j])
}
func (h txHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *txHeap) Push(x any) {
	*h = append(*h, x.(*consensus.Transaction))
}

func (h *txHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// TxPool is the pending-transaction pool used by block assembly.
type TxPool struct {
	mu     sync.RWMutex
	heap   txHeap
	hashes map[[32]byte]struct{}
}

// New returns an empty TxPool.
func New() *TxPool {
	return &TxPool{hashes: make(map[[32]byte]struct{})}
}

// Push adds tx to the pool, returning false if a transaction with the same
// hash was already accepted (spec §4.G).
func (p *TxPool) Push(tx *consensus.Transaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := tx.Hash()
	if _, exists := p.hashes[h]; exists {
		return false
	}
	p.hashes[h] = struct{}{}
	heap.Push(&p.heap, tx)
	return true
}

// Pop removes and returns the highest-priority pending transaction, or
// ok=false when the pool is empty.
func (p *TxPool) Pop() (hash [32]byte, tx *consensus.Transaction, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.heap) == 0 {
		return hash, nil, false
	}
	tx = heap.Pop(&p.heap).(*consensus.Transaction)
	hash = tx.Hash()
	delete(p.hashes, hash)
	return hash, tx, true
}

// Len returns the number of pending transactions.
func (p *TxPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.heap)
}

// IsEmpty reports whether the pool has no pending transactions.
func (p *TxPool) IsEmpty() bool {
	return p.Len() == 0
}

// TransactionExists reports whether hash has already been accepted into
// the pool.
func (p *TxPool) TransactionExists(hash [32]byte) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.hashes[hash]
	return ok
}

// TransactionsIter returns a snapshot slice of the currently pending
// transactions, safe to range over while other goroutines read the pool
// concurrently.
func (p *TxPool) TransactionsIter() []*consensus.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*consensus.Transaction, len(p.heap))
	copy(out, p.heap)
	return out
}
