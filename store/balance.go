package store

import (
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"blockchaintree.dev/core/consensus"
)

var bucketBalances = []byte("balances")

// balanceKV is a single bbolt-backed address→U256 store, shared shape for
// the summary, old-summary, gas and old-gas domains of spec §4.F.
type balanceKV struct {
	path string
	db   *bolt.DB
}

func openBalanceKV(dir string) (*balanceKV, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "balance.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBalances)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &balanceKV{path: dir, db: db}, nil
}

// get returns (amount, found, error): found is false only when owner has
// no entry at all, distinct from an entry explicitly storing zero.
func (b *balanceKV) get(owner consensus.Address) (*big.Int, bool, error) {
	var out *big.Int
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBalances).Get(owner[:])
		if v == nil {
			out = big.NewInt(0)
			return nil
		}
		n, _, err := consensus.LoadU256(v)
		if err != nil {
			return err
		}
		out = n
		found = true
		return nil
	})
	return out, found, err
}

func (b *balanceKV) put(tx *bolt.Tx, owner consensus.Address, amount *big.Int) error {
	v, err := consensus.DumpU256(amount, nil)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketBalances).Put(owner[:], v)
}

func (b *balanceKV) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// BalanceStore holds the four address-keyed U256 KVs of spec §4.F: current
// and previous-epoch balance domains for both the value-transfer summary
// and the gas ledger.
type BalanceStore struct {
	mu sync.RWMutex

	base string

	summary    *balanceKV
	summaryOld *balanceKV
	gas        *balanceKV
	gasOld     *balanceKV

	logger *zap.Logger
}

// OpenBalanceStore opens (creating if absent) the four balance KVs rooted
// at base.
func OpenBalanceStore(base string, logger *zap.Logger) (*BalanceStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BalanceStore{base: base, logger: logger}
	var err error
	if s.summary, err = openBalanceKV(SummaryDir(base)); err != nil {
		return nil, wrapErr(CategoryBalance, KindInit, "summary", err)
	}
	if s.summaryOld, err = openBalanceKV(SummaryOldDir(base)); err != nil {
		return nil, wrapErr(CategoryBalance, KindInit, "summary old", err)
	}
	if s.gas, err = openBalanceKV(GasDir(base)); err != nil {
		return nil, wrapErr(CategoryBalance, KindInit, "gas", err)
	}
	if s.gasOld, err = openBalanceKV(GasOldDir(base)); err != nil {
		return nil, wrapErr(CategoryBalance, KindInit, "gas old", err)
	}
	return s, nil
}

// getAmount reads current, falling through to old only when owner has no
// entry at all in current (spec §4.F epoch rollover fallthrough
// semantics) — an owner explicitly zeroed out in the current epoch must
// not resurrect a stale nonzero balance from the prior epoch.
func getAmount(current, old *balanceKV, owner consensus.Address) (*big.Int, error) {
	n, found, err := current.get(owner)
	if err != nil {
		return nil, err
	}
	if found {
		return n, nil
	}
	n, _, err = old.get(owner)
	return n, err
}

func addAmount(kv *balanceKV, owner consensus.Address, amount *big.Int) error {
	return kv.db.Update(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBalances).Get(owner[:])
		prev := big.NewInt(0)
		if v != nil {
			n, _, err := consensus.LoadU256(v)
			if err != nil {
				return err
			}
			prev = n
		}
		next := new(big.Int).Add(prev, amount)
		if next.BitLen() > 256 {
			return newErr(CategoryBalance, KindAddFunds, "u256 overflow")
		}
		return kv.put(tx, owner, next)
	})
}

func subAmount(kv *balanceKV, owner consensus.Address, amount *big.Int) error {
	return kv.db.Update(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBalances).Get(owner[:])
		prev := big.NewInt(0)
		if v != nil {
			n, _, err := consensus.LoadU256(v)
			if err != nil {
				return err
			}
			prev = n
		}
		if prev.Cmp(amount) < 0 {
			return newErr(CategoryBalance, KindInsufficientBalance, "balance below requested amount")
		}
		next := new(big.Int).Sub(prev, amount)
		return kv.put(tx, owner, next)
	})
}

// AddAmount credits owner's current balance by amount (spec §4.F).
func (s *BalanceStore) AddAmount(owner consensus.Address, amount *big.Int) error {
	if err := addAmount(s.summary, owner, amount); err != nil {
		return wrapErr(CategoryBalance, KindAddFunds, "add", err)
	}
	return nil
}

// SubAmount debits owner's current balance by amount, failing if the
// balance is insufficient (spec §4.F / §9 note 1: the correct behavior is
// prev - amount, not the source's apparent prev + amount bug).
func (s *BalanceStore) SubAmount(owner consensus.Address, amount *big.Int) error {
	if err := subAmount(s.summary, owner, amount); err != nil {
		return wrapErr(CategoryBalance, KindDecreaseFunds, "sub", err)
	}
	return nil
}

// GetAmount returns owner's balance; a missing key reads as zero.
func (s *BalanceStore) GetAmount(owner consensus.Address) (*big.Int, error) {
	n, err := getAmount(s.summary, s.summaryOld, owner)
	if err != nil {
		return nil, wrapErr(CategoryBalance, KindGetFunds, "get", err)
	}
	return n, nil
}

// SendAmount debits from and credits to within a single bbolt transaction
// (spec §4.F / §9 note 2: correctly credits `to`, not the source's
// apparent bug of writing from_amount to both sides). Other observers see
// either the pre-state or the post-state, never a half-transfer.
func (s *BalanceStore) SendAmount(from, to consensus.Address, amount *big.Int) error {
	err := s.summary.db.Update(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBalances).Get(from[:])
		fromPrev := big.NewInt(0)
		if v != nil {
			n, _, err := consensus.LoadU256(v)
			if err != nil {
				return err
			}
			fromPrev = n
		}
		if fromPrev.Cmp(amount) < 0 {
			return newErr(CategoryBalance, KindInsufficientBalance, "balance below requested amount")
		}
		v = tx.Bucket(bucketBalances).Get(to[:])
		toPrev := big.NewInt(0)
		if v != nil {
			n, _, err := consensus.LoadU256(v)
			if err != nil {
				return err
			}
			toPrev = n
		}
		fromNext := new(big.Int).Sub(fromPrev, amount)
		toNext := new(big.Int).Add(toPrev, amount)
		if toNext.BitLen() > 256 {
			return newErr(CategoryBalance, KindAddFunds, "u256 overflow")
		}
		if err := s.summary.put(tx, from, fromNext); err != nil {
			return err
		}
		return s.summary.put(tx, to, toNext)
	})
	if err != nil {
		return wrapErr(CategoryBalance, KindDecreaseFunds, "send", err)
	}
	return s.summary.db.Sync()
}

// AddGas, SubGas and GetGas are the gas-ledger analogues of
// AddAmount/SubAmount/GetAmount.
func (s *BalanceStore) AddGas(owner consensus.Address, amount *big.Int) error {
	if err := addAmount(s.gas, owner, amount); err != nil {
		return wrapErr(CategoryBalance, KindAddFunds, "add gas", err)
	}
	return nil
}

func (s *BalanceStore) SubGas(owner consensus.Address, amount *big.Int) error {
	if err := subAmount(s.gas, owner, amount); err != nil {
		return wrapErr(CategoryBalance, KindDecreaseFunds, "sub gas", err)
	}
	return nil
}

func (s *BalanceStore) GetGas(owner consensus.Address) (*big.Int, error) {
	n, err := getAmount(s.gas, s.gasOld, owner)
	if err != nil {
		return nil, wrapErr(CategoryBalance, KindGetFunds, "get gas", err)
	}
	return n, nil
}

// RolloverEpoch renames the current summary/gas DBs to their -old
// counterparts and opens fresh empty current DBs, the epoch-boundary
// behavior implied but not implemented by the source's file naming (spec
// §4.F, §9 note 4). Driven externally by tree.ChainTree at
// BlocksPerEpoch boundaries.
func (s *BalanceStore) RolloverEpoch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rollOne(&s.summary, &s.summaryOld, SummaryDir(s.base), SummaryOldDir(s.base)); err != nil {
		return wrapErr(CategoryBalance, KindRollover, "summary", err)
	}
	if err := s.rollOne(&s.gas, &s.gasOld, GasDir(s.base), GasOldDir(s.base)); err != nil {
		return wrapErr(CategoryBalance, KindRollover, "gas", err)
	}
	s.logger.Info("epoch rollover complete")
	return nil
}

func (s *BalanceStore) rollOne(current, old **balanceKV, currentDir, oldDir string) error {
	if err := (*current).Close(); err != nil {
		return err
	}
	if err := (*old).Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(oldDir); err != nil {
		return err
	}
	if err := os.Rename(currentDir, oldDir); err != nil {
		return err
	}
	newOld, err := openBalanceKV(oldDir)
	if err != nil {
		return err
	}
	newCurrent, err := openBalanceKV(currentDir)
	if err != nil {
		return err
	}
	*old = newOld
	*current = newCurrent
	return nil
}

// Close releases all four underlying bbolt handles.
func (s *BalanceStore) Close() error {
	var firstErr error
	for _, kv := range []*balanceKV{s.summary, s.summaryOld, s.gas, s.gasOld} {
		if err := kv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
