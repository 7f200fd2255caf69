package store

import (
	"math/big"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks           = []byte("blocks")
	bucketHeightReference  = []byte("height_reference")
	bucketTransactions     = []byte("transactions")
)

// chainKV owns the three embedded key-value stores shared by MainChain and
// DerivativeChain (spec §4.E): blocks (height→dump), height_reference
// (hash→height), and transactions (hash→dump, main chain only). It mirrors
// the teacher's node/store/db.go bbolt-bucket-per-concern layout.
type chainKV struct {
	db            *bolt.DB
	withTxIndex   bool
}

func openChainKV(dir string, withTxIndex bool) (*chainKV, error) {
	if err := ensureDir(dir); err != nil {
		return nil, wrapErr(CategoryChain, KindInit, "mkdir", err)
	}
	path := filepath.Join(dir, "chain.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, wrapErr(CategoryChain, KindInit, "open bbolt", err)
	}

	buckets := [][]byte{bucketBlocks, bucketHeightReference}
	if withTxIndex {
		buckets = append(buckets, bucketTransactions)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, wrapErr(CategoryChain, KindInit, "create buckets", err)
	}

	return &chainKV{db: db, withTxIndex: withTxIndex}, nil
}

func (k *chainKV) Close() error {
	if k == nil || k.db == nil {
		return nil
	}
	return k.db.Close()
}

func heightKey(height *big.Int) [32]byte {
	var out [32]byte
	be := height.Bytes()
	copy(out[32-len(be):], be)
	return out
}

func (k *chainKV) putBlock(height *big.Int, hash [32]byte, dump []byte) error {
	hk := heightKey(height)
	return k.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlocks).Put(hk[:], dump); err != nil {
			return err
		}
		return tx.Bucket(bucketHeightReference).Put(hash[:], hk[:])
	})
}

func (k *chainKV) getBlockByHeight(height *big.Int) ([]byte, bool, error) {
	hk := heightKey(height)
	var out []byte
	err := k.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(hk[:])
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (k *chainKV) getHeightByHash(hash [32]byte) (*big.Int, bool, error) {
	var out []byte
	err := k.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeightReference).Get(hash[:])
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return new(big.Int).SetBytes(out), true, nil
}

// putHeightReference inserts a bare hash→height entry without touching the
// blocks bucket, used by Recover to rebuild missing index entries after an
// interrupted AddBlock (spec §5).
func (k *chainKV) putHeightReference(hash [32]byte, height *big.Int) error {
	hk := heightKey(height)
	return k.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeightReference).Put(hash[:], hk[:])
	})
}

// forEachBlock iterates the blocks bucket in height order, invoking fn with
// the stored height and dump. Used by Recover.
func (k *chainKV) forEachBlock(fn func(height *big.Int, dump []byte) error) error {
	return k.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBlocks).Cursor()
		for hk, v := c.First(); hk != nil; hk, v = c.Next() {
			if err := fn(new(big.Int).SetBytes(hk), append([]byte(nil), v...)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (k *chainKV) putTransaction(hash [32]byte, dump []byte) error {
	return k.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).Put(hash[:], dump)
	})
}

func (k *chainKV) getTransaction(hash [32]byte) ([]byte, bool, error) {
	var out []byte
	err := k.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTransactions).Get(hash[:])
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Sync forces bbolt to flush its data file to disk (spec §4.E flush()).
func (k *chainKV) Sync() error {
	return k.db.Sync()
}
