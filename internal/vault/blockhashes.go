package vault

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
)

const blockHashPrefix = "vault:blockHash:"

// BlockHashes remembers the hash of each block the index was synced to, so a
// later run can tell whether the chain it built on is still canonical.
type BlockHashes struct {
	mu sync.RWMutex
	db *badger.DB
}

func NewBlockHashes(db *badger.DB) *BlockHashes {
	return &BlockHashes{db: db}
}

func (b *BlockHashes) GetHash(blockNumber uint64) (common.Hash, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var hash common.Hash
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockHashKey(blockNumber))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			hash.SetBytes(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, err
	}
	return hash, true, nil
}

func (b *BlockHashes) SetHash(blockNumber uint64, hash common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockHashKey(blockNumber), hash.Bytes())
	})
}

// RevertFromBlock forgets every hash at or above fromBlock.
func (b *BlockHashes) RevertFromBlock(fromBlock uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(blockHashPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var stale [][]byte
		for it.Seek(blockHashKey(fromBlock)); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Prune forgets every hash below block.
func (b *BlockHashes) Prune(block uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(blockHashPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var stale [][]byte
		limit := blockHashKey(block)
		for it.Rewind(); it.Valid() && bytes.Compare(it.Item().Key(), limit) < 0; it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func blockHashKey(blockNumber uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], blockNumber)
	return append([]byte(blockHashPrefix), buf[:]...)
}
