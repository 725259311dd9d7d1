package vault

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/pkg/trade"
	"go.uber.org/zap"
)

// ReceiptRecord is what the index knows about one receipt, built from vault
// events only.
type ReceiptRecord struct {
	ID           string         `json:"id"`
	Owner        string         `json:"owner"`
	NFTContract  string         `json:"nftContract"`
	TokenID      string         `json:"tokenId"`
	Amount       string         `json:"amount"`
	Standard     trade.Standard `json:"standard"`
	DepositBlock uint64         `json:"depositBlock"`
}

// Asset is the NFT the receipt stands for.
func (r ReceiptRecord) Asset() trade.Asset {
	id, _ := new(big.Int).SetString(r.TokenID, 10)
	amount, _ := new(big.Int).SetString(r.Amount, 10)
	return trade.Asset{Contract: common.HexToAddress(r.NFTContract), TokenID: id, Amount: amount, Standard: r.Standard}
}

const (
	receiptPrefix = "vault:receipt:"
	ownerPrefix   = "vault:owner:"
	checkpointKey = "vault:checkpoint"
)

// Index keeps receipt ownership and the scan checkpoint in badger.
type Index struct {
	mu     sync.RWMutex
	db     *badger.DB
	hashes *BlockHashes
}

func NewIndex(db *badger.DB) *Index {
	return &Index{db: db, hashes: NewBlockHashes(db)}
}

// Reset drops every receipt, the checkpoint and the recorded block hashes.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.DropPrefix([]byte(receiptPrefix), []byte(ownerPrefix), []byte(checkpointKey)); err != nil {
		return err
	}
	return x.hashes.RevertFromBlock(0)
}

// Apply folds events into the index and moves the checkpoint to endBlock in
// one transaction.
func (x *Index) Apply(events []eth.ReceiptEvent, endBlock uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.db.Update(func(txn *badger.Txn) error {
		for _, ev := range events {
			if err := applyEvent(txn, ev); err != nil {
				return fmt.Errorf("%s receipt %s: %w", ev.Name, ev.ReceiptID, err)
			}
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], endBlock)
		return txn.Set([]byte(checkpointKey), buf[:])
	})
}

func applyEvent(txn *badger.Txn, ev eth.ReceiptEvent) error {
	id := ev.ReceiptID.String()
	switch ev.Name {
	case eth.EventNFTDeposited:
		rec := ReceiptRecord{
			ID:           id,
			Owner:        addressKey(ev.Owner),
			NFTContract:  addressKey(ev.NFTContract),
			TokenID:      ev.TokenID.String(),
			Amount:       ev.Amount.String(),
			Standard:     trade.Standard(ev.Standard),
			DepositBlock: ev.BlockNumber,
		}
		return putRecord(txn, rec)
	case eth.EventReceiptTransferred:
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if rec == nil {
			zap.L().Warn("Transfer of unknown receipt", zap.String("receiptId", id))
			return nil
		}
		if err := txn.Delete(ownerKey(rec.Owner, id)); err != nil {
			return err
		}
		rec.Owner = addressKey(ev.To)
		return putRecord(txn, *rec)
	case eth.EventNFTWithdrawn:
		rec, err := getRecord(txn, id)
		if err != nil || rec == nil {
			return err
		}
		if err := txn.Delete(ownerKey(rec.Owner, id)); err != nil {
			return err
		}
		return txn.Delete([]byte(receiptPrefix + id))
	}
	return nil
}

func putRecord(txn *badger.Txn, rec ReceiptRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set([]byte(receiptPrefix+rec.ID), value); err != nil {
		return err
	}
	return txn.Set(ownerKey(rec.Owner, rec.ID), nil)
}

func getRecord(txn *badger.Txn, id string) (*ReceiptRecord, error) {
	item, err := txn.Get([]byte(receiptPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec ReceiptRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (x *Index) Receipt(id *big.Int) (*ReceiptRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var rec *ReceiptRecord
	err := x.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id.String())
		return err
	})
	return rec, err
}

// ReceiptOwner reports the indexed owner of a receipt.
func (x *Index) ReceiptOwner(_ context.Context, id *big.Int) (common.Address, bool, error) {
	rec, err := x.Receipt(id)
	if err != nil || rec == nil {
		return common.Address{}, false, err
	}
	return common.HexToAddress(rec.Owner), true, nil
}

// ReceiptsOf lists the receipts held by owner.
func (x *Index) ReceiptsOf(owner common.Address) ([]ReceiptRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []ReceiptRecord
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := ownerKey(addressKey(owner), "")
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			rec, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			if rec != nil {
				out = append(out, *rec)
			}
		}
		return nil
	})
	return out, err
}

// Checkpoint is the last block folded into the index.
func (x *Index) Checkpoint() (uint64, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var block uint64
	err := x.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(checkpointKey))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		block = binary.BigEndian.Uint64(val)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return block, true, nil
}

func ownerKey(owner, id string) []byte {
	return []byte(ownerPrefix + owner + ":" + id)
}

func addressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}
