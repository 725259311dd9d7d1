package mirror

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/pkg/trade"
)

var (
	ErrNotFound = errors.New("mirror record not found")
	ErrConflict = errors.New("trade is already mirrored")
)

type Store interface {
	Insert(tx *sql.Tx, r *Record) error
	Get(rq db.QueryRunner, id string) (*Record, error)
	UpdateStatus(tx *sql.Tx, id string, status trade.Status, txHash string, updatedAt int64) error
	SetTransactionHash(tx *sql.Tx, id string, txHash string, updatedAt int64) error
	// MissingTransactionHash lists accepted records linked to an on-chain
	// trade that have no settlement hash yet.
	MissingTransactionHash(rq db.QueryRunner, contract string, limit int) ([]*Record, error)
	// FindByTradeID returns the record linked to an on-chain trade.
	FindByTradeID(rq db.QueryRunner, contract, tradeID string) (*Record, error)
	// ScannedTo reports the last block backfill searched for each record id
	// it has searched before.
	ScannedTo(rq db.QueryRunner, ids []string) (map[string]uint64, error)
	SetScannedTo(tx *sql.Tx, ids []string, block uint64) error

	// Page lists records matching where, newest first.
	Page(rq db.QueryRunner, where string, params []interface{}, page, pageSize int) (total int, records []*Record, err error)
}

func NewStore() Store {
	return &StoreImpl{}
}

type StoreImpl struct{}

const allRecordsQuery = `SELECT ` + recordColumns + ` FROM trades`

func (s *StoreImpl) Insert(tx *sql.Tx, r *Record) error {
	offered, err := json.Marshal(assetsOrEmpty(r.OfferedAssets))
	if err != nil {
		return err
	}
	requested, err := json.Marshal(assetsOrEmpty(r.RequestedAssets))
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO trades (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.From, r.To, string(offered), string(requested),
		r.OfferedNative, r.RequestedNative, r.Message, r.Status.String(), r.ContractAddress,
		nullable(r.BlockchainTradeID), nullable(r.CreateTxHash), nullable(r.TransactionHash),
		r.CreatedAt, r.UpdatedAt,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: trade %s on %s", ErrConflict, r.BlockchainTradeID, r.ContractAddress)
	}
	return err
}

func (s *StoreImpl) Get(rq db.QueryRunner, id string) (*Record, error) {
	r := &Record{}
	err := r.ScanRow(rq.QueryRow(allRecordsQuery+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *StoreImpl) UpdateStatus(tx *sql.Tx, id string, status trade.Status, txHash string, updatedAt int64) error {
	res, err := tx.Exec(`
		UPDATE trades SET status = ?, transaction_hash = COALESCE(?, transaction_hash), updated_at = ?
		WHERE id = ?`,
		status.String(), nullable(txHash), updatedAt, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, id)
}

func (s *StoreImpl) SetTransactionHash(tx *sql.Tx, id string, txHash string, updatedAt int64) error {
	res, err := tx.Exec(`
		UPDATE trades SET transaction_hash = ?, updated_at = ?
		WHERE id = ? AND transaction_hash IS NULL`,
		txHash, updatedAt, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, id)
}

func (s *StoreImpl) MissingTransactionHash(rq db.QueryRunner, contract string, limit int) ([]*Record, error) {
	rows, err := rq.Query(allRecordsQuery+`
		WHERE status = ? AND contract_address = ? AND blockchain_trade_id IS NOT NULL AND transaction_hash IS NULL
		ORDER BY created_at ASC LIMIT ?`,
		trade.StatusAccepted.String(), contract, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return db.ScanAll(rows, func() *Record { return &Record{} })
}

func (s *StoreImpl) FindByTradeID(rq db.QueryRunner, contract, tradeID string) (*Record, error) {
	r := &Record{}
	err := r.ScanRow(rq.QueryRow(allRecordsQuery+` WHERE contract_address = ? AND blockchain_trade_id = ?`, contract, tradeID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: trade %s on %s", ErrNotFound, tradeID, contract)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *StoreImpl) ScannedTo(rq db.QueryRunner, ids []string) (map[string]uint64, error) {
	scanned := make(map[string]uint64, len(ids))
	if len(ids) == 0 {
		return scanned, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	rows, err := rq.Query(`SELECT record_id, scanned_to FROM backfill_scans WHERE record_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    string
			block int64
		)
		if err := rows.Scan(&id, &block); err != nil {
			return nil, err
		}
		scanned[id] = uint64(block)
	}
	return scanned, rows.Err()
}

func (s *StoreImpl) SetScannedTo(tx *sql.Tx, ids []string, block uint64) error {
	for _, id := range ids {
		_, err := tx.Exec(`
			INSERT INTO backfill_scans (record_id, scanned_to) VALUES (?, ?)
			ON CONFLICT (record_id) DO UPDATE SET scanned_to = excluded.scanned_to`,
			id, int64(block))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreImpl) Page(rq db.QueryRunner, where string, params []interface{}, page, pageSize int) (int, []*Record, error) {
	return db.Paginate(rq, db.PageQuery{
		Table:     "trades",
		Select:    allRecordsQuery,
		Where:     where,
		Params:    params,
		OrderBy:   []string{"created_at", "id"},
		Direction: db.QueryDirectionDesc,
		Page:      page,
		PageSize:  pageSize,
	}, func() *Record { return &Record{} })
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func assetsOrEmpty(assets []trade.Asset) []trade.Asset {
	if assets == nil {
		return []trade.Asset{}
	}
	return assets
}
