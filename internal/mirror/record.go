package mirror

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/pkg/trade"
)

// Record is the shareable off-chain copy of a trade. It is advisory only:
// custody is decided by the contract.
type Record struct {
	ID                string        `json:"id"`
	From              string        `json:"from"`
	To                string        `json:"to"`
	OfferedAssets     []trade.Asset `json:"offeredAssets"`
	RequestedAssets   []trade.Asset `json:"requestedAssets"`
	OfferedNative     string        `json:"offeredNative"`
	RequestedNative   string        `json:"requestedNative"`
	Message           string        `json:"message"`
	Status            trade.Status  `json:"status"`
	ContractAddress   string        `json:"contractAddress"`
	BlockchainTradeID string        `json:"blockchainTradeId,omitempty"`
	CreateTxHash      string        `json:"createTxHash,omitempty"`
	TransactionHash   string        `json:"transactionHash,omitempty"`
	CreatedAt         int64         `json:"createdAt"`
	UpdatedAt         int64         `json:"updatedAt"`
}

const recordColumns = `id, from_address, to_address, offered_assets, requested_assets,
	offered_native, requested_native, message, status, contract_address,
	blockchain_trade_id, create_tx_hash, transaction_hash, created_at, updated_at`

func (r *Record) ScanRow(scanner db.RowScanner) error {
	var (
		offered, requested, status    string
		tradeID, createTx, acceptedTx sql.NullString
	)
	err := scanner.Scan(
		&r.ID, &r.From, &r.To, &offered, &requested,
		&r.OfferedNative, &r.RequestedNative, &r.Message, &status, &r.ContractAddress,
		&tradeID, &createTx, &acceptedTx, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(offered), &r.OfferedAssets); err != nil {
		return fmt.Errorf("decoding offered assets of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(requested), &r.RequestedAssets); err != nil {
		return fmt.Errorf("decoding requested assets of %s: %w", r.ID, err)
	}
	if r.Status, err = trade.ParseStatus(status); err != nil {
		return err
	}
	r.BlockchainTradeID = tradeID.String
	r.CreateTxHash = createTx.String
	r.TransactionHash = acceptedTx.String
	return nil
}

// OnChainID is the linked trade id, or nil when none is recorded.
func (r *Record) OnChainID() *big.Int {
	if r.BlockchainTradeID == "" {
		return nil
	}
	id, ok := new(big.Int).SetString(r.BlockchainTradeID, 10)
	if !ok {
		return nil
	}
	return id
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
