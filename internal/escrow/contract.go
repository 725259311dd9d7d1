package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/pkg/trade"
)

// TradingContract is the lifecycle surface every contract version is adapted
// to. Writes are made as Caller and return once mined.
type TradingContract interface {
	Address() common.Address
	Schema() Schema
	Caller() common.Address
	HasCode(ctx context.Context) (bool, error)
	TradeFee(ctx context.Context) (*big.Int, error)
	// GetTrade returns the trade as recorded on chain, expiry resolved.
	GetTrade(ctx context.Context, id *big.Int) (*trade.Trade, error)
	CreateTrade(ctx context.Context, p trade.Proposal, value *big.Int) (*big.Int, common.Hash, error)
	AcceptTrade(ctx context.Context, id *big.Int, value *big.Int) (common.Hash, error)
	DeclineTrade(ctx context.Context, id *big.Int) (common.Hash, error)
	CancelTrade(ctx context.Context, id *big.Int) (common.Hash, error)
	ExpireTrade(ctx context.Context, id *big.Int) (common.Hash, error)
}

// Balances reads native coin balances; a nil block means latest.
type Balances interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}
