// Package onchain adapts every deployed trading contract version to
// escrow.TradingContract over a node connection.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/pkg/trade"
)

// assetTuple mirrors the contract's asset struct for ABI packing.
type assetTuple struct {
	ContractAddress common.Address
	TokenId         *big.Int
	Amount          *big.Int
	Standard        uint8
}

func toTuples(assets []trade.Asset) []assetTuple {
	out := make([]assetTuple, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetTuple{
			ContractAddress: a.Contract,
			TokenId:         a.TokenID,
			Amount:          a.Quantity(),
			Standard:        uint8(a.Standard),
		})
	}
	return out
}

func fromTuples(tuples []assetTuple) []trade.Asset {
	out := make([]trade.Asset, 0, len(tuples))
	for _, t := range tuples {
		out = append(out, trade.Asset{
			Contract: t.ContractAddress,
			TokenID:  t.TokenId,
			Amount:   t.Amount,
			Standard: trade.Standard(t.Standard),
		})
	}
	return out
}

func receiptIDs(assets []trade.Asset) []*big.Int {
	out := make([]*big.Int, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.TokenID)
	}
	return out
}

// ABIFor returns the ABI matching a contract version.
func ABIFor(v escrow.Version) abi.ABI {
	switch v {
	case escrow.V1, escrow.V2:
		return eth.TradingV1ABI
	case escrow.V3:
		return eth.TradingV3ABI
	case escrow.VersionVault:
		return eth.VaultABI
	default:
		return eth.TradingV4ABI
	}
}

// Adapter is a trading contract bound to one version's ABI and schema.
type Adapter struct {
	schema   escrow.Schema
	contract *eth.Contract
}

var _ escrow.TradingContract = (*Adapter)(nil)

func New(version escrow.Version, address common.Address, client eth.EthClient, signer eth.Signer) *Adapter {
	return &Adapter{
		schema:   version.Schema(),
		contract: eth.NewContract(address, ABIFor(version), client, signer),
	}
}

func (a *Adapter) Address() common.Address { return a.contract.Address() }
func (a *Adapter) Schema() escrow.Schema   { return a.schema }
func (a *Adapter) Caller() common.Address  { return a.contract.Signer().Address() }
func (a *Adapter) Contract() *eth.Contract { return a.contract }

func (a *Adapter) HasCode(ctx context.Context) (bool, error) {
	return a.contract.HasCode(ctx)
}

func (a *Adapter) TradeFee(ctx context.Context) (*big.Int, error) {
	out, err := a.contract.Call(ctx, a.schema.FeeMethod)
	if err != nil {
		return nil, err
	}
	return eth.Out[*big.Int](out, 0)
}

func (a *Adapter) GetTrade(ctx context.Context, id *big.Int) (*trade.Trade, error) {
	out, err := a.contract.Call(ctx, "getTrade", id)
	if err != nil {
		return nil, err
	}
	t, err := a.decodeTrade(id, out)
	if err != nil {
		return nil, err
	}
	if t.Creator == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", escrow.ErrTradeNotFound, id)
	}
	if t.OfferedAssets, err = a.assetList(ctx, "Offered", id); err != nil {
		return nil, err
	}
	if t.RequestedAssets, err = a.assetList(ctx, "Requested", id); err != nil {
		return nil, err
	}
	return t, nil
}

func (a *Adapter) decodeTrade(id *big.Int, out []interface{}) (*trade.Trade, error) {
	var (
		t   = &trade.Trade{ID: new(big.Int).Set(id)}
		err error
	)
	if t.Creator, err = eth.Out[common.Address](out, 0); err != nil {
		return nil, fmt.Errorf("getTrade creator: %w", err)
	}
	if t.Counterparty, err = eth.Out[common.Address](out, 1); err != nil {
		return nil, fmt.Errorf("getTrade counterparty: %w", err)
	}
	if t.OfferedNative, err = eth.Out[*big.Int](out, 2); err != nil {
		return nil, fmt.Errorf("getTrade offeredNative: %w", err)
	}
	if t.RequestedNative, err = eth.Out[*big.Int](out, 3); err != nil {
		return nil, fmt.Errorf("getTrade requestedNative: %w", err)
	}
	if t.Message, err = eth.Out[string](out, 4); err != nil {
		return nil, fmt.Errorf("getTrade message: %w", err)
	}
	status, err := eth.Out[uint8](out, 5)
	if err != nil {
		return nil, fmt.Errorf("getTrade status: %w", err)
	}
	t.Status = trade.Status(status)
	createdAt, err := eth.Out[*big.Int](out, 6)
	if err != nil {
		return nil, fmt.Errorf("getTrade createdAt: %w", err)
	}
	t.CreatedAt = time.Unix(createdAt.Int64(), 0).UTC()

	if a.schema.HasExpiryField {
		expiry, err := eth.Out[*big.Int](out, 7)
		if err != nil {
			return nil, fmt.Errorf("getTrade expiryTime: %w", err)
		}
		t.ExpiryTime = time.Unix(expiry.Int64(), 0).UTC()
	} else {
		t.ExpiryTime = t.CreatedAt.Add(trade.DefaultExpiry)
	}
	return t, nil
}

// assetList reads the offered or requested side of a trade.
func (a *Adapter) assetList(ctx context.Context, side string, id *big.Int) ([]trade.Asset, error) {
	if a.schema.UsesReceipts {
		out, err := a.contract.Call(ctx, "get"+side+"Receipts", id)
		if err != nil {
			return nil, err
		}
		ids, err := eth.Out[[]*big.Int](out, 0)
		if err != nil {
			return nil, err
		}
		assets := make([]trade.Asset, 0, len(ids))
		for _, rid := range ids {
			assets = append(assets, trade.Asset{Contract: a.Address(), TokenID: rid, Standard: trade.Receipt})
		}
		return assets, nil
	}
	out, err := a.contract.Call(ctx, "get"+side+"NFTs", id)
	if err != nil {
		return nil, err
	}
	tuples, err := eth.Out[[]assetTuple](out, 0)
	if err != nil {
		return nil, err
	}
	return fromTuples(tuples), nil
}

func (a *Adapter) CreateTrade(ctx context.Context, p trade.Proposal, value *big.Int) (*big.Int, common.Hash, error) {
	requested := p.RequestedNative
	if requested == nil {
		requested = new(big.Int)
	}
	var args []interface{}
	if a.schema.UsesReceipts {
		args = []interface{}{p.Counterparty, receiptIDs(p.OfferedAssets), receiptIDs(p.RequestedAssets), requested, p.Message}
	} else {
		args = []interface{}{p.Counterparty, toTuples(p.OfferedAssets), toTuples(p.RequestedAssets), requested, p.Message}
	}
	receipt, err := a.contract.Transact(ctx, value, "createTrade", args...)
	if err != nil {
		return nil, txHash(receipt), err
	}
	lg, err := a.contract.FindEvent(receipt, eth.EventTradeCreated)
	if err != nil {
		return nil, receipt.TxHash, err
	}
	if len(lg.Topics) < 2 {
		return nil, receipt.TxHash, fmt.Errorf("%s log has no trade id topic", eth.EventTradeCreated)
	}
	return lg.Topics[1].Big(), receipt.TxHash, nil
}

func (a *Adapter) AcceptTrade(ctx context.Context, id *big.Int, value *big.Int) (common.Hash, error) {
	return a.send(ctx, value, "acceptTrade", id)
}

func (a *Adapter) DeclineTrade(ctx context.Context, id *big.Int) (common.Hash, error) {
	if !a.schema.SupportsDecline {
		return common.Hash{}, fmt.Errorf("%w: declineTrade on %s", escrow.ErrUnsupported, a.schema.Version)
	}
	return a.send(ctx, nil, "declineTrade", id)
}

func (a *Adapter) CancelTrade(ctx context.Context, id *big.Int) (common.Hash, error) {
	return a.send(ctx, nil, "cancelTrade", id)
}

func (a *Adapter) ExpireTrade(ctx context.Context, id *big.Int) (common.Hash, error) {
	if !a.schema.HasExpireCall {
		return common.Hash{}, fmt.Errorf("%w: expireTrade on %s", escrow.ErrUnsupported, a.schema.Version)
	}
	return a.send(ctx, nil, "expireTrade", id)
}

func (a *Adapter) send(ctx context.Context, value *big.Int, method string, args ...interface{}) (common.Hash, error) {
	receipt, err := a.contract.Transact(ctx, value, method, args...)
	return txHash(receipt), err
}

func txHash(receipt *types.Receipt) common.Hash {
	if receipt == nil {
		return common.Hash{}
	}
	return receipt.TxHash
}
