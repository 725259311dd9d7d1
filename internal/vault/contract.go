package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/pkg/trade"
)

// Contract is the deposit and withdraw surface of a vault, acting as Caller.
type Contract interface {
	Address() common.Address
	Caller() common.Address
	Deposit(ctx context.Context, asset trade.Asset) (*big.Int, common.Hash, error)
	Withdraw(ctx context.Context, receiptID *big.Int) (common.Hash, error)
}

// OnChain talks to a deployed vault through the contract proxy.
type OnChain struct {
	contract *eth.Contract
}

var _ Contract = (*OnChain)(nil)

func NewOnChain(address common.Address, client eth.EthClient, signer eth.Signer) *OnChain {
	return &OnChain{contract: eth.NewContract(address, eth.VaultABI, client, signer)}
}

func (v *OnChain) Address() common.Address { return v.contract.Address() }
func (v *OnChain) Caller() common.Address  { return v.contract.Signer().Address() }

// Deposit moves asset into the vault and returns the receipt id read from
// the NFTDeposited log.
func (v *OnChain) Deposit(ctx context.Context, asset trade.Asset) (*big.Int, common.Hash, error) {
	receipt, err := v.contract.Transact(ctx, nil, "depositNFT",
		asset.Contract, asset.TokenID, asset.Quantity(), uint8(asset.Standard))
	if err != nil {
		var hash common.Hash
		if receipt != nil {
			hash = receipt.TxHash
		}
		return nil, hash, err
	}
	lg, err := v.contract.FindEvent(receipt, eth.EventNFTDeposited)
	if err != nil {
		return nil, receipt.TxHash, err
	}
	if len(lg.Topics) < 2 {
		return nil, receipt.TxHash, fmt.Errorf("%s log has no receipt id topic", eth.EventNFTDeposited)
	}
	return lg.Topics[1].Big(), receipt.TxHash, nil
}

func (v *OnChain) Withdraw(ctx context.Context, receiptID *big.Int) (common.Hash, error) {
	receipt, err := v.contract.Transact(ctx, nil, "withdrawNFT", receiptID)
	if receipt == nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, err
}
