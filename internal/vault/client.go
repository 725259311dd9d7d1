// Package vault deposits NFTs into the vault for tradeable receipts, indexes
// receipt ownership from vault events and withdraws the real asset again.
package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/pkg/trade"
	"go.uber.org/zap"
)

var ErrUnknownReceipt = errors.New("receipt not known")

type Client struct {
	contract Contract
	checker  *assets.Checker
	receipts assets.ReceiptOwners
}

// NewClient wires a vault client. The checker's operator must be the vault.
func NewClient(contract Contract, checker *assets.Checker, receipts assets.ReceiptOwners) (*Client, error) {
	if checker.Operator() != contract.Address() {
		return nil, fmt.Errorf("approval operator %s is not the vault %s", checker.Operator().Hex(), contract.Address().Hex())
	}
	return &Client{contract: contract, checker: checker, receipts: receipts}, nil
}

func (c *Client) Checker() *assets.Checker { return c.checker }

type Deposited struct {
	ReceiptID *big.Int
	TxHash    common.Hash
	Approvals []assets.ApprovalResult
}

// Deposit escrows asset in the vault after checking the caller holds it and
// making sure the vault is approved for its collection.
func (c *Client) Deposit(ctx context.Context, asset trade.Asset) (*Deposited, error) {
	if asset.Standard == trade.Receipt {
		return nil, fmt.Errorf("%w: receipts cannot be deposited", trade.ErrInvalidAmount)
	}
	if err := trade.ValidateAsset(asset); err != nil {
		return nil, err
	}
	caller := c.contract.Caller()
	if err := c.checker.VerifyHoldings(ctx, caller, []trade.Asset{asset}); err != nil {
		return nil, err
	}
	approvals, err := c.checker.EnsureApproved(ctx, caller, []trade.Asset{asset})
	if err != nil {
		return nil, err
	}
	id, txHash, err := c.contract.Deposit(ctx, asset)
	if err != nil {
		return nil, err
	}
	zap.L().Info("NFT deposited",
		zap.String("receiptId", id.String()),
		zap.String("asset", asset.String()),
		zap.String("txHash", txHash.Hex()),
	)
	return &Deposited{ReceiptID: id, TxHash: txHash, Approvals: approvals}, nil
}

// Withdraw redeems a receipt the caller owns for the underlying NFT.
func (c *Client) Withdraw(ctx context.Context, receiptID *big.Int) (common.Hash, error) {
	owner, ok, err := c.receipts.ReceiptOwner(ctx, receiptID)
	if err != nil {
		return common.Hash{}, err
	}
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrUnknownReceipt, receiptID)
	}
	if owner != c.contract.Caller() {
		return common.Hash{}, fmt.Errorf("%w: receipt %s belongs to %s", assets.ErrNotOwner, receiptID, owner.Hex())
	}
	txHash, err := c.contract.Withdraw(ctx, receiptID)
	if err != nil {
		return common.Hash{}, err
	}
	zap.L().Info("NFT withdrawn", zap.String("receiptId", receiptID.String()), zap.String("txHash", txHash.Hex()))
	return txHash, nil
}
