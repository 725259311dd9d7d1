package assets

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/pkg/trade"
	"go.uber.org/zap"
)

var (
	ErrNotOwner            = errors.New("caller does not own asset")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrNotApproved         = errors.New("trading contract is not approved for asset")
	ErrApprovalNotObserved = errors.New("approval confirmed on chain but not observed on read-back")
)

// Collection is the read/write surface of one NFT collection.
type Collection interface {
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error)
	GetApproved(ctx context.Context, tokenID *big.Int) (common.Address, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (common.Hash, error)
}

type CollectionProvider interface {
	Collection(address common.Address, standard trade.Standard) Collection
}

// ReceiptOwners resolves the current holder of a vault receipt.
type ReceiptOwners interface {
	ReceiptOwner(ctx context.Context, receiptID *big.Int) (common.Address, bool, error)
}

type chainCollections struct {
	bindings *eth.NFTCollections
}

// OnChain serves collections straight from contract reads and writes.
func OnChain(client eth.EthClient, signer eth.Signer) CollectionProvider {
	return chainCollections{bindings: eth.NewNFTCollections(client, signer)}
}

func (c chainCollections) Collection(address common.Address, standard trade.Standard) Collection {
	return c.bindings.Bind(address, standard)
}

// Checker verifies that a holder owns the assets of a trade and that the
// trading contract may move them.
type Checker struct {
	collections CollectionProvider
	operator    common.Address
	receipts    ReceiptOwners
}

// NewChecker builds a checker for operator, the trading contract address.
// receipts may be nil when no vault is in use.
func NewChecker(collections CollectionProvider, operator common.Address, receipts ReceiptOwners) *Checker {
	return &Checker{collections: collections, operator: operator, receipts: receipts}
}

func (c *Checker) Operator() common.Address {
	return c.operator
}

// IsApproved fails closed: a read error counts as not approved.
func (c *Checker) IsApproved(ctx context.Context, owner common.Address, asset trade.Asset) bool {
	approved, err := c.approval(ctx, owner, asset)
	if err != nil {
		zap.L().Warn("Approval read failed, treating asset as not approved",
			zap.String("asset", asset.String()),
			zap.String("owner", owner.Hex()),
			zap.Error(err),
		)
		return false
	}
	return approved
}

func (c *Checker) approval(ctx context.Context, owner common.Address, asset trade.Asset) (bool, error) {
	switch asset.Standard {
	case trade.Receipt:
		// Receipts are held by the vault, which is the operator.
		return true, nil
	case trade.ERC721:
		collection := c.collections.Collection(asset.Contract, asset.Standard)
		approved, err := collection.GetApproved(ctx, asset.TokenID)
		if err == nil && approved == c.operator {
			return true, nil
		}
		forAll, allErr := collection.IsApprovedForAll(ctx, owner, c.operator)
		if allErr != nil {
			return false, allErr
		}
		return forAll, nil
	case trade.ERC1155:
		return c.collections.Collection(asset.Contract, asset.Standard).IsApprovedForAll(ctx, owner, c.operator)
	}
	return false, fmt.Errorf("unsupported standard %s", asset.Standard)
}

type ApprovalResult struct {
	Collection common.Address
	TxHash     common.Hash
}

// EnsureApproved grants setApprovalForAll once per collection that holds an
// unapproved asset, then reads the approval back. A confirmed approval that
// does not read back as granted fails with ErrApprovalNotObserved.
func (c *Checker) EnsureApproved(ctx context.Context, owner common.Address, assets []trade.Asset) ([]ApprovalResult, error) {
	pending := make(map[common.Address]trade.Standard)
	var order []common.Address
	for _, asset := range assets {
		if asset.Standard == trade.Receipt {
			continue
		}
		if _, seen := pending[asset.Contract]; seen {
			continue
		}
		if c.IsApproved(ctx, owner, asset) {
			continue
		}
		pending[asset.Contract] = asset.Standard
		order = append(order, asset.Contract)
	}

	var results []ApprovalResult
	for _, address := range order {
		collection := c.collections.Collection(address, pending[address])
		txHash, err := collection.SetApprovalForAll(ctx, c.operator, true)
		if err != nil {
			return results, fmt.Errorf("approving %s: %w", address.Hex(), err)
		}
		zap.L().Info("Collection approved for trading contract",
			zap.String("collection", address.Hex()),
			zap.String("operator", c.operator.Hex()),
			zap.String("txHash", txHash.Hex()),
		)
		results = append(results, ApprovalResult{Collection: address, TxHash: txHash})

		ok, err := collection.IsApprovedForAll(ctx, owner, c.operator)
		if err != nil {
			return results, fmt.Errorf("%w: %s: %v", ErrApprovalNotObserved, address.Hex(), err)
		}
		if !ok {
			return results, fmt.Errorf("%w: %s (tx %s)", ErrApprovalNotObserved, address.Hex(), txHash.Hex())
		}
	}
	return results, nil
}

// RequireApproved returns ErrNotApproved for the first unapproved asset.
func (c *Checker) RequireApproved(ctx context.Context, owner common.Address, assets []trade.Asset) error {
	for _, asset := range assets {
		if !c.IsApproved(ctx, owner, asset) {
			return fmt.Errorf("%w: %s", ErrNotApproved, asset)
		}
	}
	return nil
}

// VerifyHoldings checks holder owns every asset in the needed amount.
func (c *Checker) VerifyHoldings(ctx context.Context, holder common.Address, assets []trade.Asset) error {
	for _, asset := range assets {
		if err := c.verifyHolding(ctx, holder, asset); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) verifyHolding(ctx context.Context, holder common.Address, asset trade.Asset) error {
	switch asset.Standard {
	case trade.ERC721:
		owner, err := c.collections.Collection(asset.Contract, asset.Standard).OwnerOf(ctx, asset.TokenID)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotOwner, asset, err)
		}
		if owner != holder {
			return fmt.Errorf("%w: %s is owned by %s", ErrNotOwner, asset, owner.Hex())
		}
	case trade.ERC1155:
		balance, err := c.collections.Collection(asset.Contract, asset.Standard).BalanceOf(ctx, holder, asset.TokenID)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInsufficientBalance, asset, err)
		}
		if balance.Cmp(asset.Quantity()) < 0 {
			return fmt.Errorf("%w: %s, holder has %s", ErrInsufficientBalance, asset, balance)
		}
	case trade.Receipt:
		if c.receipts == nil {
			return fmt.Errorf("%w: %s: no receipt index", ErrNotOwner, asset)
		}
		owner, found, err := c.receipts.ReceiptOwner(ctx, asset.TokenID)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotOwner, asset, err)
		}
		if !found || owner != holder {
			return fmt.Errorf("%w: receipt %s", ErrNotOwner, asset.TokenID)
		}
	default:
		return fmt.Errorf("unsupported standard %s", asset.Standard)
	}
	return nil
}

type AssetStatus struct {
	Asset     trade.Asset
	Held      bool
	HoldError string
	Approved  bool
}

// Report describes holding and approval state of each asset without failing.
func (c *Checker) Report(ctx context.Context, holder common.Address, assets []trade.Asset) []AssetStatus {
	statuses := make([]AssetStatus, 0, len(assets))
	for _, asset := range assets {
		status := AssetStatus{Asset: asset, Held: true}
		if err := c.verifyHolding(ctx, holder, asset); err != nil {
			status.Held = false
			status.HoldError = err.Error()
		}
		status.Approved = c.IsApproved(ctx, holder, asset)
		statuses = append(statuses, status)
	}
	return statuses
}
