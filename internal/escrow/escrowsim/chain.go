// Package escrowsim is an in-memory chain with NFT collections and the
// trading contract's observable behaviour, for exercising clients without a
// node.
package escrowsim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/pkg/trade"
)

// Faults switch on misbehaviour seen on real networks.
type Faults struct {
	// FailApprovalReads makes getApproved and isApprovedForAll error.
	FailApprovalReads bool
	// DropApprovalWrites confirms setApprovalForAll without recording it.
	DropApprovalWrites bool
}

type Chain struct {
	mu      sync.Mutex
	now     time.Time
	txCount uint64
	faults  Faults

	native         map[common.Address]*big.Int
	erc721Owners   map[common.Address]map[string]common.Address
	erc1155        map[common.Address]map[string]map[common.Address]*big.Int
	tokenApprovals map[common.Address]map[string]common.Address
	operators      map[common.Address]map[common.Address]map[common.Address]bool
	approvalTxs    map[common.Address]int
}

func NewChain(start time.Time) *Chain {
	return &Chain{
		now:            start,
		native:         map[common.Address]*big.Int{},
		erc721Owners:   map[common.Address]map[string]common.Address{},
		erc1155:        map[common.Address]map[string]map[common.Address]*big.Int{},
		tokenApprovals: map[common.Address]map[string]common.Address{},
		operators:      map[common.Address]map[common.Address]map[common.Address]bool{},
		approvalTxs:    map[common.Address]int{},
	}
}

func (c *Chain) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Chain) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Chain) SetFaults(f Faults) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = f
}

func (c *Chain) Fund(account common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(account, wei)
}

func (c *Chain) Balance(account common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(account))
}

func (c *Chain) MintERC721(contract common.Address, tokenID int64, owner common.Address) trade.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.erc721Owners[contract] == nil {
		c.erc721Owners[contract] = map[string]common.Address{}
	}
	id := big.NewInt(tokenID)
	c.erc721Owners[contract][id.String()] = owner
	return trade.Asset{Contract: contract, TokenID: id, Amount: big.NewInt(1), Standard: trade.ERC721}
}

func (c *Chain) MintERC1155(contract common.Address, tokenID int64, owner common.Address, amount int64) trade.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := big.NewInt(tokenID)
	holders := c.holders1155(contract, id)
	holders[owner] = new(big.Int).Add(c.balance1155(contract, id, owner), big.NewInt(amount))
	return trade.Asset{Contract: contract, TokenID: id, Amount: big.NewInt(amount), Standard: trade.ERC1155}
}

func (c *Chain) OwnerOf(contract common.Address, tokenID *big.Int) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.erc721Owners[contract][tokenID.String()]
}

func (c *Chain) BalanceOf1155(contract common.Address, tokenID *big.Int, owner common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance1155(contract, tokenID, owner))
}

func (c *Chain) IsApprovedForAll(contract, owner, operator common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.operators[contract][owner][operator]
}

// ApproveToken grants a single-token ERC-721 approval.
func (c *Chain) ApproveToken(contract common.Address, tokenID *big.Int, operator common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenApprovals[contract] == nil {
		c.tokenApprovals[contract] = map[string]common.Address{}
	}
	c.tokenApprovals[contract][tokenID.String()] = operator
}

// ApprovalTransactions counts setApprovalForAll calls made on contract.
func (c *Chain) ApprovalTransactions(contract common.Address) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approvalTxs[contract]
}

// Collections binds collection access to caller.
func (c *Chain) Collections(caller common.Address) assets.CollectionProvider {
	return collections{chain: c, caller: caller}
}

func (c *Chain) nextTxHash() common.Hash {
	c.txCount++
	return crypto.Keccak256Hash(new(big.Int).SetUint64(c.txCount).Bytes())
}

func (c *Chain) balance(account common.Address) *big.Int {
	if b, ok := c.native[account]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) credit(account common.Address, wei *big.Int) {
	c.native[account] = new(big.Int).Add(c.balance(account), wei)
}

func (c *Chain) debit(account common.Address, wei *big.Int) {
	c.native[account] = new(big.Int).Sub(c.balance(account), wei)
}

func (c *Chain) holders1155(contract common.Address, id *big.Int) map[common.Address]*big.Int {
	if c.erc1155[contract] == nil {
		c.erc1155[contract] = map[string]map[common.Address]*big.Int{}
	}
	if c.erc1155[contract][id.String()] == nil {
		c.erc1155[contract][id.String()] = map[common.Address]*big.Int{}
	}
	return c.erc1155[contract][id.String()]
}

func (c *Chain) balance1155(contract common.Address, id *big.Int, owner common.Address) *big.Int {
	if b, ok := c.erc1155[contract][id.String()][owner]; ok {
		return b
	}
	return new(big.Int)
}

// canMove reports why operator may not move asset out of from, or nil.
func (c *Chain) canMove(asset trade.Asset, from, operator common.Address) error {
	switch asset.Standard {
	case trade.ERC721:
		if c.erc721Owners[asset.Contract][asset.TokenID.String()] != from {
			return fmt.Errorf("%w: %s", assets.ErrNotOwner, asset)
		}
		if from == operator || c.operators[asset.Contract][from][operator] ||
			c.tokenApprovals[asset.Contract][asset.TokenID.String()] == operator {
			return nil
		}
	case trade.ERC1155:
		if c.balance1155(asset.Contract, asset.TokenID, from).Cmp(asset.Quantity()) < 0 {
			return fmt.Errorf("%w: %s", assets.ErrInsufficientBalance, asset)
		}
		if from == operator || c.operators[asset.Contract][from][operator] {
			return nil
		}
	default:
		return fmt.Errorf("unsupported standard %s", asset.Standard)
	}
	return fmt.Errorf("%w: %s", assets.ErrNotApproved, asset)
}

func (c *Chain) move(asset trade.Asset, from, to common.Address) {
	switch asset.Standard {
	case trade.ERC721:
		c.erc721Owners[asset.Contract][asset.TokenID.String()] = to
		delete(c.tokenApprovals[asset.Contract], asset.TokenID.String())
	case trade.ERC1155:
		holders := c.holders1155(asset.Contract, asset.TokenID)
		holders[from] = new(big.Int).Sub(c.balance1155(asset.Contract, asset.TokenID, from), asset.Quantity())
		holders[to] = new(big.Int).Add(c.balance1155(asset.Contract, asset.TokenID, to), asset.Quantity())
	}
}

var errReadFault = errors.New("simulated approval read failure")

type collections struct {
	chain  *Chain
	caller common.Address
}

func (p collections) Collection(address common.Address, standard trade.Standard) assets.Collection {
	return &collection{chain: p.chain, address: address, standard: standard, caller: p.caller}
}

type collection struct {
	chain    *Chain
	address  common.Address
	standard trade.Standard
	caller   common.Address
}

func (c *collection) OwnerOf(_ context.Context, tokenID *big.Int) (common.Address, error) {
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	owner, ok := c.chain.erc721Owners[c.address][tokenID.String()]
	if !ok {
		return common.Address{}, &eth.RevertError{Op: "ownerOf", Reason: "ERC721: invalid token ID"}
	}
	return owner, nil
}

func (c *collection) BalanceOf(_ context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	return new(big.Int).Set(c.chain.balance1155(c.address, tokenID, owner)), nil
}

func (c *collection) GetApproved(_ context.Context, tokenID *big.Int) (common.Address, error) {
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	if c.chain.faults.FailApprovalReads {
		return common.Address{}, errReadFault
	}
	return c.chain.tokenApprovals[c.address][tokenID.String()], nil
}

func (c *collection) IsApprovedForAll(_ context.Context, owner, operator common.Address) (bool, error) {
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	if c.chain.faults.FailApprovalReads {
		return false, errReadFault
	}
	return c.chain.operators[c.address][owner][operator], nil
}

func (c *collection) SetApprovalForAll(_ context.Context, operator common.Address, approved bool) (common.Hash, error) {
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	c.chain.approvalTxs[c.address]++
	if !c.chain.faults.DropApprovalWrites {
		if c.chain.operators[c.address] == nil {
			c.chain.operators[c.address] = map[common.Address]map[common.Address]bool{}
		}
		if c.chain.operators[c.address][c.caller] == nil {
			c.chain.operators[c.address][c.caller] = map[common.Address]bool{}
		}
		c.chain.operators[c.address][c.caller][operator] = approved
	}
	return c.chain.nextTxHash(), nil
}
