package eth

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/pkg/trade"
)

// NFTCollection reads ownership and approval state of one ERC-721 or ERC-1155
// collection and grants operator approval as the bound signer.
type NFTCollection struct {
	standard trade.Standard
	contract *Contract
}

func NewNFTCollection(address common.Address, standard trade.Standard, client EthClient, signer Signer) *NFTCollection {
	parsed := ERC721ABI
	if standard == trade.ERC1155 {
		parsed = ERC1155ABI
	}
	return &NFTCollection{standard: standard, contract: NewContract(address, parsed, client, signer)}
}

func (c *NFTCollection) Address() common.Address {
	return c.contract.Address()
}

func (c *NFTCollection) Standard() trade.Standard {
	return c.standard
}

func (c *NFTCollection) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := c.contract.Call(ctx, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return Out[common.Address](out, 0)
}

func (c *NFTCollection) BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	out, err := c.contract.Call(ctx, "balanceOf", owner, tokenID)
	if err != nil {
		return nil, err
	}
	return Out[*big.Int](out, 0)
}

func (c *NFTCollection) GetApproved(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := c.contract.Call(ctx, "getApproved", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return Out[common.Address](out, 0)
}

func (c *NFTCollection) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	out, err := c.contract.Call(ctx, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	return Out[bool](out, 0)
}

func (c *NFTCollection) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (common.Hash, error) {
	receipt, err := c.contract.Transact(ctx, nil, "setApprovalForAll", operator, approved)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// NFTCollections binds collections to one node connection and signer.
type NFTCollections struct {
	client EthClient
	signer Signer
}

func NewNFTCollections(client EthClient, signer Signer) *NFTCollections {
	return &NFTCollections{client: client, signer: signer}
}

func (p *NFTCollections) Bind(address common.Address, standard trade.Standard) *NFTCollection {
	return NewNFTCollection(address, standard, p.client, p.signer)
}
