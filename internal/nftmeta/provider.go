// Package nftmeta lists the NFTs a wallet holds through third-party indexers.
// The results are display data only; ownership that matters for a trade is
// always checked on chain.
package nftmeta

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/pkg/trade"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type Provider interface {
	Name() string
	ListOwnerNFTs(ctx context.Context, owner common.Address, opts ListOptions) (*Page, error)
}

type ListOptions struct {
	// Contracts limits the listing to these collections. Empty means all.
	Contracts []common.Address
	PageKey   string
	PageSize  int
}

func (o ListOptions) pageSize() int {
	switch {
	case o.PageSize <= 0:
		return DefaultPageSize
	case o.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return o.PageSize
}

type OwnedNFT struct {
	Contract  common.Address `json:"contract"`
	TokenID   string         `json:"tokenId"`
	Name      string         `json:"name,omitempty"`
	Image     string         `json:"image,omitempty"`
	Balance   string         `json:"balance"`
	TokenType string         `json:"tokenType"`
}

// Asset converts the listing entry into a tradeable asset of amount 1.
func (n OwnedNFT) Asset() (trade.Asset, error) {
	id, ok := new(big.Int).SetString(n.TokenID, 0)
	if !ok {
		return trade.Asset{}, fmt.Errorf("invalid token id %q", n.TokenID)
	}
	std, err := trade.ParseStandard(n.TokenType)
	if err != nil {
		return trade.Asset{}, err
	}
	return trade.Asset{Contract: n.Contract, TokenID: id, Amount: big.NewInt(1), Standard: std}, nil
}

type Page struct {
	NFTs []OwnedNFT `json:"nfts"`
	// PageKey continues the listing; empty on the last page.
	PageKey string `json:"pageKey,omitempty"`
}

// normalizeTokenType maps provider spellings ("erc721", "ERC1155") onto the
// names used by trade.Standard, passing unknown kinds through upper-cased.
func normalizeTokenType(kind string) string {
	if std, err := trade.ParseStandard(kind); err == nil {
		return std.String()
	}
	return strings.ToUpper(kind)
}

// decimalTokenID accepts decimal or 0x-prefixed ids and renders them decimal.
func decimalTokenID(id string) string {
	v, ok := new(big.Int).SetString(id, 0)
	if !ok {
		return id
	}
	return v.String()
}
