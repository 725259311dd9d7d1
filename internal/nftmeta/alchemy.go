package nftmeta

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const alchemyDefaultUrl = "https://monad-testnet.g.alchemy.com"

type Alchemy struct {
	opts Options
	t    *transport
}

// NewAlchemy builds the Alchemy NFT API v3 provider. The API key is part of
// the request path.
func NewAlchemy(opts Options) (*Alchemy, error) {
	if opts.ApiKey == "" {
		return nil, errors.New("alchemy: api key is required")
	}
	opts = opts.withDefaults(alchemyDefaultUrl)
	return &Alchemy{opts: opts, t: newTransport("alchemy", opts)}, nil
}

func (a *Alchemy) Name() string { return "alchemy" }

type alchemyOwnedNFTs struct {
	OwnedNfts []struct {
		Contract struct {
			Address   string `json:"address"`
			Name      string `json:"name"`
			TokenType string `json:"tokenType"`
		} `json:"contract"`
		TokenID   string `json:"tokenId"`
		TokenType string `json:"tokenType"`
		Name      string `json:"name"`
		Balance   string `json:"balance"`
		Image     struct {
			CachedUrl    string `json:"cachedUrl"`
			ThumbnailUrl string `json:"thumbnailUrl"`
			OriginalUrl  string `json:"originalUrl"`
		} `json:"image"`
	} `json:"ownedNfts"`
	PageKey    string `json:"pageKey"`
	TotalCount int    `json:"totalCount"`
}

func (a *Alchemy) ListOwnerNFTs(ctx context.Context, owner common.Address, opts ListOptions) (*Page, error) {
	query := url.Values{}
	query.Set("owner", owner.Hex())
	query.Set("withMetadata", "true")
	query.Set("pageSize", strconv.Itoa(opts.pageSize()))
	for _, c := range opts.Contracts {
		query.Add("contractAddresses[]", c.Hex())
	}
	if opts.PageKey != "" {
		query.Set("pageKey", opts.PageKey)
	}
	rawUrl, err := joinUrl(a.opts.BaseUrl, "/nft/v3/"+url.PathEscape(a.opts.ApiKey)+"/getNFTsForOwner", query)
	if err != nil {
		return nil, err
	}

	var out alchemyOwnedNFTs
	if err := a.t.get(ctx, rawUrl, nil, &out); err != nil {
		return nil, err
	}

	page := &Page{NFTs: make([]OwnedNFT, 0, len(out.OwnedNfts)), PageKey: out.PageKey}
	for _, n := range out.OwnedNfts {
		kind := n.TokenType
		if kind == "" {
			kind = n.Contract.TokenType
		}
		name := n.Name
		if name == "" {
			name = n.Contract.Name
		}
		image := n.Image.CachedUrl
		if image == "" {
			image = n.Image.OriginalUrl
		}
		balance := n.Balance
		if balance == "" {
			balance = "1"
		}
		page.NFTs = append(page.NFTs, OwnedNFT{
			Contract:  common.HexToAddress(n.Contract.Address),
			TokenID:   decimalTokenID(n.TokenID),
			Name:      name,
			Image:     image,
			Balance:   balance,
			TokenType: normalizeTokenType(kind),
		})
	}
	return page, nil
}
