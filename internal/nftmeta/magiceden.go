package nftmeta

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const magicEdenDefaultUrl = "https://api-mainnet.magiceden.dev"

// magicEdenMaxPageSize is the largest limit the users/tokens endpoint takes.
const magicEdenMaxPageSize = 200

type MagicEden struct {
	opts  Options
	chain string
	t     *transport
}

func NewMagicEden(chain string, opts Options) (*MagicEden, error) {
	if chain == "" {
		return nil, errors.New("magic eden: chain is required")
	}
	opts = opts.withDefaults(magicEdenDefaultUrl)
	return &MagicEden{opts: opts, chain: chain, t: newTransport("magiceden", opts)}, nil
}

func (m *MagicEden) Name() string { return "magiceden" }

type magicEdenUserTokens struct {
	Tokens []struct {
		Token struct {
			Contract string `json:"contract"`
			TokenID  string `json:"tokenId"`
			Kind     string `json:"kind"`
			Name     string `json:"name"`
			Image    string `json:"image"`
		} `json:"token"`
		Ownership struct {
			TokenCount string `json:"tokenCount"`
		} `json:"ownership"`
	} `json:"tokens"`
	Continuation string `json:"continuation"`
}

func (m *MagicEden) ListOwnerNFTs(ctx context.Context, owner common.Address, opts ListOptions) (*Page, error) {
	limit := opts.pageSize()
	if limit > magicEdenMaxPageSize {
		limit = magicEdenMaxPageSize
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	for _, c := range opts.Contracts {
		query.Add("contract", strings.ToLower(c.Hex()))
	}
	if opts.PageKey != "" {
		query.Set("continuation", opts.PageKey)
	}
	path := "/v3/rtp/" + url.PathEscape(m.chain) + "/users/" + strings.ToLower(owner.Hex()) + "/tokens/v7"
	rawUrl, err := joinUrl(m.opts.BaseUrl, path, query)
	if err != nil {
		return nil, err
	}

	var header http.Header
	if m.opts.ApiKey != "" {
		header = http.Header{"Authorization": {"Bearer " + m.opts.ApiKey}}
	}
	var out magicEdenUserTokens
	if err := m.t.get(ctx, rawUrl, header, &out); err != nil {
		return nil, err
	}

	page := &Page{NFTs: make([]OwnedNFT, 0, len(out.Tokens)), PageKey: out.Continuation}
	for _, t := range out.Tokens {
		balance := t.Ownership.TokenCount
		if balance == "" {
			balance = "1"
		}
		page.NFTs = append(page.NFTs, OwnedNFT{
			Contract:  common.HexToAddress(t.Token.Contract),
			TokenID:   decimalTokenID(t.Token.TokenID),
			Name:      t.Token.Name,
			Image:     t.Token.Image,
			Balance:   balance,
			TokenType: normalizeTokenType(t.Token.Kind),
		})
	}
	return page, nil
}
