package nftmeta

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/cache"
)

// Cached serves repeated listings from a TTL cache. Listings may be stale for
// up to the cache TTL.
type Cached struct {
	next  Provider
	cache *cache.TTL[*Page]
}

func NewCached(next Provider, c *cache.TTL[*Page]) *Cached {
	return &Cached{next: next, cache: c}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) ListOwnerNFTs(ctx context.Context, owner common.Address, opts ListOptions) (*Page, error) {
	return c.cache.GetOrLoad(ctx, cacheKey(c.next.Name(), owner, opts), func(ctx context.Context) (*Page, error) {
		return c.next.ListOwnerNFTs(ctx, owner, opts)
	})
}

func cacheKey(provider string, owner common.Address, opts ListOptions) string {
	contracts := make([]string, len(opts.Contracts))
	for i, a := range opts.Contracts {
		contracts[i] = strings.ToLower(a.Hex())
	}
	sort.Strings(contracts)
	return strings.Join([]string{
		"nfts", provider, strings.ToLower(owner.Hex()),
		strings.Join(contracts, ","), opts.PageKey, strconv.Itoa(opts.pageSize()),
	}, "|")
}
