package nftmeta

import (
	"fmt"
	"strings"

	"github.com/nftescrow/tradenode/internal/cache"
	"github.com/nftescrow/tradenode/internal/config"
)

// NewFromConfig builds the providers named in NFT_METADATA_PROVIDER, a comma
// separated list tried in order. A nil cache disables caching.
func NewFromConfig(cfg config.Config, network config.Network, pages *cache.TTL[*Page]) (Provider, error) {
	var providers []Provider
	for _, name := range strings.Split(cfg.NftMetadataProvider, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case "alchemy":
			p, err := NewAlchemy(Options{BaseUrl: cfg.AlchemyBaseUrl(network), ApiKey: cfg.AlchemyApiKey})
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		case "magiceden", "magic-eden":
			p, err := NewMagicEden(cfg.MagicEdenChain, Options{BaseUrl: cfg.MagicEdenApiUrl, ApiKey: cfg.MagicEdenApiKey})
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown nft metadata provider %q", name)
		}
	}

	var p Provider
	switch len(providers) {
	case 0:
		return nil, fmt.Errorf("no nft metadata provider configured")
	case 1:
		p = providers[0]
	default:
		p = NewFallback(providers...)
	}
	if pages != nil {
		p = NewCached(p, pages)
	}
	return p, nil
}
