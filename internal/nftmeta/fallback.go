package nftmeta

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Fallback asks each provider in turn and returns the first successful page.
// Page keys are provider specific, so a continued listing only goes to the
// provider that issued the key.
type Fallback struct {
	providers []Provider
}

func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{providers: providers}
}

func (f *Fallback) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

func (f *Fallback) ListOwnerNFTs(ctx context.Context, owner common.Address, opts ListOptions) (*Page, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrUnavailable)
	}
	if name, key, ok := splitPageKey(opts.PageKey); ok {
		for _, p := range f.providers {
			if p.Name() == name {
				opts.PageKey = key
				page, err := p.ListOwnerNFTs(ctx, owner, opts)
				if err != nil {
					return nil, err
				}
				return tagPage(name, page), nil
			}
		}
		return nil, fmt.Errorf("unknown page key provider %q", name)
	}

	var errs []error
	for _, p := range f.providers {
		page, err := p.ListOwnerNFTs(ctx, owner, opts)
		if err == nil {
			return tagPage(p.Name(), page), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("Metadata provider failed, trying next", zap.String("provider", p.Name()), zap.Error(err))
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// tagPage prefixes the next page key with the provider name.
func tagPage(name string, page *Page) *Page {
	if page.PageKey == "" {
		return page
	}
	out := *page
	out.PageKey = name + ":" + page.PageKey
	return &out
}

func splitPageKey(key string) (string, string, bool) {
	name, rest, ok := strings.Cut(key, ":")
	if !ok || name == "" {
		return "", "", false
	}
	return name, rest, true
}
