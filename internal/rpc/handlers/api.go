package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/mirror"
	"github.com/nftescrow/tradenode/internal/nftmeta"
	"github.com/nftescrow/tradenode/pkg/trade"
)

// TradeMirror is the mirror surface the API serves.
type TradeMirror interface {
	ProposeTrade(ctx context.Context, p mirror.Proposal) (*mirror.Proposed, error)
	Get(ctx context.Context, id string) (*mirror.Record, error)
	UpdateStatus(ctx context.Context, id string, actor common.Address, status trade.Status, txHash common.Hash) (*mirror.Record, error)
	List(ctx context.Context, f mirror.Filter, page, pageSize int) (int, []*mirror.Record, error)
}

type API struct {
	Mirror TradeMirror
	// NFTs may be nil when no metadata provider is configured.
	NFTs   nftmeta.Provider
	Status StatusResponse
}

func (a *API) Routes() MethodHandlers {
	routes := MethodHandlers{
		CreateApiV1Path("status"): {
			HTTP_GET: func(r *http.Request) (any, error) {
				return StatusGetHandler(r, a.Status)
			},
		},
		CreateApiV1Path("trades"): {
			HTTP_GET: func(r *http.Request) (any, error) {
				return TradesGetListHandler(r, a.Mirror)
			},
			HTTP_POST: func(r *http.Request) (any, error) {
				return TradesPostHandler(r, a.Mirror)
			},
		},
		CreateApiV1Path("trades/{id}"): {
			HTTP_GET: func(r *http.Request) (any, error) {
				return TradeGetHandler(r, a.Mirror)
			},
		},
		CreateApiV1Path("trades/{id}/status"): {
			HTTP_PUT: func(r *http.Request) (any, error) {
				return TradeStatusPutHandler(r, a.Mirror)
			},
		},
	}
	if a.NFTs != nil {
		routes[CreateApiV1Path("wallets/{owner}/nfts")] = map[Method]HandlerFunc{
			HTTP_GET: func(r *http.Request) (any, error) {
				return WalletNFTsGetHandler(r, a.NFTs)
			},
		}
	}
	return routes
}
