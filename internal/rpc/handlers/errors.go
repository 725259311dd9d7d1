package handlers

import (
	"net/http"

	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/internal/mirror"
	"github.com/nftescrow/tradenode/internal/nftmeta"
	"github.com/nftescrow/tradenode/pkg/trade"
)

var errorStatuses = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{mirror.ErrNotFound}},
	{http.StatusForbidden, []error{escrow.ErrUnauthorized}},
	{http.StatusConflict, []error{escrow.ErrInvalidState, mirror.ErrConflict}},
	{http.StatusBadRequest, []error{
		mirror.ErrNotConfirmed,
		mirror.ErrInvalidStatus,
		trade.ErrMessageTooLong,
		trade.ErrCircularTrade,
		trade.ErrInvalidCounterparty,
		trade.ErrInvalidAmount,
		trade.ErrEmptyTrade,
		trade.ErrDuplicateAsset,
	}},
	{http.StatusServiceUnavailable, []error{nftmeta.ErrUnavailable}},
}
