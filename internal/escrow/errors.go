package escrow

import (
	"errors"

	"github.com/nftescrow/tradenode/internal/assets"
)

// Authorization
var ErrUnauthorized = errors.New("caller is not allowed to perform this action")

// State
var (
	ErrTradeNotFound   = errors.New("trade not found")
	ErrInvalidState    = errors.New("trade is not pending")
	ErrTradeExpired    = errors.New("trade has expired")
	ErrTradeNotExpired = errors.New("trade has not reached its expiry time")
)

// Asset
var (
	ErrNotOwner            = assets.ErrNotOwner
	ErrInsufficientBalance = assets.ErrInsufficientBalance
	ErrNotApproved         = assets.ErrNotApproved
	ErrApprovalNotObserved = assets.ErrApprovalNotObserved
)

// Value
var (
	ErrValueMismatch     = errors.New("value does not equal native amount plus trade fee")
	ErrInsufficientFunds = errors.New("insufficient native balance")
)

// Capability
var ErrUnsupported = errors.New("operation not supported by this contract version")
