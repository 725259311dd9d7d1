package trade

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrCircularTrade       = errors.New("asset appears in both offered and requested lists")
	ErrDuplicateAsset      = errors.New("asset listed more than once")
	ErrEmptyTrade          = errors.New("trade offers and requests nothing")
	ErrInvalidCounterparty = errors.New("invalid counterparty")
	ErrInvalidAmount       = errors.New("invalid asset amount")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
)

// Proposal is the input of a trade creation.
type Proposal struct {
	Counterparty    common.Address
	OfferedAssets   []Asset
	RequestedAssets []Asset
	OfferedNative   *big.Int
	RequestedNative *big.Int
	Message         string
}

func (p Proposal) Validate(creator common.Address) error {
	if p.Counterparty == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidCounterparty)
	}
	if p.Counterparty == creator {
		return fmt.Errorf("%w: counterparty is the creator", ErrInvalidCounterparty)
	}
	if err := ValidateMessage(p.Message); err != nil {
		return err
	}
	if p.OfferedNative != nil && p.OfferedNative.Sign() < 0 {
		return fmt.Errorf("%w: negative offered native amount", ErrInvalidAmount)
	}
	if p.RequestedNative != nil && p.RequestedNative.Sign() < 0 {
		return fmt.Errorf("%w: negative requested native amount", ErrInvalidAmount)
	}
	if len(p.OfferedAssets) == 0 && len(p.RequestedAssets) == 0 &&
		orZero(p.OfferedNative).Sign() == 0 && orZero(p.RequestedNative).Sign() == 0 {
		return ErrEmptyTrade
	}

	offered, err := indexAssets(p.OfferedAssets)
	if err != nil {
		return fmt.Errorf("offered: %w", err)
	}
	if _, err := indexAssets(p.RequestedAssets); err != nil {
		return fmt.Errorf("requested: %w", err)
	}
	for _, a := range p.RequestedAssets {
		if offered[a.Key()] {
			return fmt.Errorf("%w: %s", ErrCircularTrade, a)
		}
	}
	return nil
}

func ValidateMessage(msg string) error {
	if n := utf8.RuneCountInString(msg); n > MaxMessageLength {
		return fmt.Errorf("%w: %d > %d characters", ErrMessageTooLong, n, MaxMessageLength)
	}
	return nil
}

func ValidateAsset(a Asset) error {
	if a.Contract == (common.Address{}) {
		return fmt.Errorf("%w: zero contract address", ErrInvalidAmount)
	}
	if a.TokenID == nil || a.TokenID.Sign() < 0 {
		return fmt.Errorf("%w: missing token id", ErrInvalidAmount)
	}
	switch a.Standard {
	case ERC721, Receipt:
		if a.Amount != nil && a.Amount.Cmp(big.NewInt(1)) != 0 {
			return fmt.Errorf("%w: %s amount must be 1", ErrInvalidAmount, a.Standard)
		}
	case ERC1155:
		if a.Amount == nil || a.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: ERC1155 amount must be positive", ErrInvalidAmount)
		}
	default:
		return fmt.Errorf("%w: unknown standard %s", ErrInvalidAmount, a.Standard)
	}
	return nil
}

func indexAssets(assets []Asset) (map[AssetKey]bool, error) {
	seen := make(map[AssetKey]bool, len(assets))
	for _, a := range assets {
		if err := ValidateAsset(a); err != nil {
			return nil, err
		}
		if seen[a.Key()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, a)
		}
		seen[a.Key()] = true
	}
	return seen, nil
}
