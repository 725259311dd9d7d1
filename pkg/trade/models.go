package trade

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultExpiry is the offset between creation and expiry used by every
// deployed contract version.
const DefaultExpiry = 24 * time.Hour

// MaxMessageLength caps the free-text message attached to a trade.
const MaxMessageLength = 50

type Standard uint8

const (
	ERC721 Standard = iota
	ERC1155
	// Receipt is a vault receipt standing in for a deposited NFT.
	Receipt
)

func (s Standard) String() string {
	switch s {
	case ERC721:
		return "ERC721"
	case ERC1155:
		return "ERC1155"
	case Receipt:
		return "RECEIPT"
	default:
		return fmt.Sprintf("STANDARD(%d)", uint8(s))
	}
}

func ParseStandard(s string) (Standard, error) {
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "")) {
	case "ERC721", "721":
		return ERC721, nil
	case "ERC1155", "1155":
		return ERC1155, nil
	case "RECEIPT":
		return Receipt, nil
	}
	return 0, fmt.Errorf("unknown token standard %q", s)
}

func (s Standard) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Standard) UnmarshalText(b []byte) error {
	parsed, err := ParseStandard(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Asset struct {
	Contract common.Address `json:"contract"`
	TokenID  *big.Int       `json:"tokenId"`
	Amount   *big.Int       `json:"amount"`
	Standard Standard       `json:"standard"`
}

// AssetKey identifies a single token regardless of amount or standard.
type AssetKey struct {
	Contract common.Address
	TokenID  string
}

func (a Asset) Key() AssetKey {
	id := "0"
	if a.TokenID != nil {
		id = a.TokenID.String()
	}
	return AssetKey{Contract: a.Contract, TokenID: id}
}

// Quantity is the amount the asset stands for; an unset amount means one.
func (a Asset) Quantity() *big.Int {
	if a.Amount == nil {
		return big.NewInt(1)
	}
	return a.Amount
}

func (a Asset) String() string {
	return fmt.Sprintf("%s %s#%s x%s", a.Standard, strings.ToLower(a.Contract.Hex()), bigString(a.TokenID), bigString(a.Amount))
}

// Collections returns the distinct collection addresses in order of first
// appearance.
func Collections(assets []Asset) []common.Address {
	seen := make(map[common.Address]bool)
	var out []common.Address
	for _, a := range assets {
		if seen[a.Contract] {
			continue
		}
		seen[a.Contract] = true
		out = append(out, a.Contract)
	}
	return out
}

type Trade struct {
	ID              *big.Int
	Creator         common.Address
	Counterparty    common.Address
	OfferedAssets   []Asset
	RequestedAssets []Asset
	OfferedNative   *big.Int
	RequestedNative *big.Int
	Message         string
	Status          Status
	CreatedAt       time.Time
	ExpiryTime      time.Time
}

// IsExpired reports whether now is strictly past the trade's expiry time.
func (t *Trade) IsExpired(now time.Time) bool {
	if t.ExpiryTime.IsZero() {
		return false
	}
	return now.After(t.ExpiryTime)
}

// EffectiveStatus is the status the client acts on. A Pending trade past its
// expiry time is Expired whatever the contract's bookkeeping says.
func (t *Trade) EffectiveStatus(now time.Time) Status {
	if t.Status == StatusPending && t.IsExpired(now) {
		return StatusExpired
	}
	return t.Status
}

// AcceptValue is the exact msg.value an acceptance must carry.
func (t *Trade) AcceptValue(fee *big.Int) *big.Int {
	return new(big.Int).Add(orZero(t.RequestedNative), orZero(fee))
}

// CreationValue is the exact msg.value a creation must carry.
func CreationValue(offeredNative, fee *big.Int) *big.Int {
	return new(big.Int).Add(orZero(offeredNative), orZero(fee))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
