package trade

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	counterparty = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	collectionA  = common.HexToAddress("0x000000000000000000000000000000000000aaaa")
	collectionB  = common.HexToAddress("0x000000000000000000000000000000000000bbbb")
)

func nft(contract common.Address, id int64) Asset {
	return Asset{Contract: contract, TokenID: big.NewInt(id), Amount: big.NewInt(1), Standard: ERC721}
}

func TestProposalValidate(t *testing.T) {
	base := func() Proposal {
		return Proposal{
			Counterparty:    counterparty,
			OfferedAssets:   []Asset{nft(collectionA, 1)},
			RequestedAssets: []Asset{nft(collectionB, 7)},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, base().Validate(creator))
	})

	t.Run("circular trade is refused", func(t *testing.T) {
		p := base()
		p.RequestedAssets = append(p.RequestedAssets, nft(collectionA, 1))
		assert.ErrorIs(t, p.Validate(creator), ErrCircularTrade)
	})

	t.Run("same token with different amount is still circular", func(t *testing.T) {
		p := base()
		p.OfferedAssets = []Asset{{Contract: collectionA, TokenID: big.NewInt(5), Amount: big.NewInt(3), Standard: ERC1155}}
		p.RequestedAssets = []Asset{{Contract: collectionA, TokenID: big.NewInt(5), Amount: big.NewInt(1), Standard: ERC1155}}
		assert.ErrorIs(t, p.Validate(creator), ErrCircularTrade)
	})

	t.Run("duplicate within a list", func(t *testing.T) {
		p := base()
		p.OfferedAssets = append(p.OfferedAssets, nft(collectionA, 1))
		assert.ErrorIs(t, p.Validate(creator), ErrDuplicateAsset)
	})

	t.Run("self trade", func(t *testing.T) {
		p := base()
		p.Counterparty = creator
		assert.ErrorIs(t, p.Validate(creator), ErrInvalidCounterparty)
	})

	t.Run("zero counterparty", func(t *testing.T) {
		p := base()
		p.Counterparty = common.Address{}
		assert.ErrorIs(t, p.Validate(creator), ErrInvalidCounterparty)
	})

	t.Run("empty trade", func(t *testing.T) {
		p := Proposal{Counterparty: counterparty}
		assert.ErrorIs(t, p.Validate(creator), ErrEmptyTrade)
	})

	t.Run("native only trade is allowed", func(t *testing.T) {
		p := Proposal{Counterparty: counterparty, OfferedNative: big.NewInt(1)}
		assert.NoError(t, p.Validate(creator))
	})

	t.Run("message cap", func(t *testing.T) {
		p := base()
		p.Message = strings.Repeat("x", MaxMessageLength)
		assert.NoError(t, p.Validate(creator))
		p.Message = strings.Repeat("x", MaxMessageLength+1)
		assert.ErrorIs(t, p.Validate(creator), ErrMessageTooLong)
	})

	t.Run("erc721 amount must be one", func(t *testing.T) {
		p := base()
		p.OfferedAssets[0].Amount = big.NewInt(2)
		assert.ErrorIs(t, p.Validate(creator), ErrInvalidAmount)
	})

	t.Run("erc1155 amount must be positive", func(t *testing.T) {
		p := base()
		p.OfferedAssets = []Asset{{Contract: collectionA, TokenID: big.NewInt(1), Amount: big.NewInt(0), Standard: ERC1155}}
		assert.ErrorIs(t, p.Validate(creator), ErrInvalidAmount)
	})
}

func TestEffectiveStatus(t *testing.T) {
	created := time.Unix(1_700_000_000, 0)
	tr := &Trade{Status: StatusPending, CreatedAt: created, ExpiryTime: created.Add(DefaultExpiry)}

	assert.Equal(t, StatusPending, tr.EffectiveStatus(created.Add(time.Hour)))
	assert.Equal(t, StatusPending, tr.EffectiveStatus(tr.ExpiryTime))
	assert.Equal(t, StatusExpired, tr.EffectiveStatus(tr.ExpiryTime.Add(time.Second)))

	tr.Status = StatusAccepted
	assert.Equal(t, StatusAccepted, tr.EffectiveStatus(tr.ExpiryTime.Add(time.Hour)))
}

func TestAcceptValue(t *testing.T) {
	tr := &Trade{RequestedNative: big.NewInt(200)}
	assert.Equal(t, big.NewInt(210), tr.AcceptValue(big.NewInt(10)))
	assert.Equal(t, big.NewInt(10), (&Trade{}).AcceptValue(big.NewInt(10)))
	assert.Equal(t, big.NewInt(15), CreationValue(big.NewInt(5), big.NewInt(10)))
}

func TestCollections(t *testing.T) {
	got := Collections([]Asset{nft(collectionA, 1), nft(collectionB, 1), nft(collectionA, 2)})
	assert.Equal(t, []common.Address{collectionA, collectionB}, got)
}
