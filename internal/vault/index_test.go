package vault

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/pkg/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
	punks = common.HexToAddress("0x0000000000000000000000000000000000000A01")
	vault = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

func newTestIndex(t *testing.T) *Index {
	bdb, err := db.OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })
	return NewIndex(bdb)
}

func deposited(id int64, owner common.Address, tokenID int64) eth.ReceiptEvent {
	return eth.ReceiptEvent{
		LogPosition: eth.LogPosition{BlockNumber: 10},
		Name:        eth.EventNFTDeposited,
		ReceiptID:   big.NewInt(id),
		Owner:       owner,
		NFTContract: punks,
		TokenID:     big.NewInt(tokenID),
		Amount:      big.NewInt(1),
		Standard:    uint8(trade.ERC721),
	}
}

func TestIndex_DepositTransferWithdraw(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Apply([]eth.ReceiptEvent{deposited(1, alice, 7), deposited(2, alice, 8)}, 10))

	owner, ok, err := idx.ReceiptOwner(ctx, big.NewInt(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice, owner)

	rec, err := idx.Receipt(big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, trade.Asset{Contract: punks, TokenID: big.NewInt(8), Amount: big.NewInt(1), Standard: trade.ERC721}, rec.Asset())
	assert.Equal(t, uint64(10), rec.DepositBlock)

	require.NoError(t, idx.Apply([]eth.ReceiptEvent{{
		Name: eth.EventReceiptTransferred, ReceiptID: big.NewInt(1), From: alice, To: bob,
	}}, 20))

	owner, _, err = idx.ReceiptOwner(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, bob, owner)

	aliceHeld, err := idx.ReceiptsOf(alice)
	require.NoError(t, err)
	require.Len(t, aliceHeld, 1)
	assert.Equal(t, "2", aliceHeld[0].ID)

	require.NoError(t, idx.Apply([]eth.ReceiptEvent{{
		Name: eth.EventNFTWithdrawn, ReceiptID: big.NewInt(1), Owner: bob,
	}}, 30))

	_, ok, err = idx.ReceiptOwner(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.False(t, ok)
	bobHeld, err := idx.ReceiptsOf(bob)
	require.NoError(t, err)
	assert.Empty(t, bobHeld)

	checkpoint, ok, err := idx.Checkpoint()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(30), checkpoint)
}

func TestIndex_UnknownReceiptEventsAreSkipped(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Apply([]eth.ReceiptEvent{
		{Name: eth.EventReceiptTransferred, ReceiptID: big.NewInt(9), From: alice, To: bob},
		{Name: eth.EventNFTWithdrawn, ReceiptID: big.NewInt(9), Owner: bob},
	}, 5))

	_, ok, err := idx.ReceiptOwner(context.Background(), big.NewInt(9))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_NoCheckpointYet(t *testing.T) {
	idx := newTestIndex(t)
	_, ok, err := idx.Checkpoint()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_OwnerKeysDoNotOverlap(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Apply([]eth.ReceiptEvent{deposited(1, alice, 1), deposited(10, alice, 2), deposited(3, bob, 3)}, 1))

	held, err := idx.ReceiptsOf(alice)
	require.NoError(t, err)
	assert.Len(t, held, 2)
	held, err = idx.ReceiptsOf(bob)
	require.NoError(t, err)
	assert.Len(t, held, 1)
}
