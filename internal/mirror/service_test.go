package mirror

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/db/testdb"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/pkg/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
	mallory  = common.HexToAddress("0x000000000000000000000000000000000000BAD0")
	contract = common.HexToAddress("0x00000000000000000000000000000000000000E5")
	punks    = common.HexToAddress("0x0000000000000000000000000000000000000A01")
)

func newTestService(t *testing.T) *Service {
	sqlite, cleanup := testdb.SetupTestDB(t)
	t.Cleanup(cleanup)
	s := NewService(sqlite, NewStore(), "https://trade.example/")
	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func proposal(tradeID int64) Proposal {
	return Proposal{
		From:              alice,
		To:                bob,
		OfferedAssets:     []trade.Asset{{Contract: punks, TokenID: big.NewInt(7), Amount: big.NewInt(1), Standard: trade.ERC721}},
		RequestedNative:   big.NewInt(2_000),
		Message:           "for your punk",
		ContractAddress:   contract,
		BlockchainTradeID: big.NewInt(tradeID),
		CreateTxHash:      common.HexToHash("0xc0ffee"),
	}
}

func TestProposeTrade_StoresRecordAndShareURL(t *testing.T) {
	s := newTestService(t)
	proposed, err := s.ProposeTrade(context.Background(), proposal(5))
	require.NoError(t, err)

	assert.Equal(t, "https://trade.example/trades/"+proposed.Record.ID, proposed.ShareURL)

	got, err := s.Get(context.Background(), proposed.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(alice.Hex()), got.From)
	assert.Equal(t, strings.ToLower(bob.Hex()), got.To)
	assert.Equal(t, trade.StatusPending, got.Status)
	assert.Equal(t, "5", got.BlockchainTradeID)
	assert.Equal(t, "0", got.OfferedNative)
	assert.Equal(t, "2000", got.RequestedNative)
	assert.Equal(t, "for your punk", got.Message)
	require.Len(t, got.OfferedAssets, 1)
	assert.Equal(t, int64(7), got.OfferedAssets[0].TokenID.Int64())
	assert.Empty(t, got.RequestedAssets)
	assert.Empty(t, got.TransactionHash)
	assert.Equal(t, int64(5), got.OnChainID().Int64())
}

func TestProposeTrade_RequiresConfirmedTrade(t *testing.T) {
	s := newTestService(t)
	p := proposal(1)
	p.BlockchainTradeID = nil
	_, err := s.ProposeTrade(context.Background(), p)
	assert.ErrorIs(t, err, ErrNotConfirmed)

	p = proposal(1)
	p.CreateTxHash = common.Hash{}
	_, err = s.ProposeTrade(context.Background(), p)
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestProposeTrade_ValidatesContent(t *testing.T) {
	s := newTestService(t)

	p := proposal(1)
	p.Message = strings.Repeat("x", trade.MaxMessageLength+1)
	_, err := s.ProposeTrade(context.Background(), p)
	assert.ErrorIs(t, err, trade.ErrMessageTooLong)

	p = proposal(1)
	p.RequestedAssets = p.OfferedAssets
	_, err = s.ProposeTrade(context.Background(), p)
	assert.ErrorIs(t, err, trade.ErrCircularTrade)

	p = proposal(1)
	p.To = alice
	_, err = s.ProposeTrade(context.Background(), p)
	assert.ErrorIs(t, err, trade.ErrInvalidCounterparty)
}

func TestProposeTrade_SameOnChainTradeConflicts(t *testing.T) {
	s := newTestService(t)
	first, err := s.ProposeTrade(context.Background(), proposal(8))
	require.NoError(t, err)

	_, err = s.ProposeTrade(context.Background(), proposal(8))
	require.ErrorIs(t, err, ErrConflict)
	assert.ErrorContains(t, err, first.Record.ID)

	total, _, err := s.List(context.Background(), Filter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	other := proposal(8)
	other.ContractAddress = common.HexToAddress("0x00000000000000000000000000000000000000E6")
	_, err = s.ProposeTrade(context.Background(), other)
	assert.NoError(t, err, "the same id on another contract is a different trade")
}

func TestStore_UniqueIndexRejectsDuplicateTrade(t *testing.T) {
	s := newTestService(t)
	proposed, err := s.ProposeTrade(context.Background(), proposal(9))
	require.NoError(t, err)

	dup := *proposed.Record
	dup.ID = "another-id"
	_, err = db.TxRunner(context.Background(), s.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, s.store.Insert(tx, &dup)
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatus_ForwardOnlyWithRoles(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	proposed, err := s.ProposeTrade(ctx, proposal(1))
	require.NoError(t, err)
	id := proposed.Record.ID

	_, err = s.UpdateStatus(ctx, id, alice, trade.StatusAccepted, common.Hash{})
	assert.ErrorIs(t, err, escrow.ErrUnauthorized, "creator cannot accept")
	_, err = s.UpdateStatus(ctx, id, bob, trade.StatusCancelled, common.Hash{})
	assert.ErrorIs(t, err, escrow.ErrUnauthorized, "counterparty cannot cancel")
	_, err = s.UpdateStatus(ctx, id, mallory, trade.StatusDeclined, common.Hash{})
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)

	settled := common.HexToHash("0xacce97")
	r, err := s.UpdateStatus(ctx, id, bob, trade.StatusAccepted, settled)
	require.NoError(t, err)
	assert.Equal(t, trade.StatusAccepted, r.Status)
	assert.Equal(t, settled.Hex(), r.TransactionHash)

	_, err = s.UpdateStatus(ctx, id, bob, trade.StatusDeclined, common.Hash{})
	assert.ErrorIs(t, err, escrow.ErrInvalidState)
	_, err = s.UpdateStatus(ctx, id, alice, trade.StatusCancelled, common.Hash{})
	assert.ErrorIs(t, err, escrow.ErrInvalidState)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, trade.StatusAccepted, got.Status)
	assert.Equal(t, settled.Hex(), got.TransactionHash)
}

func TestUpdateStatus_RejectsExpiredAndPending(t *testing.T) {
	s := newTestService(t)
	proposed, err := s.ProposeTrade(context.Background(), proposal(1))
	require.NoError(t, err)

	for _, status := range []trade.Status{trade.StatusExpired, trade.StatusPending} {
		_, err = s.UpdateStatus(context.Background(), proposed.Record.ID, alice, status, common.Hash{})
		assert.ErrorIs(t, err, ErrInvalidStatus, status.String())
	}
}

func TestUpdateStatus_UnknownRecord(t *testing.T) {
	s := newTestService(t)
	_, err := s.UpdateStatus(context.Background(), "missing", bob, trade.StatusAccepted, common.Hash{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	var ids []string
	for i := int64(1); i <= 5; i++ {
		p := proposal(i)
		if i == 5 {
			p.From, p.To = bob, alice
		}
		proposed, err := s.ProposeTrade(ctx, p)
		require.NoError(t, err)
		ids = append(ids, proposed.Record.ID)
	}
	_, err := s.UpdateStatus(ctx, ids[0], bob, trade.StatusDeclined, common.Hash{})
	require.NoError(t, err)

	total, page, err := s.List(ctx, Filter{From: alice.Hex()}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID, "newest first")
	assert.Equal(t, ids[2], page[1].ID)

	_, page, err = s.List(ctx, Filter{From: alice.Hex()}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[1].ID)

	declined := trade.StatusDeclined
	total, page, err = s.List(ctx, Filter{To: bob.Hex(), Status: &declined}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, ids[0], page[0].ID)

	total, _, err = s.List(ctx, Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestStore_QueryErrorsPropagate(t *testing.T) {
	sqlite, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlite.Close()

	mockDB.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mockDB.ExpectQuery("SELECT id, from_address").WillReturnError(errors.New("disk I/O error"))

	_, _, err = NewStore().Page(sqlite, "", nil, 1, 10)
	assert.EqualError(t, err, "disk I/O error")
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestStore_CorruptAssetsFailScan(t *testing.T) {
	sqlite, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlite.Close()

	rows := sqlmock.NewRows([]string{
		"id", "from_address", "to_address", "offered_assets", "requested_assets",
		"offered_native", "requested_native", "message", "status", "contract_address",
		"blockchain_trade_id", "create_tx_hash", "transaction_hash", "created_at", "updated_at",
	}).AddRow("r1", "0xa", "0xb", "{not json", "[]", "0", "0", "", "pending", "0xc", nil, nil, nil, 1, 1)
	mockDB.ExpectQuery("SELECT id, from_address").WithArgs("r1").WillReturnRows(rows)

	_, err = NewStore().Get(sqlite, "r1")
	assert.ErrorContains(t, err, "decoding offered assets of r1")
}
