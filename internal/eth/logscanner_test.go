package eth

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/nftescrow/tradenode/internal/eth/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewExample())
}

func rangeQuery(from, to uint64) interface{} {
	return mock.MatchedBy(func(q ethereum.FilterQuery) bool {
		return q.FromBlock.Uint64() == from && q.ToBlock.Uint64() == to
	})
}

func TestScanLogs_Chunks(t *testing.T) {
	client := mocks.NewEthClient(t)
	addr := common.HexToAddress("0xaa")

	client.On("FilterLogs", mock.Anything, rangeQuery(10, 19)).Return([]types.Log{{BlockNumber: 12}}, nil).Once()
	client.On("FilterLogs", mock.Anything, rangeQuery(20, 29)).Return(nil, nil).Once()
	client.On("FilterLogs", mock.Anything, rangeQuery(30, 34)).Return([]types.Log{{BlockNumber: 33}}, nil).Once()

	var ends []uint64
	var total int
	err := ScanLogs(context.Background(), client, LogScanQuery{
		Addresses: []common.Address{addr},
		FromBlock: 10,
		ToBlock:   34,
		ChunkSize: 10,
	}, func(logs []types.Log, end uint64) error {
		ends = append(ends, end)
		total += len(logs)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{19, 29, 34}, ends)
	assert.Equal(t, 2, total)
}

func TestScanLogs_PassesTopics(t *testing.T) {
	client := mocks.NewEthClient(t)
	topics := [][]common.Hash{{TradeEventTopic(EventTradeAccepted)}, {TradeIDTopic(big.NewInt(5))}}
	client.On("FilterLogs", mock.Anything, mock.MatchedBy(func(q ethereum.FilterQuery) bool {
		return len(q.Topics) == 2 && q.Topics[1][0] == TradeIDTopic(big.NewInt(5))
	})).Return(nil, nil).Once()

	err := ScanLogs(context.Background(), client, LogScanQuery{Topics: topics, FromBlock: 1, ToBlock: 1},
		func([]types.Log, uint64) error { return nil })
	require.NoError(t, err)
}

func TestScanLogs_EmptyRange(t *testing.T) {
	client := mocks.NewEthClient(t)
	err := ScanLogs(context.Background(), client, LogScanQuery{FromBlock: 10, ToBlock: 5},
		func([]types.Log, uint64) error { t.Fatal("callback must not run"); return nil })
	require.NoError(t, err)
}

func TestScanLogs_StopsOnError(t *testing.T) {
	client := mocks.NewEthClient(t)
	client.On("FilterLogs", mock.Anything, rangeQuery(0, 9)).Return(nil, errors.New("boom")).Once()

	calls := 0
	err := ScanLogs(context.Background(), client, LogScanQuery{FromBlock: 0, ToBlock: 100, ChunkSize: 10},
		func([]types.Log, uint64) error { calls++; return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Zero(t, calls)
}

func TestScanLogs_CallbackError(t *testing.T) {
	client := mocks.NewEthClient(t)
	client.On("FilterLogs", mock.Anything, rangeQuery(0, 9)).Return(nil, nil).Once()

	stop := errors.New("stop")
	err := ScanLogs(context.Background(), client, LogScanQuery{FromBlock: 0, ToBlock: 100, ChunkSize: 10},
		func([]types.Log, uint64) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestScanLogs_CancelledContext(t *testing.T) {
	client := mocks.NewEthClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ScanLogs(ctx, client, LogScanQuery{FromBlock: 0, ToBlock: 100},
		func([]types.Log, uint64) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvery_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	done := make(chan struct{})
	go func() {
		Every(ctx, "test", time.Millisecond, func(context.Context) error {
			runs++
			if runs == 3 {
				cancel()
			}
			return errors.New("ignored")
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Every did not stop after cancel")
	}
	assert.Equal(t, 3, runs)
}
