package eth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const DefaultMaxChunkSize uint64 = 2000

type LogScanQuery struct {
	Addresses []common.Address
	Topics    [][]common.Hash
	FromBlock uint64
	ToBlock   uint64
	ChunkSize uint64
}

// ScanLogs walks [FromBlock, ToBlock] in chunks of at most ChunkSize blocks
// and hands each chunk's logs to fn in block order. A failing chunk stops the
// scan; fn is told the last block of every chunk it receives.
func ScanLogs(
	ctx context.Context,
	client EthClient,
	q LogScanQuery,
	fn func(logs []types.Log, endBlock uint64) error,
) error {
	if q.ToBlock < q.FromBlock {
		return nil
	}
	chunk := q.ChunkSize
	if chunk == 0 {
		chunk = DefaultMaxChunkSize
	}

	var lastLogTime time.Time
	for start := q.FromBlock; start <= q.ToBlock; {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + chunk - 1
		if end > q.ToBlock || end < start {
			end = q.ToBlock
		}
		logs, err := fetchLogsInRange(ctx, client, q.Addresses, q.Topics, start, end)
		if err != nil {
			zap.L().Error("Failed fetching logs",
				zap.Uint64("start", start),
				zap.Uint64("end", end),
				zap.Error(err),
			)
			return fmt.Errorf("fetching logs %d-%d: %w", start, end, err)
		}
		if err := fn(logs, end); err != nil {
			return err
		}
		if time.Since(lastLogTime) >= 10*time.Second {
			zap.L().Info("Log scan progress", zap.Uint64("currentlyOnBlock", end), zap.Uint64("target", q.ToBlock))
			lastLogTime = time.Now()
		}
		if end == q.ToBlock {
			break
		}
		start = end + 1
	}
	return nil
}

func LatestBlockNumber(ctx context.Context, client EthClient) (uint64, error) {
	n, err := client.BlockNumber(ctx)
	if err != nil {
		zap.L().Error("Could not get latest block number", zap.Error(err))
		return 0, err
	}
	return n, nil
}

func fetchLogsInRange(
	ctx context.Context,
	client EthClient,
	addresses []common.Address,
	topics [][]common.Hash,
	startBlock, endBlock uint64,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(startBlock),
		ToBlock:   new(big.Int).SetUint64(endBlock),
		Addresses: addresses,
		Topics:    topics,
	}
	return client.FilterLogs(ctx, query)
}

func sleepInterrupted(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// Every runs fn immediately and then every interval until ctx is done.
// Errors from fn are logged and do not stop the loop.
func Every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			zap.L().Warn("Periodic job failed", zap.String("job", name), zap.Error(err))
		}
		if sleepInterrupted(ctx, interval) {
			return
		}
	}
}
