package vault

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/nftescrow/tradenode/internal/eth"
	"go.uber.org/zap"
)

type SyncConfig struct {
	Vault      common.Address
	StartBlock uint64
	ChunkSize  uint64
	// Confirmations keeps the scan this many blocks behind the head.
	Confirmations uint64
}

// Syncer folds vault events into the index from its checkpoint onwards.
type Syncer struct {
	client  eth.EthClient
	index   *Index
	decoder eth.TradeLogsDecoder
	cfg     SyncConfig
}

func NewSyncer(client eth.EthClient, index *Index, decoder eth.TradeLogsDecoder, cfg SyncConfig) *Syncer {
	return &Syncer{client: client, index: index, decoder: decoder, cfg: cfg}
}

// SyncOnce scans up to the confirmed head and returns the number of events
// applied. If the checkpoint block is no longer canonical the index is
// rebuilt from StartBlock.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	from := s.cfg.StartBlock
	checkpoint, ok, err := s.index.Checkpoint()
	if err != nil {
		return 0, err
	}
	if ok {
		reorged, err := s.reorged(ctx, checkpoint)
		if err != nil {
			return 0, err
		}
		if reorged {
			zap.L().Warn("Reorg detected below the vault checkpoint, rebuilding receipt index", zap.Uint64("checkpoint", checkpoint))
			if err := s.index.Reset(); err != nil {
				return 0, err
			}
			ok = false
		}
	}
	if ok && checkpoint+1 > from {
		from = checkpoint + 1
	}
	latest, err := eth.LatestBlockNumber(ctx, s.client)
	if err != nil {
		return 0, err
	}
	if latest < s.cfg.Confirmations {
		return 0, nil
	}
	to := latest - s.cfg.Confirmations
	if to < from {
		return 0, nil
	}

	applied := 0
	err = eth.ScanLogs(ctx, s.client, eth.LogScanQuery{
		Addresses: []common.Address{s.cfg.Vault},
		Topics:    [][]common.Hash{eth.ReceiptEventTopics()},
		FromBlock: from,
		ToBlock:   to,
		ChunkSize: s.cfg.ChunkSize,
	}, func(logs []types.Log, endBlock uint64) error {
		events := s.decoder.DecodeReceiptEvents(logs)
		if err := s.index.Apply(events, endBlock); err != nil {
			return err
		}
		applied += len(events)
		return nil
	})
	if err != nil {
		return applied, err
	}
	if err := s.recordHash(ctx, to); err != nil {
		return applied, err
	}
	if applied > 0 {
		zap.L().Info("Vault receipts synced", zap.Int("events", applied), zap.Uint64("from", from), zap.Uint64("to", to))
	}
	return applied, nil
}

// reorged reports whether the recorded hash of block differs from the
// chain's. A block without a recorded hash is trusted.
func (s *Syncer) reorged(ctx context.Context, block uint64) (bool, error) {
	recorded, ok, err := s.index.hashes.GetHash(block)
	if err != nil || !ok {
		return false, err
	}
	header, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return false, err
	}
	return header.Hash() != recorded, nil
}

func (s *Syncer) recordHash(ctx context.Context, block uint64) error {
	header, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return err
	}
	if err := s.index.hashes.SetHash(block, header.Hash()); err != nil {
		return err
	}
	// Only the newest checkpoint is ever compared.
	return s.index.hashes.Prune(block)
}

func (s *Syncer) Loop(ctx context.Context, interval time.Duration) {
	eth.Every(ctx, "vault-sync", interval, func(ctx context.Context) error {
		_, err := s.SyncOnce(ctx)
		return err
	})
}
