package mirror

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/metrics"
	"go.uber.org/zap"
)

const defaultBackfillBatch = 50

var errAllFound = errors.New("all missing hashes found")

type BackfillConfig struct {
	Contract  common.Address
	FromBlock uint64
	ChunkSize uint64
	BatchSize int
}

// Backfiller repairs accepted records that are missing their settlement
// transaction hash by looking up the TradeAccepted log of the linked trade.
// Each record's search starts at its creation block, and blocks already
// searched for a record are never searched again.
type Backfiller struct {
	db      *sql.DB
	store   Store
	client  eth.EthClient
	decoder eth.TradeLogsDecoder
	cfg     BackfillConfig
	now     func() time.Time
}

func NewBackfiller(sqlite *sql.DB, store Store, client eth.EthClient, decoder eth.TradeLogsDecoder, cfg BackfillConfig) *Backfiller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBackfillBatch
	}
	return &Backfiller{db: sqlite, store: store, client: client, decoder: decoder, cfg: cfg, now: time.Now}
}

// Run fills what it can in one pass and reports how many records changed.
func (b *Backfiller) Run(ctx context.Context) (int, error) {
	records, err := b.store.MissingTransactionHash(b.db, addressKey(b.cfg.Contract), b.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	byTradeID := make(map[string]*Record, len(records))
	var ids []string
	for _, r := range records {
		id := r.OnChainID()
		if id == nil {
			zap.L().Warn("Mirror record has an unparsable trade id", zap.String("id", r.ID), zap.String("tradeId", r.BlockchainTradeID))
			continue
		}
		byTradeID[id.String()] = r
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	latest, err := eth.LatestBlockNumber(ctx, b.client)
	if err != nil {
		return 0, err
	}
	scanned, err := b.store.ScannedTo(b.db, ids)
	if err != nil {
		return 0, err
	}

	// Only records with unsearched blocks take part in this pass.
	from := latest + 1
	var idTopics []common.Hash
	pending := make(map[string]*Record)
	starts := make(map[string]uint64)
	for tradeID, r := range byTradeID {
		start := b.startBlock(ctx, r, scanned)
		starts[tradeID] = start
		if start > latest {
			continue
		}
		if start < from {
			from = start
		}
		pending[tradeID] = r
		idTopics = append(idTopics, eth.TradeIDTopic(r.OnChainID()))
	}
	if len(pending) == 0 {
		return 0, nil
	}

	found := make(map[string]string)
	searchedTo, hasSearched := uint64(0), false
	scanErr := eth.ScanLogs(ctx, b.client, eth.LogScanQuery{
		Addresses: []common.Address{b.cfg.Contract},
		Topics:    [][]common.Hash{{eth.TradeEventTopic(eth.EventTradeAccepted)}, idTopics},
		FromBlock: from,
		ToBlock:   latest,
		ChunkSize: b.cfg.ChunkSize,
	}, func(logs []types.Log, endBlock uint64) error {
		for _, ev := range b.decoder.DecodeTradeEvents(logs) {
			if ev.Name != eth.EventTradeAccepted {
				continue
			}
			key := ev.TradeID.String()
			if _, want := pending[key]; !want {
				continue
			}
			if _, done := found[key]; !done {
				found[key] = ev.TxHash.Hex()
			}
		}
		searchedTo, hasSearched = endBlock, true
		if len(found) == len(pending) {
			return errAllFound
		}
		return nil
	})
	if scanErr != nil && !errors.Is(scanErr, errAllFound) {
		// Keep the progress made before the failing chunk.
		if !hasSearched {
			return 0, scanErr
		}
		zap.L().Warn("Mirror backfill scan stopped early", zap.Uint64("searchedTo", searchedTo), zap.Error(scanErr))
	}

	var unresolved []string
	for tradeID, r := range pending {
		if _, ok := found[tradeID]; !ok && hasSearched && starts[tradeID] <= searchedTo {
			unresolved = append(unresolved, r.ID)
		}
	}

	filled, err := db.TxRunner(ctx, b.db, func(tx *sql.Tx) (int, error) {
		n := 0
		now := b.now().Unix()
		for tradeID, hash := range found {
			r := pending[tradeID]
			if err := b.store.SetTransactionHash(tx, r.ID, hash, now); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return n, err
			}
			n++
		}
		return n, b.store.SetScannedTo(tx, unresolved, searchedTo)
	})
	if err != nil {
		return 0, err
	}
	if scanErr != nil && !errors.Is(scanErr, errAllFound) {
		return filled, scanErr
	}
	if filled > 0 {
		metrics.MirrorBackfilled.Add(float64(filled))
		zap.L().Info("Backfilled mirror transaction hashes", zap.Int("filled", filled), zap.Int("missing", len(records)))
	}
	return filled, nil
}

// startBlock is the first block still to be searched for r: one past the
// last searched block, else the block its creation transaction was mined
// in, else the configured start.
func (b *Backfiller) startBlock(ctx context.Context, r *Record, scanned map[string]uint64) uint64 {
	if to, ok := scanned[r.ID]; ok {
		return to + 1
	}
	start := b.cfg.FromBlock
	if r.CreateTxHash == "" {
		return start
	}
	receipt, err := b.client.TransactionReceipt(ctx, common.HexToHash(r.CreateTxHash))
	if err != nil || receipt == nil || receipt.BlockNumber == nil {
		zap.L().Debug("Creation block unknown, searching from the start block", zap.String("id", r.ID), zap.Error(err))
		return start
	}
	if created := receipt.BlockNumber.Uint64(); created > start {
		return created
	}
	return start
}

// Loop runs the backfill every interval until ctx is done.
func (b *Backfiller) Loop(ctx context.Context, interval time.Duration) {
	eth.Every(ctx, "mirror-backfill", interval, func(ctx context.Context) error {
		_, err := b.Run(ctx)
		return err
	})
}
