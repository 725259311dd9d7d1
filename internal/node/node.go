// Package node wires the trade mirror, vault index and HTTP API into one
// long-running process.
package node

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/cache"
	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/mirror"
	"github.com/nftescrow/tradenode/internal/nftmeta"
	"github.com/nftescrow/tradenode/internal/rpc"
	"github.com/nftescrow/tradenode/internal/rpc/handlers"
	"github.com/nftescrow/tradenode/internal/vault"
	"go.uber.org/zap"
)

const (
	defaultBackfillInterval = 5 * time.Minute
	vaultSyncInterval       = 15 * time.Second
	vaultConfirmations      = 2
	nftPageCacheEntries     = 10_000
)

// Node represents the running instance
type Node struct {
	mu      sync.Mutex
	cfg     config.Config
	running bool

	chain    *Chain
	sqlite   *sql.DB
	badger   *badger.DB
	pages    *cache.TTL[*nftmeta.Page]
	closeRPC func()
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewNode(cfg config.Config) *Node {
	return &Node{cfg: cfg}
}

// Start opens storage, starts the background loops and serves the API.
func (n *Node) Start(ctx context.Context) (err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return errors.New("node is already running")
	}
	if n.cfg.RPCPort <= 0 {
		return fmt.Errorf("invalid rpc port %d", n.cfg.RPCPort)
	}

	opts, err := ChainOptionsFromConfig(n.cfg)
	if err != nil {
		return err
	}
	if opts.TradingContract == (common.Address{}) {
		return errors.New("TRADING_CONTRACT_ADDRESS is required to run the node")
	}

	ctx, n.cancel = context.WithCancel(ctx)
	defer func() {
		if err != nil {
			n.shutdown()
		}
	}()

	if n.chain, err = DialChain(ctx, opts); err != nil {
		return err
	}
	if n.sqlite, err = db.OpenSqlite(n.cfg.SqlitePath); err != nil {
		return fmt.Errorf("opening sqlite: %w", err)
	}

	decoder := eth.NewDefaultTradeLogsDecoder()
	service := mirror.NewService(n.sqlite, mirror.NewStore(), n.cfg.ShareBaseUrl)
	backfiller := mirror.NewBackfiller(n.sqlite, mirror.NewStore(), n.chain.Client, decoder, mirror.BackfillConfig{
		Contract:  opts.TradingContract,
		FromBlock: n.cfg.LogScanStartBlock,
		ChunkSize: n.cfg.LogScanMaxChunkSize,
	})
	interval := time.Duration(n.cfg.BackfillIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultBackfillInterval
	}
	n.goLoop(func() { backfiller.Loop(ctx, interval) })

	if n.chain.Vault != nil {
		if n.badger, err = db.OpenBadger(n.cfg.BadgerPath); err != nil {
			return fmt.Errorf("opening badger: %w", err)
		}
		syncer := vault.NewSyncer(n.chain.Client, vault.NewIndex(n.badger), decoder, vault.SyncConfig{
			Vault:         n.chain.Vault.Address(),
			StartBlock:    n.cfg.LogScanStartBlock,
			ChunkSize:     n.cfg.LogScanMaxChunkSize,
			Confirmations: vaultConfirmations,
		})
		n.goLoop(func() { syncer.Loop(ctx, vaultSyncInterval) })
	}

	api := &handlers.API{
		Mirror: service,
		Status: handlers.StatusResponse{
			Network:         opts.Network.Name,
			ChainID:         opts.Network.ChainID,
			TradingContract: opts.TradingContract.Hex(),
			ContractVersion: string(opts.Version),
		},
	}
	if api.NFTs, err = n.nftProvider(opts.Network); err != nil {
		zap.L().Warn("NFT metadata disabled", zap.Error(err))
		err = nil
	}

	if n.closeRPC, err = rpc.StartRPCServer(ctx, n.cfg.RPCPort, api, splitOrigins(n.cfg.CorsAllowedOrigins)); err != nil {
		return err
	}
	n.running = true
	zap.L().Info("Node started successfully",
		zap.Int("rpcPort", n.cfg.RPCPort),
		zap.String("network", opts.Network.Name),
		zap.String("tradingContract", opts.TradingContract.Hex()),
		zap.Bool("vaultIndex", n.badger != nil),
	)
	return nil
}

func (n *Node) nftProvider(network config.Network) (nftmeta.Provider, error) {
	if n.cfg.ReadCacheTTLSeconds > 0 {
		pages, err := cache.NewTTL[*nftmeta.Page]("nft-pages", time.Duration(n.cfg.ReadCacheTTLSeconds)*time.Second, nftPageCacheEntries)
		if err != nil {
			return nil, err
		}
		n.pages = pages
	}
	return nftmeta.NewFromConfig(n.cfg, network, n.pages)
}

func (n *Node) goLoop(fn func()) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		fn()
	}()
}

// Stop gracefully stops the Node.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return errors.New("node not running")
	}
	n.shutdown()
	n.running = false
	zap.L().Info("Node stopped.")
	return nil
}

// shutdown stops the API first so no request sees closed storage.
func (n *Node) shutdown() {
	if n.closeRPC != nil {
		n.closeRPC()
		n.closeRPC = nil
	}
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	if n.badger != nil {
		if err := n.badger.Close(); err != nil {
			zap.L().Warn("Error closing badger", zap.Error(err))
		}
		n.badger = nil
	}
	if n.sqlite != nil {
		if err := n.sqlite.Close(); err != nil {
			zap.L().Warn("Error closing sqlite", zap.Error(err))
		}
		n.sqlite = nil
	}
	if n.pages != nil {
		n.pages.Close()
		n.pages = nil
	}
	if n.chain != nil {
		n.chain.Close()
		n.chain = nil
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
