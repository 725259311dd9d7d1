package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/node"
	"go.uber.org/zap"
)

var Version = "dev" // Overridden by release build script

func init() {
	logger := zap.Must(zap.NewProduction())
	if config.Get().LogZapMode == "development" {
		logger = zap.Must(zap.NewDevelopment())
	}
	zap.ReplaceGlobals(logger)
}

func main() {
	zap.L().Info("Starting tradenode...", zap.String("Version", Version))

	// Catch up to two signals: first for graceful, second to force
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(context.Background(), config.Get(), sigCh, func() { os.Exit(1) }); err != nil {
		zap.L().Fatal("Failed to start node", zap.Error(err))
	}
	_ = zap.L().Sync()
}

// run starts the node and blocks until the first signal has been handled.
// A second signal calls forceExit.
func run(ctx context.Context, cfg config.Config, sigCh <-chan os.Signal, forceExit func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := node.NewNode(cfg)
	if err := n.Start(ctx); err != nil {
		return err
	}

	doneCh := make(chan struct{})
	go func() {
		<-sigCh
		zap.L().Info("Received shutdown signal, initiating graceful shutdown...")

		if err := n.Stop(); err != nil {
			zap.L().Warn("Error stopping node", zap.Error(err))
		}
		cancel()
		close(doneCh)

		if _, ok := <-sigCh; ok {
			zap.L().Error("Received second signal, forcing shutdown")
			forceExit()
		}
	}()

	<-doneCh
	zap.L().Info("Shutdown complete")
	return nil
}
