package main

import (
	"context"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/eth/mocks"
	"github.com/nftescrow/tradenode/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRun_StartAndSignalShutdown(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	client := mocks.NewEthClient(t)
	client.On("ChainID", mock.Anything).Return(big.NewInt(10143), nil)
	client.On("Close").Return().Once()
	prev := node.Dial
	node.Dial = func(string) (eth.EthClient, error) { return client, nil }
	defer func() { node.Dial = prev }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	dir := t.TempDir()
	cfg := config.Config{
		Network:                "monad-testnet",
		TradingContractAddress: "0x00000000000000000000000000000000000000E5",
		TradingContractVersion: "v7",
		RPCPort:                port,
		SqlitePath:             filepath.Join(dir, "sqlite", "sqlite"),
		BadgerPath:             filepath.Join(dir, "badger"),
	}

	sigCh := make(chan os.Signal, 2)
	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), cfg, sigCh, func() { t.Error("unexpected forced exit") })
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Node started successfully").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	sigCh <- syscall.SIGTERM
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
	close(sigCh)

	assert.Equal(t, 1, logs.FilterMessage("Received shutdown signal, initiating graceful shutdown...").Len())
	assert.Equal(t, 1, logs.FilterMessage("Node stopped.").Len())
	assert.Equal(t, 1, logs.FilterMessage("Shutdown complete").Len())
}

func TestRun_StartFailure(t *testing.T) {
	err := run(context.Background(), config.Config{RPCPort: 0}, make(chan os.Signal), func() {})
	assert.ErrorContains(t, err, "invalid rpc port")
}
