package node_test

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/eth/mocks"
	"github.com/nftescrow/tradenode/internal/node"
	"github.com/nftescrow/tradenode/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	tradingContract = "0x00000000000000000000000000000000000000E5"
	// Hardhat's first development key.
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func freePort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func stubDial(t *testing.T, client eth.EthClient) {
	prev := node.Dial
	node.Dial = func(string) (eth.EthClient, error) { return client, nil }
	t.Cleanup(func() { node.Dial = prev })
}

func chainClient(t *testing.T, chainID int64) *mocks.EthClient {
	client := mocks.NewEthClient(t)
	client.On("ChainID", mock.Anything).Return(big.NewInt(chainID), nil)
	client.On("Close").Return().Once()
	client.On("BlockNumber", mock.Anything).Return(uint64(0), nil).Maybe()
	return client
}

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		Network:                "monad-testnet",
		EthereumNodeUrl:        "http://127.0.0.1:8545",
		TradingContractAddress: tradingContract,
		TradingContractVersion: "v7",
		RPCPort:                freePort(t),
		RPCRequestsPerSecond:   100,
		SqlitePath:             filepath.Join(dir, "sqlite", "sqlite"),
		BadgerPath:             filepath.Join(dir, "badger"),
		LogScanMaxChunkSize:    1000,
		CorsAllowedOrigins:     "*",
	}
}

func TestNodeStartStop(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	stubDial(t, chainClient(t, 10143))
	cfg := testConfig(t)
	n := node.NewNode(cfg)

	require.NoError(t, n.Start(context.Background()))

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/status", cfg.RPCPort))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No metadata provider configured, so the wallet route is off.
	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/wallets/%s/nfts", cfg.RPCPort, devAddress))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, n.Stop())
	assert.Equal(t, 1, logs.FilterMessage("Node started successfully").Len())
	assert.Equal(t, 1, logs.FilterMessage("NFT metadata disabled").Len())
	assert.Equal(t, 1, logs.FilterMessage("Node stopped.").Len())
}

func TestNodeStartTwice(t *testing.T) {
	stubDial(t, chainClient(t, 10143))
	n := node.NewNode(testConfig(t))

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	assert.Error(t, n.Start(context.Background()))
}

func TestNodeStopWhenNotRunning(t *testing.T) {
	n := node.NewNode(testConfig(t))
	assert.EqualError(t, n.Stop(), "node not running")
}

func TestNodeStart_WrongChain(t *testing.T) {
	stubDial(t, chainClient(t, 1))
	n := node.NewNode(testConfig(t))

	err := n.Start(context.Background())
	assert.ErrorContains(t, err, "expected 10143")
	assert.EqualError(t, n.Stop(), "node not running")
}

func TestNodeStart_RequiresTradingContract(t *testing.T) {
	cfg := testConfig(t)
	cfg.TradingContractAddress = ""
	assert.ErrorContains(t, node.NewNode(cfg).Start(context.Background()), "TRADING_CONTRACT_ADDRESS")

	cfg = testConfig(t)
	cfg.RPCPort = 0
	assert.ErrorContains(t, node.NewNode(cfg).Start(context.Background()), "invalid rpc port")
}

func TestNodeStart_VaultVersionOpensIndex(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	stubDial(t, chainClient(t, 10143))
	cfg := testConfig(t)
	cfg.TradingContractVersion = "vault"
	n := node.NewNode(cfg)

	require.NoError(t, n.Start(context.Background()))
	require.NoError(t, n.Stop())

	started := logs.FilterMessage("Node started successfully").All()
	require.Len(t, started, 1)
	assert.Equal(t, true, started[0].ContextMap()["vaultIndex"])
}

func TestDialChain_SignerSelection(t *testing.T) {
	network := config.Network{Name: "local", ChainID: 31337, RPCUrl: "http://127.0.0.1:8545"}
	watched := common.HexToAddress("0x0000000000000000000000000000000000000B0B")

	stubDial(t, chainClient(t, 31337))
	c, err := node.DialChain(context.Background(), node.ChainOptions{
		Network:         network,
		TradingContract: common.HexToAddress(tradingContract),
		Version:         escrow.V7,
		As:              watched,
	})
	require.NoError(t, err)
	assert.Equal(t, watched, c.Signer.Address())
	assert.NotNil(t, c.Trading)
	assert.Nil(t, c.Vault)
	_, err = c.VaultClient(nil)
	assert.ErrorContains(t, err, "no vault contract")
	c.Close()

	stubDial(t, chainClient(t, 31337))
	c, err = node.DialChain(context.Background(), node.ChainOptions{
		Network:         network,
		TradingContract: common.HexToAddress(tradingContract),
		Version:         escrow.VersionVault,
		PrivateKey:      devKey,
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), c.Signer.Address())
	require.NotNil(t, c.Vault)
	assert.Equal(t, common.HexToAddress(tradingContract), c.Vault.Address())
	_, err = c.VaultClient(nil)
	assert.ErrorContains(t, err, "receipt index")
	mem, err := db.OpenBadgerInMemory()
	require.NoError(t, err)
	defer mem.Close()
	_, err = c.VaultClient(vault.NewIndex(mem))
	assert.NoError(t, err)
	_, err = c.EscrowClient(nil)
	assert.NoError(t, err)
	c.Close()
}

func TestDialChain_KeyMustMatchAs(t *testing.T) {
	stubDial(t, chainClient(t, 31337))
	_, err := node.DialChain(context.Background(), node.ChainOptions{
		Network:    config.Network{Name: "local", ChainID: 31337},
		Version:    escrow.V7,
		PrivateKey: devKey,
		As:         common.HexToAddress("0x0000000000000000000000000000000000000B0B"),
	})
	assert.ErrorContains(t, err, "does not match the private key")
}

func TestChainOptionsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChainID = 31337
	cfg.VaultContractAddress = "0x00000000000000000000000000000000000000Fa"
	opts, err := node.ChainOptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(31337), opts.Network.ChainID)
	assert.Equal(t, "http://127.0.0.1:8545", opts.Network.RPCUrl)
	assert.Equal(t, escrow.V7, opts.Version)
	assert.Equal(t, common.HexToAddress("0xfa"), opts.VaultContract)

	cfg.TradingContractAddress = "not-an-address"
	_, err = node.ChainOptionsFromConfig(cfg)
	assert.ErrorContains(t, err, "TRADING_CONTRACT_ADDRESS")

	cfg = testConfig(t)
	cfg.TradingContractVersion = "v99"
	_, err = node.ChainOptionsFromConfig(cfg)
	assert.Error(t, err)
}
