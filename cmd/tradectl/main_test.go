package main

import (
	"bytes"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/internal/escrow/escrowsim"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/vault"
	"github.com/nftescrow/tradenode/pkg/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var (
	creator      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	counterparty = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	stranger     = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	feeAddress   = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	tradingAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	punks        = common.HexToAddress("0x0000000000000000000000000000000000000a01")
)

type simulated struct {
	chain  *escrowsim.Chain
	escrow *escrowsim.Escrow
	index  *vault.Index
}

// simulate points connect at an in-memory chain; --as selects the wallet.
func simulate(t *testing.T, version escrow.Version) *simulated {
	chain := escrowsim.NewChain(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s := &simulated{chain: chain, escrow: chain.DeployEscrow(tradingAddr, version, big.NewInt(1e15), feeAddress)}
	chain.Fund(creator, big.NewInt(1e18))
	chain.Fund(counterparty, big.NewInt(1e18))

	kv, err := db.OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	s.index = vault.NewIndex(kv)

	prev := connect
	connect = func(c *cli.Context, withIndex bool) (*backend, error) {
		caller := common.HexToAddress(c.String("as"))
		session := s.escrow.As(caller)
		b := &backend{
			network:      config.Network{Name: "sim"},
			caller:       caller,
			balances:     session,
			escrow:       escrow.NewClient(session, assets.NewChecker(session, tradingAddr, s.escrow), session, escrow.WithClock(chain.Now)),
			index:        s.index,
			vaultAddress: tradingAddr,
		}
		if version == escrow.VersionVault {
			v, err := vault.NewClient(session, assets.NewChecker(session, tradingAddr, s.escrow), s.escrow)
			if err != nil {
				return nil, err
			}
			b.vault = v
		}
		return b, nil
	}
	t.Cleanup(func() { connect = prev })
	return s
}

func runCLI(args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"tradectl"}, args...))
	return out.String(), err
}

func TestCreateInspectAccept(t *testing.T) {
	s := simulate(t, escrow.V7)
	s.chain.MintERC721(punks, 1, creator)
	s.chain.MintERC721(punks, 2, counterparty)

	out, err := runCLI("--as", creator.Hex(), "create",
		"--to", counterparty.Hex(),
		"--offer", punks.Hex()+":1",
		"--request", punks.Hex()+":2",
		"--request-native", "0.005",
		"--message", "swap?",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "trade 1 created")
	assert.Contains(t, out, "sent:    0.001")
	assert.Equal(t, tradingAddr, s.chain.OwnerOf(punks, big.NewInt(1)))

	out, err = runCLI("--as", counterparty.Hex(), "inspect", "--trade-id", "1", "--value", "0.005")
	require.NoError(t, err)
	assert.Contains(t, out, "accept value")
	assert.Contains(t, out, "0.006")
	assert.Contains(t, out, "MISMATCH")

	_, err = runCLI("--as", counterparty.Hex(), "accept", "--trade-id", "1", "--value", "0.005")
	assert.ErrorIs(t, err, escrow.ErrValueMismatch)

	out, err = runCLI("--as", counterparty.Hex(), "accept", "--trade-id", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "trade 1 accepted")
	assert.Equal(t, counterparty, s.chain.OwnerOf(punks, big.NewInt(1)))
	assert.Equal(t, creator, s.chain.OwnerOf(punks, big.NewInt(2)))
}

func TestLifecycleRoles(t *testing.T) {
	s := simulate(t, escrow.V7)
	s.chain.MintERC721(punks, 1, creator)

	_, err := runCLI("--as", creator.Hex(), "create", "--to", counterparty.Hex(), "--offer", punks.Hex()+":1")
	require.NoError(t, err)

	_, err = runCLI("--as", stranger.Hex(), "decline", "--trade-id", "1")
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)
	_, err = runCLI("--as", counterparty.Hex(), "cancel", "--trade-id", "1")
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)
	_, err = runCLI("--as", creator.Hex(), "expire", "--trade-id", "1")
	assert.ErrorIs(t, err, escrow.ErrTradeNotExpired)

	out, err := runCLI("--as", creator.Hex(), "cancel", "--trade-id", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "trade 1 cancelled")
	assert.Equal(t, creator, s.chain.OwnerOf(punks, big.NewInt(1)))

	_, err = runCLI("--as", counterparty.Hex(), "decline", "--trade-id", "1")
	assert.ErrorIs(t, err, escrow.ErrInvalidState)
}

func TestApproveAndApprovals(t *testing.T) {
	s := simulate(t, escrow.V7)
	s.chain.MintERC721(punks, 4, creator)
	ref := punks.Hex() + ":4"

	out, err := runCLI("--as", creator.Hex(), "approvals", "--asset", ref)
	require.NoError(t, err)
	assert.Regexp(t, `0x0+a01#4 x1\s+yes\s+no`, out)

	out, err = runCLI("--as", creator.Hex(), "approve", "--asset", ref)
	require.NoError(t, err)
	assert.Contains(t, out, "approved "+punks.Hex())
	assert.Equal(t, 1, s.chain.ApprovalTransactions(punks))

	out, err = runCLI("--as", creator.Hex(), "approve", "--asset", ref)
	require.NoError(t, err)
	assert.Contains(t, out, "already approved")
	assert.Equal(t, 1, s.chain.ApprovalTransactions(punks))

	out, err = runCLI("--as", creator.Hex(), "approvals", "--asset", ref, "--owner", stranger.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "holder "+stranger.Hex())
	assert.Regexp(t, `\s+no\s+no\s+`, out)
}

func TestVaultDepositWithdrawAndReceipts(t *testing.T) {
	s := simulate(t, escrow.VersionVault)
	asset := s.chain.MintERC721(punks, 9, creator)

	out, err := runCLI("--as", creator.Hex(), "vault", "deposit", "--asset", punks.Hex()+":9")
	require.NoError(t, err)
	assert.Contains(t, out, "receipt 1 issued")

	require.NoError(t, s.index.Apply([]eth.ReceiptEvent{{
		LogPosition: eth.LogPosition{BlockNumber: 12},
		Name:        eth.EventNFTDeposited,
		ReceiptID:   big.NewInt(1),
		Owner:       creator,
		NFTContract: asset.Contract,
		TokenID:     asset.TokenID,
		Amount:      big.NewInt(1),
		Standard:    uint8(trade.ERC721),
	}}, 12))

	out, err = runCLI("--as", creator.Hex(), "vault", "receipts")
	require.NoError(t, err)
	assert.Contains(t, out, "RECEIPT")
	assert.Regexp(t, `1\s+ERC721 0x0+a01#9 x1\s+12`, out)

	out, err = runCLI("--as", counterparty.Hex(), "vault", "receipts")
	require.NoError(t, err)
	assert.Contains(t, out, "no receipts indexed")

	_, err = runCLI("--as", counterparty.Hex(), "vault", "withdraw", "--receipt-id", "1")
	assert.ErrorIs(t, err, assets.ErrNotOwner)

	out, err = runCLI("--as", creator.Hex(), "vault", "withdraw", "--receipt-id", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "receipt 1 redeemed")
	assert.Equal(t, creator, s.chain.OwnerOf(punks, big.NewInt(9)))
}

func TestCommandsNeedingNodeConnection(t *testing.T) {
	simulate(t, escrow.V7)

	_, err := runCLI("--as", creator.Hex(), "vault", "deposit", "--asset", punks.Hex()+":9")
	assert.ErrorContains(t, err, "no vault configured")
	_, err = runCLI("--as", creator.Hex(), "vault", "sync")
	assert.ErrorContains(t, err, "needs a node connection")
	_, err = runCLI("--as", creator.Hex(), "backfill")
	assert.ErrorContains(t, err, "needs a node connection")
}

func TestArgumentErrors(t *testing.T) {
	simulate(t, escrow.V7)

	_, err := runCLI("accept")
	assert.ErrorContains(t, err, "trade-id")
	_, err = runCLI("accept", "--trade-id", "abc")
	assert.ErrorContains(t, err, "invalid number")
	_, err = runCLI("create", "--to", "nope")
	assert.ErrorContains(t, err, "invalid address")
	_, err = runCLI("create", "--to", counterparty.Hex(), "--offer", "0x01")
	assert.ErrorContains(t, err, "--offer")
	_, err = runCLI("inspect", "--trade-id", "1", "--value", "-1")
	assert.ErrorContains(t, err, "--value")
}

func TestNfts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nft/v3/k/getNFTsForOwner", r.URL.Path)
		assert.Equal(t, []string{punks.Hex()}, r.URL.Query()["contractAddresses[]"])
		_, _ = w.Write([]byte(`{"ownedNfts": [
			{"contract": {"address": "0x0000000000000000000000000000000000000a01", "tokenType": "ERC721"},
			 "tokenId": "7", "name": "Punk #7", "balance": "1"}
		], "pageKey": "next"}`))
	}))
	defer srv.Close()

	prev := config.Get
	config.Get = func() config.Config {
		return config.Config{Network: "monad-testnet", NftMetadataProvider: "alchemy", AlchemyApiUrl: srv.URL, AlchemyApiKey: "k"}
	}
	defer func() { config.Get = prev }()

	out, err := runCLI("nfts", "--owner", creator.Hex(), "--contract", punks.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Punk #7")
	assert.Contains(t, out, "next page: --page-key next")
}

func TestSettingsOverrideConfig(t *testing.T) {
	prev := config.Get
	config.Get = func() config.Config {
		return config.Config{Network: "sepolia", TradingContractVersion: "v7", PrivateKey: "from-env"}
	}
	defer func() { config.Get = prev }()

	var got config.Config
	app := newApp()
	app.Commands = []*cli.Command{{Name: "probe", Action: func(c *cli.Context) error {
		got = settings(c)
		return nil
	}}}
	require.NoError(t, app.Run([]string{"tradectl",
		"--network", "monad-testnet", "--rpc-url", "http://node", "--chain-id", "7",
		"--contract", tradingAddr.Hex(), "--contract-version", "vault", "probe"}))

	assert.Equal(t, "monad-testnet", got.Network)
	assert.Equal(t, "http://node", got.EthereumNodeUrl)
	assert.Equal(t, int64(7), got.ChainID)
	assert.Equal(t, tradingAddr.Hex(), got.TradingContractAddress)
	assert.Equal(t, "vault", got.TradingContractVersion)
	assert.Equal(t, "from-env", got.PrivateKey)
}

func TestPrintError_RevertHints(t *testing.T) {
	var out bytes.Buffer
	printError(&out, &eth.RevertError{Op: "acceptTrade", Reason: "Incorrect ETH amount"})
	assert.Contains(t, out.String(), "[tradectl] acceptTrade reverted: Incorrect ETH amount")
	assert.Contains(t, out.String(), "things to check:")
	assert.Contains(t, out.String(), "plus the trade fee")

	out.Reset()
	printError(&out, escrow.ErrTradeExpired)
	assert.Equal(t, "[tradectl] trade has expired\n", out.String())
}
