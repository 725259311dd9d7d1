package main

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/node"
	"github.com/nftescrow/tradenode/internal/vault"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// backend is everything a command may act through. Fields a configuration
// does not provide stay nil and the commands needing them refuse to run.
type backend struct {
	cfg      config.Config
	network  config.Network
	caller   common.Address
	balances escrow.Balances
	escrow   *escrow.Client
	vault    *vault.Client
	index    *vault.Index
	// client is the raw node connection for log scans.
	client       eth.EthClient
	vaultAddress common.Address
	closers      []func()
}

// connect is replaced in tests.
var connect = dialBackend

// dialBackend connects to the configured chain. withIndex opens the receipt
// index, which vault contracts also need for receipt trades.
func dialBackend(c *cli.Context, withIndex bool) (*backend, error) {
	cfg := settings(c)
	opts, err := node.ChainOptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if opts.As, err = optionalAddressArg(c, "as"); err != nil {
		return nil, err
	}
	chain, err := node.DialChain(c.Context, opts)
	if err != nil {
		return nil, err
	}
	b := &backend{
		cfg:      cfg,
		network:  chain.Network,
		caller:   chain.Signer.Address(),
		balances: chain.Client,
		client:   chain.Client,
		closers:  []func(){chain.Close},
	}

	var receipts assets.ReceiptOwners
	if withIndex || opts.Version == escrow.VersionVault {
		kv, err := db.OpenBadger(cfg.BadgerPath)
		switch {
		case err == nil:
			b.index = vault.NewIndex(kv)
			receipts = b.index
			b.closers = append(b.closers, closeBadger(kv))
		case withIndex:
			b.Close()
			return nil, fmt.Errorf("opening receipt index: %w", err)
		default:
			zap.L().Warn("Receipt index unavailable, receipt ownership cannot be checked", zap.Error(err))
		}
	}

	if chain.Trading != nil {
		if b.escrow, err = chain.EscrowClient(receipts); err != nil {
			b.Close()
			return nil, err
		}
	}
	if chain.Vault != nil {
		b.vaultAddress = chain.Vault.Address()
		if receipts != nil {
			if b.vault, err = chain.VaultClient(receipts); err != nil {
				b.Close()
				return nil, err
			}
		}
	}
	return b, nil
}

func closeBadger(kv *badger.DB) func() {
	return func() {
		if err := kv.Close(); err != nil {
			zap.L().Warn("Error closing receipt index", zap.Error(err))
		}
	}
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func (b *backend) requireEscrow() (*escrow.Client, error) {
	if b.escrow == nil {
		return nil, errors.New("no trading contract configured, set --contract")
	}
	return b.escrow, nil
}

func (b *backend) requireVault() (*vault.Client, error) {
	if b.vault == nil {
		return nil, errors.New("no vault configured, set VAULT_CONTRACT_ADDRESS or use --contract-version vault")
	}
	return b.vault, nil
}

func (b *backend) requireClient() (eth.EthClient, error) {
	if b.client == nil {
		return nil, errors.New("command needs a node connection")
	}
	return b.client, nil
}

// withBackend runs fn against a freshly connected backend.
func withBackend(c *cli.Context, withIndex bool, fn func(b *backend) error) error {
	b, err := connect(c, withIndex)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
