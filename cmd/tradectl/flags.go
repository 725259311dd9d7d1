package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/pkg/trade"
	"github.com/nftescrow/tradenode/pkg/units"
	"github.com/urfave/cli/v2"
)

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "network",
		Usage: fmt.Sprintf("network preset (%s)", strings.Join(config.NetworkNames(), ", ")),
	},
	&cli.StringFlag{
		Name:  "rpc-url",
		Usage: "node url, overrides the preset",
	},
	&cli.Int64Flag{
		Name:  "chain-id",
		Usage: "expected chain id, overrides the preset",
	},
	&cli.StringFlag{
		Name:  "contract",
		Usage: "trading contract address",
	},
	&cli.StringFlag{
		Name:  "contract-version",
		Usage: "trading contract version (v1..v7, vault)",
	},
	&cli.StringFlag{
		Name:  "private-key",
		Usage: "hex private key used to sign transactions",
	},
	&cli.StringFlag{
		Name:  "as",
		Usage: "address to act as when no private key is given (read-only)",
	},
}

var zeroAddress common.Address

var tradeIDFlag = &cli.StringFlag{
	Name:     "trade-id",
	Usage:    "on-chain trade id",
	Required: true,
}

// settings layers the global flags over the process configuration.
func settings(c *cli.Context) config.Config {
	cfg := config.Get()
	if c.IsSet("network") {
		cfg.Network = c.String("network")
	}
	if c.IsSet("rpc-url") {
		cfg.EthereumNodeUrl = c.String("rpc-url")
	}
	if c.IsSet("chain-id") {
		cfg.ChainID = c.Int64("chain-id")
	}
	if c.IsSet("contract") {
		cfg.TradingContractAddress = c.String("contract")
	}
	if c.IsSet("contract-version") {
		cfg.TradingContractVersion = c.String("contract-version")
	}
	if c.IsSet("private-key") {
		cfg.PrivateKey = c.String("private-key")
	}
	return cfg
}

func addressArg(c *cli.Context, name string) (common.Address, error) {
	s := c.String(name)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("--%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func optionalAddressArg(c *cli.Context, name string) (common.Address, error) {
	if !c.IsSet(name) {
		return common.Address{}, nil
	}
	return addressArg(c, name)
}

func bigArg(c *cli.Context, name string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(c.String(name)), 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("--%s: invalid number %q", name, c.String(name))
	}
	return v, nil
}

// nativeArg returns nil when the flag is not set.
func nativeArg(c *cli.Context, name string) (*big.Int, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	v, err := units.ParseNative(c.String(name))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

func assetsArg(c *cli.Context, name string) ([]trade.Asset, error) {
	assets, err := trade.ParseAssetRefs(c.StringSlice(name))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return assets, nil
}
