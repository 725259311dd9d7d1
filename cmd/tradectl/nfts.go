package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/nftmeta"
	"github.com/urfave/cli/v2"
)

var nfts = cli.Command{
	Name:  "nfts",
	Usage: "list NFTs a wallet holds using the metadata provider",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "wallet address",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "contract",
			Usage: "only this collection, repeatable",
		},
		&cli.StringFlag{
			Name:  "page-key",
			Usage: "continue from a previous page",
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "NFTs per page",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "comma separated providers to try in order (alchemy, magiceden)",
		},
	},
	Action: nftsAction,
}

func nftsAction(c *cli.Context) error {
	owner, err := addressArg(c, "owner")
	if err != nil {
		return err
	}
	opts := nftmeta.ListOptions{PageKey: c.String("page-key"), PageSize: c.Int("page-size")}
	for _, s := range c.StringSlice("contract") {
		if !common.IsHexAddress(s) {
			return fmt.Errorf("--contract: invalid address %q", s)
		}
		opts.Contracts = append(opts.Contracts, common.HexToAddress(s))
	}

	cfg := settings(c)
	if c.IsSet("provider") {
		cfg.NftMetadataProvider = c.String("provider")
	}
	network, err := cfg.ResolveNetwork()
	if err != nil {
		return err
	}
	provider, err := nftmeta.NewFromConfig(cfg, network, nil)
	if err != nil {
		return err
	}

	page, err := provider.ListOwnerNFTs(c.Context, owner, opts)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRACT\tTOKEN\tTYPE\tBALANCE\tNAME")
	for _, n := range page.NFTs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.Contract.Hex(), n.TokenID, n.TokenType, n.Balance, n.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.PageKey != "" {
		fmt.Fprintf(c.App.Writer, "next page: --page-key %s\n", page.PageKey)
	}
	return nil
}
