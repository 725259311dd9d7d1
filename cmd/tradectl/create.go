package main

import (
	"fmt"

	"github.com/nftescrow/tradenode/pkg/trade"
	"github.com/nftescrow/tradenode/pkg/units"
	"github.com/urfave/cli/v2"
)

var create = cli.Command{
	Name:  "create",
	Usage: "escrow offered assets in a new trade with a counterparty",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "to",
			Usage:    "counterparty address",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "offer",
			Usage: "offered asset as contract:tokenId[:amount][:standard], repeatable",
		},
		&cli.StringSliceFlag{
			Name:  "request",
			Usage: "requested asset as contract:tokenId[:amount][:standard], repeatable",
		},
		&cli.StringFlag{
			Name:  "offer-native",
			Usage: "native amount offered",
		},
		&cli.StringFlag{
			Name:  "request-native",
			Usage: "native amount requested",
		},
		&cli.StringFlag{
			Name:  "message",
			Usage: "message for the counterparty",
		},
	},
	Action: createAction,
}

func createAction(c *cli.Context) error {
	to, err := addressArg(c, "to")
	if err != nil {
		return err
	}
	p := trade.Proposal{Counterparty: to, Message: c.String("message")}
	if p.OfferedAssets, err = assetsArg(c, "offer"); err != nil {
		return err
	}
	if p.RequestedAssets, err = assetsArg(c, "request"); err != nil {
		return err
	}
	if p.OfferedNative, err = nativeArg(c, "offer-native"); err != nil {
		return err
	}
	if p.RequestedNative, err = nativeArg(c, "request-native"); err != nil {
		return err
	}

	return withBackend(c, false, func(b *backend) error {
		client, err := b.requireEscrow()
		if err != nil {
			return err
		}
		created, err := client.CreateTrade(c.Context, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "trade %s created\n", created.TradeID)
		fmt.Fprintf(c.App.Writer, "sent:    %s\n", units.FormatNative(created.Value))
		fmt.Fprintf(c.App.Writer, "tx:      %s\n", created.TxHash.Hex())
		return nil
	})
}
