package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var accept = cli.Command{
	Name:  "accept",
	Usage: "accept a pending trade as its counterparty",
	Flags: []cli.Flag{
		tradeIDFlag,
		&cli.StringFlag{
			Name:  "value",
			Usage: "native amount to send; defaults to requested native plus the trade fee",
		},
	},
	Action: acceptAction,
}

func acceptAction(c *cli.Context) error {
	id, err := bigArg(c, "trade-id")
	if err != nil {
		return err
	}
	value, err := nativeArg(c, "value")
	if err != nil {
		return err
	}
	return withBackend(c, false, func(b *backend) error {
		client, err := b.requireEscrow()
		if err != nil {
			return err
		}
		if value == nil {
			txHash, err := client.AcceptTrade(c.Context, id)
			if err != nil {
				return err
			}
			return printTx(c, "accepted", id.String(), txHash)
		}
		txHash, err := client.AcceptTradeWithValue(c.Context, id, value)
		if err != nil {
			return err
		}
		return printTx(c, "accepted", id.String(), txHash)
	})
}

func printTx(c *cli.Context, verb, tradeID string, txHash fmt.Stringer) error {
	_, err := fmt.Fprintf(c.App.Writer, "trade %s %s\ntx: %s\n", tradeID, verb, txHash)
	return err
}
