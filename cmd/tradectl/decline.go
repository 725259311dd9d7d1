package main

import (
	"github.com/urfave/cli/v2"
)

var decline = cli.Command{
	Name:   "decline",
	Usage:  "decline a pending trade as its counterparty",
	Flags:  []cli.Flag{tradeIDFlag},
	Action: declineAction,
}

func declineAction(c *cli.Context) error {
	id, err := bigArg(c, "trade-id")
	if err != nil {
		return err
	}
	return withBackend(c, false, func(b *backend) error {
		client, err := b.requireEscrow()
		if err != nil {
			return err
		}
		txHash, err := client.DeclineTrade(c.Context, id)
		if err != nil {
			return err
		}
		return printTx(c, "declined", id.String(), txHash)
	})
}
