package main

import (
	"github.com/urfave/cli/v2"
)

var cancel = cli.Command{
	Name:   "cancel",
	Usage:  "cancel a pending trade as its creator",
	Flags:  []cli.Flag{tradeIDFlag},
	Action: cancelAction,
}

func cancelAction(c *cli.Context) error {
	id, err := bigArg(c, "trade-id")
	if err != nil {
		return err
	}
	return withBackend(c, false, func(b *backend) error {
		client, err := b.requireEscrow()
		if err != nil {
			return err
		}
		txHash, err := client.CancelTrade(c.Context, id)
		if err != nil {
			return err
		}
		return printTx(c, "cancelled", id.String(), txHash)
	})
}
