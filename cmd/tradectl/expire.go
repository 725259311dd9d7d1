package main

import (
	"github.com/urfave/cli/v2"
)

var expire = cli.Command{
	Name:   "expire",
	Usage:  "return escrowed assets of a trade past its expiry time",
	Flags:  []cli.Flag{tradeIDFlag},
	Action: expireAction,
}

func expireAction(c *cli.Context) error {
	id, err := bigArg(c, "trade-id")
	if err != nil {
		return err
	}
	return withBackend(c, false, func(b *backend) error {
		client, err := b.requireEscrow()
		if err != nil {
			return err
		}
		txHash, err := client.ExpireTrade(c.Context, id)
		if err != nil {
			return err
		}
		return printTx(c, "expired", id.String(), txHash)
	})
}
