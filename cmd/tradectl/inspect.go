package main

import (
	"github.com/nftescrow/tradenode/internal/diagnose"
	"github.com/urfave/cli/v2"
)

var inspect = cli.Command{
	Name:  "inspect",
	Usage: "diagnose why a trade cannot be accepted, declined, cancelled or expired",
	Flags: []cli.Flag{
		tradeIDFlag,
		&cli.StringFlag{
			Name:  "value",
			Usage: "native amount you intend to send with accept, compared with the required value",
		},
	},
	Action: inspectAction,
}

func inspectAction(c *cli.Context) error {
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
		report, err := diagnose.New(client, b.balances).Run(c.Context, diagnose.Params{
			Network: b.network.Name,
			TradeID: id,
			As:      b.caller,
			Value:   value,
		})
		if err != nil {
			return err
		}
		return report.Write(c.App.Writer)
	})
}
