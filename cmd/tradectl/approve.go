package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/urfave/cli/v2"
)

var assetFlag = &cli.StringSliceFlag{
	Name:     "asset",
	Usage:    "asset as contract:tokenId[:amount][:standard], repeatable",
	Required: true,
}

var vaultOperatorFlag = &cli.BoolFlag{
	Name:  "vault",
	Usage: "use the vault as the operator instead of the trading contract",
}

var approve = cli.Command{
	Name:   "approve",
	Usage:  "approve the trading contract (or vault) for the collections of the given assets",
	Flags:  []cli.Flag{assetFlag, vaultOperatorFlag},
	Action: approveAction,
}

var approvals = cli.Command{
	Name:  "approvals",
	Usage: "show holding and approval state of assets",
	Flags: []cli.Flag{
		assetFlag,
		vaultOperatorFlag,
		&cli.StringFlag{
			Name:  "owner",
			Usage: "holder to check; defaults to the calling wallet",
		},
	},
	Action: approvalsAction,
}

func (b *backend) checker(vaultOperator bool) (*assets.Checker, error) {
	if vaultOperator {
		v, err := b.requireVault()
		if err != nil {
			return nil, err
		}
		return v.Checker(), nil
	}
	client, err := b.requireEscrow()
	if err != nil {
		return nil, err
	}
	return client.Checker(), nil
}

func approveAction(c *cli.Context) error {
	list, err := assetsArg(c, "asset")
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return &invalidUsageError{c, "approve"}
	}
	return withBackend(c, c.Bool("vault"), func(b *backend) error {
		checker, err := b.checker(c.Bool("vault"))
		if err != nil {
			return err
		}
		results, err := checker.EnsureApproved(c.Context, b.caller, list)
		for _, r := range results {
			fmt.Fprintf(c.App.Writer, "approved %s for %s\ntx: %s\n", r.Collection.Hex(), checker.Operator().Hex(), r.TxHash.Hex())
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintf(c.App.Writer, "every collection is already approved for %s\n", checker.Operator().Hex())
		}
		return nil
	})
}

func approvalsAction(c *cli.Context) error {
	list, err := assetsArg(c, "asset")
	if err != nil {
		return err
	}
	owner, err := optionalAddressArg(c, "owner")
	if err != nil {
		return err
	}
	return withBackend(c, c.Bool("vault"), func(b *backend) error {
		checker, err := b.checker(c.Bool("vault"))
		if err != nil {
			return err
		}
		if owner == zeroAddress {
			owner = b.caller
		}
		if owner == zeroAddress {
			return errors.New("no owner: pass --owner, --as or --private-key")
		}
		fmt.Fprintf(c.App.Writer, "holder %s, operator %s\n", owner.Hex(), checker.Operator().Hex())
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ASSET\tHELD\tAPPROVED\tNOTE")
		for _, s := range checker.Report(c.Context, owner, list) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Asset, yesNo(s.Held), yesNo(s.Approved), s.HoldError)
		}
		return tw.Flush()
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
