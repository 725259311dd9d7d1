package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/vault"
	"github.com/urfave/cli/v2"
)

var vaultCommand = cli.Command{
	Name:  "vault",
	Usage: "deposit NFTs for tradeable receipts and manage the receipt index",
	Subcommands: []*cli.Command{
		{
			Name:   "deposit",
			Usage:  "deposit an NFT into the vault for a receipt",
			Flags:  []cli.Flag{assetFlag},
			Action: vaultDepositAction,
		},
		{
			Name:  "withdraw",
			Usage: "redeem a receipt for its NFT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "receipt-id",
					Usage:    "receipt to redeem",
					Required: true,
				},
			},
			Action: vaultWithdrawAction,
		},
		{
			Name:  "receipts",
			Usage: "list receipts held by an address according to the local index",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "owner",
					Usage: "holder; defaults to the calling wallet",
				},
			},
			Action: vaultReceiptsAction,
		},
		{
			Name:  "sync",
			Usage: "bring the local receipt index up to the confirmed head once",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:  "confirmations",
					Usage: "blocks to stay behind the head",
					Value: 2,
				},
			},
			Action: vaultSyncAction,
		},
	},
}

func vaultDepositAction(c *cli.Context) error {
	list, err := assetsArg(c, "asset")
	if err != nil {
		return err
	}
	if len(list) != 1 {
		return errors.New("--asset: deposit takes exactly one asset")
	}
	return withBackend(c, true, func(b *backend) error {
		v, err := b.requireVault()
		if err != nil {
			return err
		}
		deposited, err := v.Deposit(c.Context, list[0])
		if err != nil {
			return err
		}
		for _, a := range deposited.Approvals {
			fmt.Fprintf(c.App.Writer, "approved %s\ntx: %s\n", a.Collection.Hex(), a.TxHash.Hex())
		}
		fmt.Fprintf(c.App.Writer, "receipt %s issued for %s\ntx: %s\n", deposited.ReceiptID, list[0], deposited.TxHash.Hex())
		return nil
	})
}

func vaultWithdrawAction(c *cli.Context) error {
	id, err := bigArg(c, "receipt-id")
	if err != nil {
		return err
	}
	return withBackend(c, true, func(b *backend) error {
		v, err := b.requireVault()
		if err != nil {
			return err
		}
		txHash, err := v.Withdraw(c.Context, id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.App.Writer, "receipt %s redeemed\ntx: %s\n", id, txHash.Hex())
		return err
	})
}

func vaultReceiptsAction(c *cli.Context) error {
	owner, err := optionalAddressArg(c, "owner")
	if err != nil {
		return err
	}
	return withBackend(c, true, func(b *backend) error {
		if b.index == nil {
			return errors.New("receipt index is not open")
		}
		if owner == zeroAddress {
			owner = b.caller
		}
		records, err := b.index.ReceiptsOf(owner)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			_, err := fmt.Fprintf(c.App.Writer, "no receipts indexed for %s\n", owner.Hex())
			return err
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RECEIPT\tASSET\tDEPOSIT BLOCK")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.ID, r.Asset(), r.DepositBlock)
		}
		return tw.Flush()
	})
}

func vaultSyncAction(c *cli.Context) error {
	return withBackend(c, true, func(b *backend) error {
		client, err := b.requireClient()
		if err != nil {
			return err
		}
		if b.index == nil || b.vaultAddress == zeroAddress {
			return errors.New("no vault configured, set VAULT_CONTRACT_ADDRESS or use --contract-version vault")
		}
		applied, err := vault.NewSyncer(client, b.index, eth.NewDefaultTradeLogsDecoder(), vault.SyncConfig{
			Vault:         b.vaultAddress,
			StartBlock:    b.cfg.LogScanStartBlock,
			ChunkSize:     b.cfg.LogScanMaxChunkSize,
			Confirmations: c.Uint64("confirmations"),
		}).SyncOnce(c.Context)
		if err != nil {
			return err
		}
		checkpoint, _, err := b.index.Checkpoint()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.App.Writer, "applied %d receipt events, indexed through block %d\n", applied, checkpoint)
		return err
	})
}
