package main

import (
	"fmt"

	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/mirror"
	"github.com/urfave/cli/v2"
)

var backfill = cli.Command{
	Name:  "backfill",
	Usage: "fill missing settlement transaction hashes of accepted mirror records once",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "from-block",
			Usage: "first block to scan; defaults to LOG_SCAN_START_BLOCK",
		},
		&cli.IntFlag{
			Name:  "batch",
			Usage: "records to repair in this run",
			Value: 50,
		},
	},
	Action: backfillAction,
}

func backfillAction(c *cli.Context) error {
	return withBackend(c, false, func(b *backend) error {
		client, err := b.requireClient()
		if err != nil {
			return err
		}
		trading, err := b.requireEscrow()
		if err != nil {
			return err
		}
		sqlite, err := db.OpenSqlite(b.cfg.SqlitePath)
		if err != nil {
			return err
		}
		defer sqlite.Close()

		from := b.cfg.LogScanStartBlock
		if c.IsSet("from-block") {
			from = c.Uint64("from-block")
		}
		filled, err := mirror.NewBackfiller(sqlite, mirror.NewStore(), client, eth.NewDefaultTradeLogsDecoder(), mirror.BackfillConfig{
			Contract:  trading.Contract().Address(),
			FromBlock: from,
			ChunkSize: b.cfg.LogScanMaxChunkSize,
			BatchSize: c.Int("batch"),
		}).Run(c.Context)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.App.Writer, "filled %d transaction hashes\n", filled)
		return err
	})
}
