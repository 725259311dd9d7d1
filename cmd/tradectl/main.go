package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var Version = "dev" // Overridden by release build script

func init() {
	zapConf := zap.NewProductionConfig()
	zapConf.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if config.Get().LogZapMode == "development" {
		zapConf = zap.NewDevelopmentConfig()
	}
	zap.ReplaceGlobals(zap.Must(zapConf.Build()))
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fatal(app.ErrWriter, err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tradectl"
	app.Version = Version
	app.Usage = "Inspect and drive escrowed NFT trades"
	app.Flags = globalFlags
	app.Commands = []*cli.Command{
		&inspect,
		&create,
		&accept,
		&decline,
		&cancel,
		&expire,
		&approve,
		&approvals,
		&nfts,
		&backfill,
		&vaultCommand,
	}
	return app
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(w io.Writer, err error) {
	printError(w, err)
	os.Exit(1)
}

// printError reports err and, for contract reverts, the checks that usually
// explain them.
func printError(w io.Writer, err error) {
	var usage *invalidUsageError
	if errors.As(err, &usage) {
		_ = cli.ShowCommandHelp(usage.ctx, usage.command)
		return
	}
	_, _ = fmt.Fprintf(w, "[tradectl] %v\n", err)
	var revert *eth.RevertError
	if errors.As(err, &revert) {
		_, _ = fmt.Fprintln(w, "things to check:")
		for _, hint := range revert.Hint() {
			_, _ = fmt.Fprintf(w, "  - %s\n", hint)
		}
	}
}
