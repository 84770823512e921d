package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/chaintrail/service/explorer"
	"github.com/brojonat/chaintrail/service/logging"
	"github.com/urfave/cli/v2"
)

const farewell = "\nExiting gracefully..."

// maxErrorLogRolls is how many rotated error logs are kept.
const maxErrorLogRolls = 3

func exploreCommand() *cli.Command {
	return &cli.Command{
		Name:   "explore",
		Usage:  "Start the interactive explorer (default)",
		Action: exploreAction,
	}
}

func exploreAction(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	store, err := rt.openStore()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	errorLog, err := logging.OpenErrorLog(rt.cfg.ErrorLogFile, rt.cfg.ErrorLogMaxKB, maxErrorLogRolls)
	if err != nil {
		return err
	}
	defer errorLog.Close()

	ex := explorer.New(explorer.Config{
		Ledger:        rt.ledger,
		Store:         store,
		Params:        rt.params,
		RecentTxCount: rt.cfg.RecentTxCount,
		Metrics:       rt.metrics,
		ErrorLog:      errorLog,
		Logger:        rt.logger,
		Color:         !rt.cfg.NoColor,
	}, c.App.Writer)

	// Interrupt ends the session without saving. The stores are closed by
	// the deferred calls once Run has returned.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ex.Renderer().Banner(version)
	if err := ex.Run(ctx, c.App.Reader); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	ex.Renderer().Info(farewell)
	return nil
}
