package main

import (
	"fmt"

	"github.com/brojonat/chaintrail/service/explorer"
	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/urfave/cli/v2"
)

func sessionCommands() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect dumped sessions",
		Subcommands: []*cli.Command{
			sessionListCommand(),
			sessionShowCommand(),
		},
	}
}

func sessionListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored session handles",
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := rt.openStore()
			if err != nil {
				return fmt.Errorf("failed to open session store: %w", err)
			}
			handles, err := store.List(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			if c.Bool("json") {
				if handles == nil {
					handles = []string{}
				}
				return outputJSON(c.App.Writer, handles)
			}
			if len(handles) == 0 {
				fmt.Fprintln(c.App.Writer, "No sessions found.")
				return nil
			}
			for _, h := range handles {
				fmt.Fprintln(c.App.Writer, h)
			}
			return nil
		},
	}
}

// entryView is the JSON form of a stored graph entry.
type entryView struct {
	TxID string              `json:"txid"`
	From *string             `json:"from"`
	Path string              `json:"path"`
	Data *ledger.Transaction `json:"data"`
}

func sessionShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the entries of a stored session",
		ArgsUsage: "HANDLE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the entry list",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("session handle is required")
			}

			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := rt.openStore()
			if err != nil {
				return fmt.Errorf("failed to open session store: %w", err)
			}
			g, err := store.Load(c.Context, c.Args().First())
			rt.metrics.RecordSessionOp("load", store.Backend(), err)
			if err != nil {
				return err
			}

			entries := g.All()
			views := make([]entryView, len(entries))
			for i, e := range entries {
				views[i] = entryView{TxID: e.TxID, Path: e.Provenance, Data: e.Tx}
				if !e.IsRoot() {
					from := e.From
					views[i].From = &from
				}
			}

			if expr := c.String("jq"); expr != "" {
				results, err := explorer.Query(c.Context, expr, views)
				if err != nil {
					return err
				}
				for _, r := range results {
					if err := outputJSON(c.App.Writer, r); err != nil {
						return err
					}
				}
				return nil
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, views)
			}
			r := explorer.NewRenderer(c.App.Writer, !rt.cfg.NoColor)
			if len(entries) == 0 {
				r.Info("Session is empty.")
				return nil
			}
			r.Entries(entries)
			return nil
		},
	}
}
