package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "chaintrail",
		Usage: "Interactively trace Bitcoin transaction graphs",
		Description: `Start from an address or a transaction id and walk the transaction graph
backward through inputs or forward through outputs. Every visited transaction
is remembered and the trail can be dumped and loaded again later.

Running chaintrail without a command starts the interactive explorer.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Action:  exploreAction,
		Commands: []*cli.Command{
			exploreCommand(),
			txCommand(),
			addressCommand(),
			sessionCommands(),
			healthCommand(),
			configCommand(),
			versionCommand(),
		},
		// Global flags available to all commands. Flags override the config
		// file and environment only when given explicitly.
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				Value:   "chaintrail.yaml",
			},
			&cli.StringFlag{
				Name:  "esplora-url",
				Usage: "Esplora API base URL (default depends on --network)",
			},
			&cli.StringFlag{
				Name:  "network",
				Usage: "Bitcoin network: mainnet, testnet or signet",
			},
			&cli.DurationFlag{
				Name:  "request-delay",
				Usage: "Minimum delay between ledger requests",
			},
			&cli.StringFlag{
				Name:  "session-backend",
				Usage: "Session storage backend: file or pebble",
			},
			&cli.StringFlag{
				Name:  "session-dir",
				Usage: "Directory for file session dumps",
			},
			&cli.StringFlag{
				Name:  "error-log",
				Usage: "Path of the durable error log",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
