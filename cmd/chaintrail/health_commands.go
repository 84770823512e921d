package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the Esplora API is reachable",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			height, err := rt.ledger.GetTipHeight(ctx)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{
					"esplora_url": rt.cfg.EsploraURL,
					"network":     rt.cfg.Network,
					"tip_height":  height,
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ Esplora is reachable (tip height: %d)\n", height)
			fmt.Fprintf(c.App.Writer, "  URL: %s\n", rt.cfg.EsploraURL)
			return nil
		},
	}
}
