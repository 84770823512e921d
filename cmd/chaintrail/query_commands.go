package main

import (
	"fmt"

	"github.com/brojonat/chaintrail/service/explorer"
	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/urfave/cli/v2"
)

func txCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Usage:     "Show a single transaction",
		ArgsUsage: "TXID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction id is required")
			}
			txid, err := ledger.ParseTxID(c.Args().First())
			if err != nil {
				return err
			}

			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			tx, err := rt.ledger.GetTransaction(c.Context, txid)
			if err != nil {
				return fmt.Errorf("failed to fetch transaction: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, tx)
			}
			explorer.NewRenderer(c.App.Writer, !rt.cfg.NoColor).Transaction(tx)
			return nil
		},
	}
}

// addressReport is the JSON form of an address query.
type addressReport struct {
	Summary      *ledger.AddressSummary `json:"summary"`
	Balance      int64                  `json:"balance"`
	Transactions []*ledger.Transaction  `json:"transactions"`
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:      "address",
		Usage:     "Show an address summary and its recent transactions",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of recent transactions to show (default RECENT_TX_COUNT)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().First()

			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := ledger.ValidateAddress(address, rt.params); err != nil {
				return err
			}

			summary, err := rt.ledger.GetAddressSummary(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to fetch address: %w", err)
			}
			txs, err := rt.ledger.GetAddressTransactions(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to fetch address transactions: %w", err)
			}

			limit := rt.cfg.RecentTxCount
			if c.IsSet("limit") && c.Int("limit") > 0 {
				limit = c.Int("limit")
			}
			if len(txs) > limit {
				txs = txs[:limit]
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, addressReport{
					Summary:      summary,
					Balance:      summary.Balance(),
					Transactions: txs,
				})
			}

			r := explorer.NewRenderer(c.App.Writer, !rt.cfg.NoColor)
			r.Address(summary)
			if len(txs) == 0 {
				r.Info("No recent transactions.")
				return nil
			}
			r.RecentTransactions(txs, limit)
			return nil
		},
	}
}
