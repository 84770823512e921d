package explorer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/brojonat/chaintrail/service/graph"
	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

const rule = "----------"

// Renderer writes everything the operator sees.
type Renderer struct {
	out io.Writer

	heading *color.Color
	value   *color.Color
	txid    *color.Color
	failure *color.Color
	notice  *color.Color
}

// NewRenderer returns a renderer writing to out. With useColor false no
// escape sequences are emitted.
func NewRenderer(out io.Writer, useColor bool) *Renderer {
	r := &Renderer{
		out:     out,
		heading: color.New(color.FgYellow, color.Bold),
		value:   color.New(color.FgGreen),
		txid:    color.New(color.FgBlue),
		failure: color.New(color.FgRed),
		notice:  color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{r.heading, r.value, r.txid, r.failure, r.notice} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Banner prints the start-up banner.
func (r *Renderer) Banner(version string) {
	r.heading.Fprintln(r.out, "     _           _       _             _ _ ")
	r.heading.Fprintln(r.out, "  __| |__   __ _(_)_ __ | |_ _ __ __ _(_) |")
	r.heading.Fprintln(r.out, " / _| '_ \\ / _` | | '_ \\| __| '__/ _` | | |")
	r.heading.Fprintln(r.out, "| (_| | | | (_| | | | | | |_| | | (_| | | |")
	r.heading.Fprintln(r.out, " \\__|_| |_|\\__,_|_|_| |_|\\__|_|  \\__,_|_|_|")
	r.heading.Fprintf(r.out, "\n%40s\n", version)
}

// Menu prints the main menu.
func (r *Renderer) Menu() {
	r.heading.Fprintln(r.out, "\nMAIN MENU")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "1. Query Address")
	fmt.Fprintln(r.out, "2. Query Transaction")
	fmt.Fprintln(r.out, "3. Load Previously Dumped Chain")
	fmt.Fprintln(r.out, "4. Exit")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "Also: list, dump [handle], help.")
	fmt.Fprintln(r.out, "Type 'm' anytime to return here, or 'exit' to quit.")
}

// NavigationHelp prints the commands available while positioned on a
// transaction.
func (r *Renderer) NavigationHelp() {
	r.heading.Fprintln(r.out, "\nTRANSACTION NAVIGATION")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  iN        - Follow input N backward (e.g., i3)")
	fmt.Fprintln(r.out, "  oN        - Follow output N forward (e.g., o2)")
	fmt.Fprintln(r.out, "  show      - Show the current transaction again")
	fmt.Fprintln(r.out, "  list      - List visited transactions")
	fmt.Fprintln(r.out, "  goto N    - Jump to visited transaction N")
	fmt.Fprintln(r.out, "  jq EXPR   - Run a jq filter over the current transaction")
	fmt.Fprintln(r.out, "  dump [H]  - Dump the chain")
	fmt.Fprintln(r.out, "  m         - Return to main menu")
	fmt.Fprintln(r.out, "  exit      - Quit")
	fmt.Fprintln(r.out, rule)
}

// Prompt prints the input prompt for a mode without a trailing newline.
func (r *Renderer) Prompt(m mode) {
	var text string
	switch m {
	case modeNavigate:
		text = "Enter command: "
	case modePick:
		text = "Select a number, or press Enter to skip: "
	case modeAwaitAddress:
		text = "Enter wallet address: "
	case modeAwaitTxID:
		text = "Enter transaction ID: "
	case modeAwaitHandle:
		text = "Enter session handle or path: "
	default:
		text = "Enter option: "
	}
	r.notice.Fprint(r.out, text)
}

// Error reports a failure. A zero code is omitted.
func (r *Renderer) Error(msg string, code int) {
	if code == 0 {
		r.failure.Fprintf(r.out, "Error: %s\n", msg)
		return
	}
	r.failure.Fprintf(r.out, "Error: %s (Code: %d)\n", msg, code)
}

// Invalid reports an operator mistake.
func (r *Renderer) Invalid(msg string) {
	r.failure.Fprintln(r.out, msg)
}

// Info prints a neutral line, used for terminal outcomes.
func (r *Renderer) Info(msg string) {
	fmt.Fprintln(r.out, msg)
}

// Success prints a confirmation line.
func (r *Renderer) Success(msg string) {
	r.value.Fprintln(r.out, msg)
}

// Address prints an address summary.
func (r *Renderer) Address(s *ledger.AddressSummary) {
	r.value.Fprintf(r.out, "\nAddress: %s\n", s.Address)
	fmt.Fprintf(r.out, "Balance: %d satoshis (%s)\n", s.Balance(), btcutil.Amount(s.Balance()))
	fmt.Fprintf(r.out, "Total Transactions: %d\n", s.ChainStats.TxCount)
	if s.MempoolStats.TxCount > 0 {
		fmt.Fprintf(r.out, "Unconfirmed Transactions: %d\n", s.MempoolStats.TxCount)
	}
}

// RecentTransactions prints the numbered pick list for an address.
func (r *Renderer) RecentTransactions(txs []*ledger.Transaction, limit int) {
	r.heading.Fprintf(r.out, "\nRecent Transactions (up to %d):\n", limit)
	t := r.table()
	t.AppendHeader(table.Row{"#", "Transaction", "Status"})
	for i, tx := range txs {
		t.AppendRow(table.Row{i + 1, tx.TxID, confirmation(tx)})
	}
	t.Render()
}

// Transaction prints the display summary of a record.
func (r *Renderer) Transaction(tx *ledger.Transaction) {
	r.txid.Fprintf(r.out, "\nTransaction: %s\n", tx.TxID)
	fmt.Fprintf(r.out, "Status: %s\n", confirmation(tx))
	fmt.Fprintf(r.out, "Timestamp: %s\n", timestamp(tx))

	r.notice.Fprintf(r.out, "Inputs (%d):\n", len(tx.Inputs))
	for i, in := range tx.Inputs {
		if in.IsCoinbase() {
			fmt.Fprintf(r.out, "  Input %d: coinbase\n", i+1)
			continue
		}
		fmt.Fprintf(r.out, "  Input %d: from %s, vout: %d\n", i+1, r.value.Sprint(in.PrevTxID), in.PrevVout)
	}

	r.notice.Fprintf(r.out, "Outputs (%d):\n", len(tx.Outputs))
	for i, out := range tx.Outputs {
		addr := out.Address
		if addr == "" {
			addr = "N/A"
		}
		fmt.Fprintf(r.out, "  Output %d: %s sat (%s) to %s\n", i+1,
			r.value.Sprint(out.Value), btcutil.Amount(out.Value), r.value.Sprint(addr))
	}
}

// Entries prints the visited graph, one row per entry. Roots show "-" as
// their origin; a from id missing from the graph is shown as stored.
func (r *Renderer) Entries(entries []graph.Entry) {
	t := r.table()
	t.AppendHeader(table.Row{"#", "Transaction", "From", "Path"})
	for i, e := range entries {
		from := e.From
		if e.IsRoot() {
			from = "-"
		}
		t.AppendRow(table.Row{i + 1, e.TxID, from, e.Provenance})
	}
	t.Render()
}

// JSON prints v indented.
func (r *Renderer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.out, string(data))
	return err
}

func (r *Renderer) table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}

func confirmation(tx *ledger.Transaction) string {
	if !tx.Status.Confirmed {
		return "Unconfirmed"
	}
	if tx.Status.BlockHeight > 0 {
		return "Confirmed (block " + strconv.FormatInt(tx.Status.BlockHeight, 10) + ")"
	}
	return "Confirmed"
}

func timestamp(tx *ledger.Transaction) string {
	t, ok := tx.ConfirmedAt()
	if !ok {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
