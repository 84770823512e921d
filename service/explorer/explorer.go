// Package explorer is the interactive session: one dispatch loop that reads
// an operator line, turns it into a command and applies it to the session's
// graph and current transaction.
package explorer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/chaintrail/client"
	"github.com/brojonat/chaintrail/service/graph"
	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/brojonat/chaintrail/service/logging"
	"github.com/brojonat/chaintrail/service/metrics"
	"github.com/brojonat/chaintrail/service/navigator"
	"github.com/brojonat/chaintrail/service/session"
	"github.com/btcsuite/btcd/chaincfg"
)

// Error-log codes for failures that are not tied to a single endpoint.
const (
	CodeAddressTxFetch  = 102
	CodeSpendingTxFetch = 301
	CodePreviousTxFetch = 302
	CodeDump            = 401
	CodeLoadMissing     = 501
	CodeLoadDecode      = 502
	CodeLoadOther       = 503
)

const (
	provenanceQuery       = "initial query"
	provenanceAddressForm = "from address %s"
)

// Config wires the explorer's collaborators.
type Config struct {
	Ledger        ledger.Client
	Store         session.Store
	Params        *chaincfg.Params
	RecentTxCount int
	Metrics       *metrics.Metrics
	ErrorLog      *logging.ErrorLog
	Logger        *slog.Logger
	Color         bool
}

// pickItem is one selectable row after an address query or a load.
type pickItem struct {
	txid string
	// address is set for address-query picks, which need a fetch.
	address string
}

// Explorer holds one operator session. It is not safe for concurrent use.
type Explorer struct {
	ledger   ledger.Client
	store    session.Store
	nav      *navigator.Navigator
	params   *chaincfg.Params
	recent   int
	metrics  *metrics.Metrics
	errorLog *logging.ErrorLog
	logger   *slog.Logger
	ui       *Renderer

	mode    mode
	current *ledger.Transaction
	pending []pickItem
}

// New creates an explorer writing to out with an empty graph.
func New(cfg Config, out io.Writer) *Explorer {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	params := cfg.Params
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	recent := cfg.RecentTxCount
	if recent < 1 {
		recent = 5
	}

	return &Explorer{
		ledger:   cfg.Ledger,
		store:    cfg.Store,
		nav:      navigator.New(cfg.Ledger, graph.New(), cfg.Metrics, logger),
		params:   params,
		recent:   recent,
		metrics:  cfg.Metrics,
		errorLog: cfg.ErrorLog,
		logger:   logger,
		ui:       NewRenderer(out, cfg.Color),
		mode:     modeMenu,
	}
}

// Renderer exposes the explorer's output writer.
func (e *Explorer) Renderer() *Renderer { return e.ui }

// Graph returns the session graph.
func (e *Explorer) Graph() *graph.Graph { return e.nav.Graph() }

// Current returns the transaction the session is positioned at, if any.
func (e *Explorer) Current() *ledger.Transaction { return e.current }

// Run shows the menu and processes lines from in until the operator exits
// or in is exhausted.
func (e *Explorer) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	e.ui.Menu()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.ui.Prompt(e.mode)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(e.ui.out)
			return err
		case line := <-lines:
			if quit := e.Handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// Handle applies one operator line. It reports whether the session should
// end. Failures are reported to the operator and never end the session.
func (e *Explorer) Handle(ctx context.Context, line string) bool {
	cmd, err := parseCommand(e.mode, line)
	if err != nil {
		e.ui.Invalid(err.Error())
		return false
	}
	e.logger.Debug("dispatching command", "mode", e.mode.String(), "kind", int(cmd.kind))

	switch cmd.kind {
	case cmdNone:
		e.skip()
	case cmdExit:
		return true
	case cmdMenu:
		e.toMenu()
	case cmdHelp:
		e.help()
	case cmdAddress:
		e.queryAddress(ctx, cmd.arg)
	case cmdTx:
		e.queryTransaction(ctx, cmd.arg)
	case cmdLoad:
		e.load(ctx, cmd.arg)
	case cmdDump:
		e.dump(ctx, cmd.arg)
	case cmdList:
		e.list()
	case cmdPick:
		e.pick(ctx, cmd.index)
	case cmdInput:
		e.followInput(ctx, cmd.index)
	case cmdOutput:
		e.followOutput(ctx, cmd.index)
	case cmdShow:
		if e.requireCurrent() {
			e.ui.Transaction(e.current)
		}
	case cmdGoto:
		e.gotoEntry(cmd.index)
	case cmdJQ:
		e.jq(ctx, cmd.arg)
	default:
		if e.mode == modeMenu {
			e.ui.Invalid("Invalid option.")
		} else {
			e.ui.Invalid("Invalid command.")
		}
	}
	return false
}

func (e *Explorer) toMenu() {
	e.mode = modeMenu
	e.pending = nil
	e.ui.Menu()
}

func (e *Explorer) navigate(tx *ledger.Transaction) {
	e.current = tx
	e.mode = modeNavigate
	e.pending = nil
	e.ui.Transaction(tx)
	e.ui.NavigationHelp()
}

// skip handles an empty line: it leaves pick and prompt modes, and is
// ignored elsewhere.
func (e *Explorer) skip() {
	switch e.mode {
	case modePick, modeAwaitAddress, modeAwaitTxID, modeAwaitHandle:
		e.toMenu()
	}
}

func (e *Explorer) help() {
	if e.mode == modeNavigate {
		e.ui.NavigationHelp()
		return
	}
	e.ui.Menu()
}

func (e *Explorer) requireCurrent() bool {
	if e.current == nil {
		e.ui.Invalid("No current transaction. Query an address or transaction first.")
		return false
	}
	return true
}

// report shows a failed fetch and records it in the error log. Not-found
// results are reported without logging.
func (e *Explorer) report(msg string, code int, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, ledger.ErrNotFound) {
		e.ui.Error(msg+": not found", 0)
		return
	}
	e.logger.Warn(msg, "code", code, "error", err)
	e.errorLog.Record(code, msg, err)
	e.ui.Error(fmt.Sprintf("%s: %v", msg, err), code)
}

// fetchCode returns the endpoint code carried by a ledger failure, or
// fallback when the failure did not come from the HTTP client.
func fetchCode(err error, fallback int) int {
	var fe *client.FetchError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fallback
}

func (e *Explorer) queryAddress(ctx context.Context, address string) {
	if address == "" {
		e.mode = modeAwaitAddress
		return
	}
	e.mode = modeMenu

	if err := ledger.ValidateAddress(address, e.params); err != nil {
		e.ui.Invalid("Invalid address format.")
		return
	}

	summary, err := e.ledger.GetAddressSummary(ctx, address)
	if err != nil {
		e.report("failed to fetch address", fetchCode(err, client.CodeAddressTransport), err)
		return
	}
	e.ui.Address(summary)

	txs, err := e.ledger.GetAddressTransactions(ctx, address)
	if err != nil {
		e.report("failed to fetch address transactions", fetchCode(err, client.CodeAddressTxsTransport), err)
		return
	}
	if len(txs) == 0 {
		e.ui.Info("No recent transactions.")
		return
	}
	if len(txs) > e.recent {
		txs = txs[:e.recent]
	}

	e.pending = make([]pickItem, len(txs))
	for i, tx := range txs {
		e.pending[i] = pickItem{txid: tx.TxID, address: address}
	}
	e.mode = modePick
	e.ui.RecentTransactions(txs, e.recent)
}

func (e *Explorer) queryTransaction(ctx context.Context, raw string) {
	if raw == "" {
		e.mode = modeAwaitTxID
		return
	}
	if e.mode != modeNavigate {
		e.mode = modeMenu
	}

	txid, err := ledger.ParseTxID(raw)
	if err != nil {
		e.ui.Invalid("Invalid transaction ID format.")
		return
	}

	tx, err := e.ledger.GetTransaction(ctx, txid)
	if err != nil {
		e.report("failed to fetch transaction", fetchCode(err, client.CodeTxTransport), err)
		return
	}
	if err := e.nav.Seed(tx, provenanceQuery); err != nil {
		e.ui.Error(err.Error(), 0)
		return
	}
	e.navigate(tx)
}

func (e *Explorer) pick(ctx context.Context, index int) {
	if index < 0 || index >= len(e.pending) {
		e.ui.Invalid(errSelection.Error())
		return
	}
	item := e.pending[index]

	if item.address == "" {
		entry, ok := e.Graph().Get(item.txid)
		if !ok || entry.Tx == nil {
			e.ui.Invalid("No transaction data found in chain for that txid.")
			return
		}
		e.navigate(entry.Tx)
		return
	}

	tx, err := e.ledger.GetTransaction(ctx, item.txid)
	if err != nil {
		e.report("failed to fetch transaction", CodeAddressTxFetch, err)
		return
	}
	if err := e.nav.Seed(tx, fmt.Sprintf(provenanceAddressForm, item.address)); err != nil {
		e.ui.Error(err.Error(), 0)
		return
	}
	e.navigate(tx)
}

func (e *Explorer) followInput(ctx context.Context, index int) {
	if !e.requireCurrent() {
		return
	}
	res, err := e.nav.ResolveInput(ctx, e.current, index)
	switch {
	case errors.Is(err, navigator.ErrIndexOutOfRange):
		e.ui.Invalid("Invalid input number.")
		return
	case err != nil:
		e.report("failed to fetch previous transaction", CodePreviousTxFetch, err)
		return
	}
	e.apply(res)
}

func (e *Explorer) followOutput(ctx context.Context, index int) {
	if !e.requireCurrent() {
		return
	}
	res, err := e.nav.ResolveOutput(ctx, e.current, index)
	switch {
	case errors.Is(err, navigator.ErrIndexOutOfRange):
		e.ui.Invalid("Invalid output number.")
		return
	case err != nil:
		var fe *client.FetchError
		if errors.As(err, &fe) && fe.Op == "GetOutspends" {
			e.report("failed to fetch output spend status", fe.Code, err)
			return
		}
		e.report("failed to fetch spending transaction", CodeSpendingTxFetch, err)
		return
	}
	e.apply(res)
}

func (e *Explorer) apply(res navigator.Result) {
	switch res.Outcome {
	case navigator.Moved:
		e.navigate(res.Tx)
	case navigator.CoinbaseInput:
		e.ui.Info("This is a coinbase input, no previous transaction.")
	case navigator.NoInputs:
		e.ui.Info("No inputs (possibly a coinbase transaction).")
	case navigator.OutputUnspent:
		e.ui.Info("This output is unspent. No further transaction.")
	case navigator.NoOutputs:
		e.ui.Info("No outputs to follow.")
	}
}

func (e *Explorer) list() {
	entries := e.Graph().All()
	if len(entries) == 0 {
		e.ui.Info("No transactions visited yet.")
		return
	}
	e.ui.Entries(entries)
}

func (e *Explorer) gotoEntry(index int) {
	entry, ok := e.Graph().At(index)
	if !ok || entry.Tx == nil {
		e.ui.Invalid("Invalid entry number.")
		return
	}
	e.navigate(entry.Tx)
}

func (e *Explorer) jq(ctx context.Context, expr string) {
	if !e.requireCurrent() {
		return
	}
	results, err := Query(ctx, expr, e.current)
	if err != nil {
		e.ui.Invalid(err.Error())
		return
	}
	for _, r := range results {
		if err := e.ui.JSON(r); err != nil {
			e.ui.Error(err.Error(), 0)
			return
		}
	}
}

func (e *Explorer) dump(ctx context.Context, handle string) {
	if e.store == nil {
		e.ui.Error("no session store configured", 0)
		return
	}
	saved, err := e.store.Dump(ctx, e.Graph(), handle)
	e.metrics.RecordSessionOp("dump", e.store.Backend(), err)
	if err != nil {
		e.logger.Warn("failed to dump session", "handle", handle, "error", err)
		e.errorLog.Record(CodeDump, "failed to dump session", err)
		e.ui.Error(fmt.Sprintf("failed to dump chain: %v", err), CodeDump)
		return
	}
	e.ui.Success("Chain dumped to " + saved)
}

func (e *Explorer) load(ctx context.Context, handle string) {
	if handle == "" {
		e.mode = modeAwaitHandle
		return
	}
	e.mode = modeMenu
	if e.store == nil {
		e.ui.Error("no session store configured", 0)
		return
	}

	loaded, err := e.store.Load(ctx, handle)
	e.metrics.RecordSessionOp("load", e.store.Backend(), err)
	if err != nil {
		code := CodeLoadOther
		switch {
		case errors.Is(err, session.ErrNotFound):
			code = CodeLoadMissing
		case errors.Is(err, session.ErrDecodeFailed):
			code = CodeLoadDecode
		}
		e.logger.Warn("failed to load session", "handle", handle, "error", err)
		e.errorLog.Record(code, "failed to load session", err)
		e.ui.Error(fmt.Sprintf("failed to load chain: %v", err), code)
		return
	}

	e.Graph().Replace(loaded)
	e.metrics.SetGraphEntries(e.Graph().Len())
	e.current = nil
	e.ui.Success(fmt.Sprintf("Chain loaded from %s.", handle))

	entries := e.Graph().All()
	if len(entries) == 0 {
		e.ui.Info("Loaded chain is empty.")
		return
	}
	e.ui.Info("\nTransactions in loaded chain:")
	e.ui.Entries(entries)

	e.pending = make([]pickItem, len(entries))
	for i, entry := range entries {
		e.pending[i] = pickItem{txid: entry.TxID}
	}
	e.mode = modePick
}
