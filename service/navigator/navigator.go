// Package navigator resolves "follow input N" and "follow output N" against
// the ledger and records every transaction it moves to.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/chaintrail/service/graph"
	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/brojonat/chaintrail/service/metrics"
)

var (
	// ErrIndexOutOfRange is returned for an input or output index outside
	// the transaction.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrFetchFailed wraps ledger failures while resolving a hop. The
	// ledger error stays in the chain.
	ErrFetchFailed = errors.New("fetch failed")
)

// Outcome is how a resolve call ended when it did not fail.
type Outcome int

const (
	// Moved means a new current transaction was fetched and recorded.
	Moved Outcome = iota
	// CoinbaseInput means the selected input has no previous transaction.
	CoinbaseInput
	// OutputUnspent means nothing has spent the selected output yet.
	OutputUnspent
	// NoInputs means the transaction has no inputs at all.
	NoInputs
	// NoOutputs means the transaction has no outputs at all.
	NoOutputs
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case CoinbaseInput:
		return "coinbase_input"
	case OutputUnspent:
		return "output_unspent"
	case NoInputs:
		return "no_inputs"
	case NoOutputs:
		return "no_outputs"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Terminal reports whether the outcome leaves the current transaction as is.
func (o Outcome) Terminal() bool {
	return o != Moved
}

// Result is the outcome of a resolve call. Tx is set only when Outcome is
// Moved.
type Result struct {
	Outcome Outcome
	Tx      *ledger.Transaction
}

// Fetcher is the part of the ledger contract the navigator needs.
type Fetcher interface {
	GetTransaction(ctx context.Context, txid string) (*ledger.Transaction, error)
	GetOutspends(ctx context.Context, txid string) ([]*ledger.OutSpend, error)
}

// Navigator moves between transactions and records them into a graph. It
// keeps no copy of any record outside the graph.
type Navigator struct {
	ledger  Fetcher
	graph   *graph.Graph
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Navigator recording into g.
func New(f Fetcher, g *graph.Graph, m *metrics.Metrics, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Navigator{
		ledger:  f,
		graph:   g,
		metrics: m,
		logger:  logger,
	}
}

// Graph returns the graph the navigator records into.
func (n *Navigator) Graph() *graph.Graph {
	return n.graph
}

// Seed records tx as a session root reached by a direct query.
func (n *Navigator) Seed(tx *ledger.Transaction, provenance string) error {
	if err := n.graph.Record(tx, "", provenance); err != nil {
		return err
	}
	n.metrics.SetGraphEntries(n.graph.Len())
	return nil
}

// InputProvenance is the provenance label of a transaction reached through
// input index (0-based) of txid.
func InputProvenance(index int, txid string) string {
	return fmt.Sprintf("followed input %d of %s", index+1, txid)
}

// OutputProvenance is the provenance label of a transaction reached through
// output index (0-based) of txid.
func OutputProvenance(index int, txid string) string {
	return fmt.Sprintf("followed output %d of %s", index+1, txid)
}

// ResolveInput follows input index (0-based) of tx back to the transaction
// that funded it.
func (n *Navigator) ResolveInput(ctx context.Context, tx *ledger.Transaction, index int) (Result, error) {
	res, err := n.resolveInput(ctx, tx, index)
	n.record("input", res, err)
	return res, err
}

func (n *Navigator) resolveInput(ctx context.Context, tx *ledger.Transaction, index int) (Result, error) {
	if len(tx.Inputs) == 0 {
		return Result{Outcome: NoInputs}, nil
	}
	if index < 0 || index >= len(tx.Inputs) {
		return Result{}, fmt.Errorf("%w: input %d, transaction has %d",
			ErrIndexOutOfRange, index+1, len(tx.Inputs))
	}

	in := tx.Inputs[index]
	if in.IsCoinbase() {
		return Result{Outcome: CoinbaseInput}, nil
	}

	prev, err := n.ledger.GetTransaction(ctx, in.PrevTxID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: previous transaction %s: %w", ErrFetchFailed, in.PrevTxID, err)
	}

	return n.move(prev, tx.TxID, InputProvenance(index, tx.TxID))
}

// ResolveOutput follows output index (0-based) of tx forward to the
// transaction that spent it.
func (n *Navigator) ResolveOutput(ctx context.Context, tx *ledger.Transaction, index int) (Result, error) {
	res, err := n.resolveOutput(ctx, tx, index)
	n.record("output", res, err)
	return res, err
}

func (n *Navigator) resolveOutput(ctx context.Context, tx *ledger.Transaction, index int) (Result, error) {
	if len(tx.Outputs) == 0 {
		return Result{Outcome: NoOutputs}, nil
	}
	if index < 0 || index >= len(tx.Outputs) {
		return Result{}, fmt.Errorf("%w: output %d, transaction has %d",
			ErrIndexOutOfRange, index+1, len(tx.Outputs))
	}

	outspends, err := n.ledger.GetOutspends(ctx, tx.TxID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: outspends of %s: %w", ErrFetchFailed, tx.TxID, err)
	}

	// A short list or a null entry is treated like an unspent output.
	if index >= len(outspends) || outspends[index] == nil ||
		!outspends[index].Spent || outspends[index].TxID == "" {

		return Result{Outcome: OutputUnspent}, nil
	}

	spendingID := outspends[index].TxID
	next, err := n.ledger.GetTransaction(ctx, spendingID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: spending transaction %s: %w", ErrFetchFailed, spendingID, err)
	}

	return n.move(next, tx.TxID, OutputProvenance(index, tx.TxID))
}

func (n *Navigator) move(next *ledger.Transaction, from, provenance string) (Result, error) {
	if err := n.graph.Record(next, from, provenance); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	n.metrics.SetGraphEntries(n.graph.Len())

	n.logger.Debug("moved to transaction",
		"txid", next.TxID,
		"from", from,
		"provenance", provenance,
	)
	return Result{Outcome: Moved, Tx: next}, nil
}

func (n *Navigator) record(direction string, res Result, err error) {
	outcome := res.Outcome.String()
	switch {
	case errors.Is(err, ErrIndexOutOfRange):
		outcome = "index_out_of_range"
	case errors.Is(err, ErrFetchFailed):
		outcome = "fetch_failed"
	}
	n.metrics.RecordNavigation(direction, outcome)
}
