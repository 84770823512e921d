package navigator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brojonat/chaintrail/service/graph"
	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/brojonat/chaintrail/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idA = strings.Repeat("a", 64)
	idB = strings.Repeat("b", 64)
	idC = strings.Repeat("c", 64)
)

// coinbaseTx is a transaction with one coinbase input and two outputs.
func coinbaseTx() *ledger.Transaction {
	return &ledger.Transaction{
		TxID:   idA,
		Status: ledger.TxStatus{Confirmed: true, BlockTime: 1700000000},
		Inputs: []ledger.Input{{}},
		Outputs: []ledger.Output{
			{Value: 500000, Address: "X"},
			{Value: 499000, Address: "Y"},
		},
	}
}

// spendingTx spends output 0 of idA.
func spendingTx() *ledger.Transaction {
	return &ledger.Transaction{
		TxID:    idB,
		Inputs:  []ledger.Input{{PrevTxID: idA, PrevVout: 0}},
		Outputs: []ledger.Output{{Value: 490000, Address: "Z"}},
	}
}

func newTestNavigator(mock *ledger.MockClient) (*Navigator, *graph.Graph) {
	g := graph.New()
	return New(mock, g, metrics.NewMetrics(prometheus.NewRegistry()), nil), g
}

func TestScenario_CoinbaseThenFollowOutput(t *testing.T) {
	ctx := context.Background()
	mock := ledger.NewMockClient()
	mock.AddTransaction(coinbaseTx())
	mock.AddTransaction(spendingTx())
	mock.SetOutspends(idA, []*ledger.OutSpend{
		{Spent: true, TxID: idB},
		{Spent: false},
	})

	nav, g := newTestNavigator(mock)

	root := coinbaseTx()
	require.NoError(t, nav.Seed(root, "initial query"))

	res, err := nav.ResolveInput(ctx, root, 0)
	require.NoError(t, err)
	assert.Equal(t, CoinbaseInput, res.Outcome)
	assert.Nil(t, res.Tx)
	assert.Equal(t, 0, mock.TotalCalls(), "coinbase input must not fetch")

	res, err = nav.ResolveOutput(ctx, root, 0)
	require.NoError(t, err)
	require.Equal(t, Moved, res.Outcome)
	require.NotNil(t, res.Tx)
	assert.Equal(t, idB, res.Tx.TxID)

	entry, ok := g.Get(idB)
	require.True(t, ok)
	assert.Equal(t, idA, entry.From)
	assert.Equal(t, "followed output 1 of "+idA, entry.Provenance)
	assert.Equal(t, 2, g.Len())
}

func TestResolveInput_RecordsPreviousTransaction(t *testing.T) {
	ctx := context.Background()
	mock := ledger.NewMockClient()
	mock.AddTransaction(coinbaseTx())

	nav, g := newTestNavigator(mock)
	current := spendingTx()
	require.NoError(t, nav.Seed(current, "initial query"))

	before := g.Len()
	res, err := nav.ResolveInput(ctx, current, 0)
	require.NoError(t, err)
	assert.Equal(t, Moved, res.Outcome)
	assert.Equal(t, idA, res.Tx.TxID)

	assert.Equal(t, before+1, g.Len())
	entry, ok := g.Get(idA)
	require.True(t, ok)
	assert.Equal(t, idB, entry.From)
	assert.Equal(t, "followed input 1 of "+idB, entry.Provenance)
	assert.Equal(t, 1, mock.Calls("GetTransaction"))
}

func TestResolveInput_NoInputsNeverFetches(t *testing.T) {
	mock := ledger.NewMockClient()
	nav, g := newTestNavigator(mock)

	tx := &ledger.Transaction{TxID: idC, Outputs: []ledger.Output{{Value: 1}}}
	for _, idx := range []int{-1, 0, 1, 5} {
		res, err := nav.ResolveInput(context.Background(), tx, idx)
		require.NoError(t, err)
		assert.Equal(t, NoInputs, res.Outcome)
		assert.True(t, res.Outcome.Terminal())
	}
	assert.Equal(t, 0, mock.TotalCalls())
	assert.True(t, g.IsEmpty())
}

func TestResolveOutput_NoOutputs(t *testing.T) {
	mock := ledger.NewMockClient()
	nav, _ := newTestNavigator(mock)

	tx := &ledger.Transaction{TxID: idC, Inputs: []ledger.Input{{PrevTxID: idA}}}
	res, err := nav.ResolveOutput(context.Background(), tx, 0)
	require.NoError(t, err)
	assert.Equal(t, NoOutputs, res.Outcome)
	assert.Equal(t, 0, mock.TotalCalls())
}

func TestResolve_IndexOutOfRange(t *testing.T) {
	mock := ledger.NewMockClient()
	nav, g := newTestNavigator(mock)
	tx := spendingTx()

	for _, idx := range []int{-1, len(tx.Inputs)} {
		_, err := nav.ResolveInput(context.Background(), tx, idx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	for _, idx := range []int{-1, len(tx.Outputs)} {
		_, err := nav.ResolveOutput(context.Background(), tx, idx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	assert.Equal(t, 0, mock.TotalCalls())
	assert.True(t, g.IsEmpty())
}

func TestResolveOutput_Unspent(t *testing.T) {
	tests := []struct {
		name      string
		outspends []*ledger.OutSpend
		index     int
	}{
		{name: "explicitly unspent", outspends: []*ledger.OutSpend{{Spent: true, TxID: idB}, {Spent: false}}, index: 1},
		{name: "null entry", outspends: []*ledger.OutSpend{{Spent: true, TxID: idB}, nil}, index: 1},
		{name: "list shorter than outputs", outspends: []*ledger.OutSpend{{Spent: true, TxID: idB}}, index: 1},
		{name: "spent without spender id", outspends: []*ledger.OutSpend{{Spent: true}, {}}, index: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := ledger.NewMockClient()
			mock.SetOutspends(idA, tt.outspends)
			nav, g := newTestNavigator(mock)

			res, err := nav.ResolveOutput(context.Background(), coinbaseTx(), tt.index)
			require.NoError(t, err)
			assert.Equal(t, OutputUnspent, res.Outcome)
			assert.True(t, g.IsEmpty(), "unspent output must not mutate the graph")
			assert.Equal(t, 0, mock.Calls("GetTransaction"))
		})
	}
}

func TestResolve_FetchFailures(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("previous transaction", func(t *testing.T) {
		mock := ledger.NewMockClient()
		mock.SetError("GetTransaction", idA, boom)
		nav, g := newTestNavigator(mock)

		_, err := nav.ResolveInput(context.Background(), spendingTx(), 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, mock.Calls("GetTransaction"), "no retries")
		assert.True(t, g.IsEmpty())
	})

	t.Run("previous transaction not found", func(t *testing.T) {
		mock := ledger.NewMockClient()
		nav, _ := newTestNavigator(mock)

		_, err := nav.ResolveInput(context.Background(), spendingTx(), 0)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("outspends", func(t *testing.T) {
		mock := ledger.NewMockClient()
		mock.SetError("GetOutspends", idA, boom)
		nav, g := newTestNavigator(mock)

		_, err := nav.ResolveOutput(context.Background(), coinbaseTx(), 0)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.Equal(t, 1, mock.Calls("GetOutspends"))
		assert.Equal(t, 0, mock.Calls("GetTransaction"))
		assert.True(t, g.IsEmpty())
	})

	t.Run("spending transaction", func(t *testing.T) {
		mock := ledger.NewMockClient()
		mock.SetOutspends(idA, []*ledger.OutSpend{{Spent: true, TxID: idB}, {}})
		mock.SetError("GetTransaction", idB, boom)
		nav, g := newTestNavigator(mock)

		_, err := nav.ResolveOutput(context.Background(), coinbaseTx(), 0)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.ErrorIs(t, err, boom)
		assert.True(t, g.IsEmpty())
	})
}

func TestResolve_RevisitOverwrites(t *testing.T) {
	ctx := context.Background()
	mock := ledger.NewMockClient()
	mock.AddTransaction(coinbaseTx())
	mock.AddTransaction(spendingTx())
	mock.SetOutspends(idA, []*ledger.OutSpend{{Spent: true, TxID: idB}, {}})

	nav, g := newTestNavigator(mock)
	require.NoError(t, nav.Seed(spendingTx(), "initial query"))

	res, err := nav.ResolveInput(ctx, spendingTx(), 0)
	require.NoError(t, err)
	res, err = nav.ResolveOutput(ctx, res.Tx, 0)
	require.NoError(t, err)
	assert.Equal(t, idB, res.Tx.TxID)

	assert.Equal(t, 2, g.Len())
	entry, _ := g.Get(idB)
	assert.Equal(t, idA, entry.From)
	assert.Equal(t, "followed output 1 of "+idA, entry.Provenance)
	first, _ := g.At(0)
	assert.Equal(t, idB, first.TxID, "revisit keeps the original position")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "moved", Moved.String())
	assert.Equal(t, "coinbase_input", CoinbaseInput.String())
	assert.Equal(t, "output_unspent", OutputUnspent.String())
	assert.Equal(t, "no_inputs", NoInputs.String())
	assert.Equal(t, "no_outputs", NoOutputs.String())
	assert.False(t, Moved.Terminal())
}
