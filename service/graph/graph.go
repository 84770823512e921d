// Package graph holds the set of transactions visited during one exploration
// session and how each was reached.
package graph

import (
	"errors"
	"sync"

	"github.com/brojonat/chaintrail/service/ledger"
)

// ErrMissingTxID is returned when recording a transaction without an id.
var ErrMissingTxID = errors.New("transaction has no id")

// Entry is one visited transaction.
type Entry struct {
	TxID string
	Tx   *ledger.Transaction
	// From is the id of the transaction the operator navigated from. It is
	// empty for session roots and may reference an id outside the graph after
	// a reload.
	From string
	// Provenance is a human-readable note on how the transaction was reached.
	Provenance string
}

// IsRoot reports whether the entry was reached by a direct query.
func (e Entry) IsRoot() bool {
	return e.From == ""
}

// Graph is an insertion-ordered map from transaction id to Entry. Each
// session owns its own Graph; methods are safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Entry
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{entries: make(map[string]Entry)}
}

// FromEntries builds a graph in the given order. A repeated id overwrites
// the earlier entry but keeps its position.
func FromEntries(entries []Entry) *Graph {
	g := New()
	for _, e := range entries {
		g.put(e)
	}
	return g
}

// Record inserts or overwrites the entry for tx. Overwriting keeps the
// original position in the iteration order.
func (g *Graph) Record(tx *ledger.Transaction, from, provenance string) error {
	if tx == nil || tx.TxID == "" {
		return ErrMissingTxID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.put(Entry{TxID: tx.TxID, Tx: tx, From: from, Provenance: provenance})
	return nil
}

// Get returns the entry for txid.
func (g *Graph) Get(txid string) (Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entries[txid]
	return e, ok
}

// At returns the i-th entry in iteration order.
func (g *Graph) At(i int) (Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if i < 0 || i >= len(g.order) {
		return Entry{}, false
	}
	return g.entries[g.order[i]], true
}

// All returns every entry in insertion order.
func (g *Graph) All() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entry, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entries[id])
	}
	return out
}

// Replace swaps the whole content of g for other's. It is used when a
// session is loaded.
func (g *Graph) Replace(other *Graph) {
	entries := other.All()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.order = nil
	g.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		g.put(e)
	}
}

// Len returns the number of entries.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.order)
}

// IsEmpty reports whether nothing has been visited.
func (g *Graph) IsEmpty() bool {
	return g.Len() == 0
}

// put must be called with mu held or on a graph not yet shared.
func (g *Graph) put(e Entry) {
	if _, exists := g.entries[e.TxID]; !exists {
		g.order = append(g.order, e.TxID)
	}
	g.entries[e.TxID] = e
}
