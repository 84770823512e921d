package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an in-memory implementation of Client for testing.
// Unknown ids return ErrNotFound; configured errors take precedence.
type MockClient struct {
	mu           sync.RWMutex
	summaries    map[string]*AddressSummary
	addressTxs   map[string][]*Transaction
	transactions map[string]*Transaction
	outspends    map[string][]*OutSpend
	errors       map[string]error
	calls        map[string]int
}

// NewMockClient creates an empty mock ledger.
func NewMockClient() *MockClient {
	return &MockClient{
		summaries:    make(map[string]*AddressSummary),
		addressTxs:   make(map[string][]*Transaction),
		transactions: make(map[string]*Transaction),
		outspends:    make(map[string][]*OutSpend),
		errors:       make(map[string]error),
		calls:        make(map[string]int),
	}
}

// AddTransaction makes tx fetchable by id.
func (m *MockClient) AddTransaction(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.TxID] = tx
}

// SetOutspends sets the outspend list returned for txid.
func (m *MockClient) SetOutspends(txid string, outspends []*OutSpend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outspends[txid] = outspends
}

// SetAddress sets the summary and transaction list returned for address.
func (m *MockClient) SetAddress(summary *AddressSummary, txs []*Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.Address] = summary
	m.addressTxs[summary.Address] = txs
	for _, tx := range txs {
		m.transactions[tx.TxID] = tx
	}
}

// SetError makes every call of method for key fail with err. Method is one
// of the Client method names; key is the address or txid.
func (m *MockClient) SetError(method, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method+"/"+key] = err
}

// Calls returns how many times method was called.
func (m *MockClient) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (m *MockClient) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *MockClient) begin(method, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.errors[method+"/"+key]
}

// GetAddressSummary returns the configured summary.
func (m *MockClient) GetAddressSummary(ctx context.Context, address string) (*AddressSummary, error) {
	if err := m.begin("GetAddressSummary", address); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[address]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", address, ErrNotFound)
	}
	return s, nil
}

// GetAddressTransactions returns the configured transaction list.
func (m *MockClient) GetAddressTransactions(ctx context.Context, address string) ([]*Transaction, error) {
	if err := m.begin("GetAddressTransactions", address); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	txs, ok := m.addressTxs[address]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", address, ErrNotFound)
	}
	return txs, nil
}

// GetTransaction returns the configured transaction.
func (m *MockClient) GetTransaction(ctx context.Context, txid string) (*Transaction, error) {
	if err := m.begin("GetTransaction", txid); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txid, ErrNotFound)
	}
	return tx, nil
}

// GetOutspends returns the configured outspends, or an all-unspent list
// sized to the transaction's outputs when none were configured.
func (m *MockClient) GetOutspends(ctx context.Context, txid string) ([]*OutSpend, error) {
	if err := m.begin("GetOutspends", txid); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if os, ok := m.outspends[txid]; ok {
		return os, nil
	}
	tx, ok := m.transactions[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txid, ErrNotFound)
	}
	out := make([]*OutSpend, len(tx.Outputs))
	for i := range out {
		out[i] = &OutSpend{}
	}
	return out, nil
}
