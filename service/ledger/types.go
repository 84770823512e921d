package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// Client is the ledger-query contract the explorer and navigator consume.
// The Esplora HTTP client in package client is the production implementation.
type Client interface {
	GetAddressSummary(ctx context.Context, address string) (*AddressSummary, error)
	GetAddressTransactions(ctx context.Context, address string) ([]*Transaction, error)
	GetTransaction(ctx context.Context, txid string) (*Transaction, error)
	GetOutspends(ctx context.Context, txid string) ([]*OutSpend, error)
}

// TxStatus is the confirmation state of a transaction.
type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

// Input spends an output of a previous transaction. PrevTxID is empty for
// coinbase inputs.
type Input struct {
	PrevTxID     string   `json:"txid,omitempty"`
	PrevVout     uint32   `json:"vout"`
	PrevOut      *Output  `json:"prevout,omitempty"`
	ScriptSig    string   `json:"scriptsig,omitempty"`
	ScriptSigAsm string   `json:"scriptsig_asm,omitempty"`
	Witness      []string `json:"witness,omitempty"`
	Sequence     uint32   `json:"sequence"`
	Coinbase     bool     `json:"is_coinbase,omitempty"`
}

// IsCoinbase reports whether the input has no previous transaction to follow.
// Esplora reports coinbase inputs with an all-zero txid, so that counts too.
func (in Input) IsCoinbase() bool {
	return in.Coinbase || in.PrevTxID == "" || in.PrevTxID == zeroTxID
}

// Output assigns a value in satoshis to an address. Address is empty for
// scripts Esplora could not map to an address.
type Output struct {
	ScriptPubKey     string `json:"scriptpubkey,omitempty"`
	ScriptPubKeyAsm  string `json:"scriptpubkey_asm,omitempty"`
	ScriptPubKeyType string `json:"scriptpubkey_type,omitempty"`
	Address          string `json:"scriptpubkey_address,omitempty"`
	Value            int64  `json:"value"`
}

// Transaction is a ledger transaction record as returned by Esplora. The
// typed fields are the ones the tool reads. Raw keeps the record exactly as
// it was decoded so fields this type does not list survive a dump and
// remain visible to jq.
type Transaction struct {
	TxID     string   `json:"txid"`
	Version  int32    `json:"version,omitempty"`
	LockTime uint32   `json:"locktime,omitempty"`
	Size     int      `json:"size,omitempty"`
	Weight   int      `json:"weight,omitempty"`
	Fee      int64    `json:"fee,omitempty"`
	Inputs   []Input  `json:"vin"`
	Outputs  []Output `json:"vout"`
	Status   TxStatus `json:"status"`

	Raw json.RawMessage `json:"-"`
}

// transactionFields has Transaction's layout without its JSON methods.
type transactionFields Transaction

// UnmarshalJSON decodes the typed fields and keeps a compact copy of data.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var fields transactionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw bytes.Buffer
	if err := json.Compact(&raw, data); err != nil {
		return err
	}
	*t = Transaction(fields)
	t.Raw = raw.Bytes()
	return nil
}

// MarshalJSON writes Raw when the record was decoded from JSON, and the
// typed fields otherwise.
func (t Transaction) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	return json.Marshal(transactionFields(t))
}

// ConfirmedAt returns the block time of a confirmed transaction.
func (t *Transaction) ConfirmedAt() (time.Time, bool) {
	if !t.Status.Confirmed || t.Status.BlockTime == 0 {
		return time.Time{}, false
	}
	return time.Unix(t.Status.BlockTime, 0).UTC(), true
}

// OutSpend is the spend status of one output.
type OutSpend struct {
	Spent  bool      `json:"spent"`
	TxID   string    `json:"txid,omitempty"`
	Vin    uint32    `json:"vin,omitempty"`
	Status *TxStatus `json:"status,omitempty"`
}

// AddressStats are the funded/spent totals Esplora keeps per address.
type AddressStats struct {
	FundedTxoCount int64 `json:"funded_txo_count"`
	FundedTxoSum   int64 `json:"funded_txo_sum"`
	SpentTxoCount  int64 `json:"spent_txo_count"`
	SpentTxoSum    int64 `json:"spent_txo_sum"`
	TxCount        int64 `json:"tx_count"`
}

// AddressSummary is the response of the address endpoint.
type AddressSummary struct {
	Address      string       `json:"address"`
	ChainStats   AddressStats `json:"chain_stats"`
	MempoolStats AddressStats `json:"mempool_stats"`
}

// Balance is the confirmed balance in satoshis.
func (s *AddressSummary) Balance() int64 {
	return s.ChainStats.FundedTxoSum - s.ChainStats.SpentTxoSum
}
