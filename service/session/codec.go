package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/brojonat/chaintrail/service/graph"
	"github.com/brojonat/chaintrail/service/ledger"
)

// persistedEntry is the on-disk form of one graph entry. The field names
// match the dumps written by earlier releases of the tool, so old session
// files still load.
type persistedEntry struct {
	Data *ledger.Transaction `json:"data"`
	From *string             `json:"from"`
	Path string              `json:"path"`
}

func toPersisted(e graph.Entry) persistedEntry {
	pe := persistedEntry{Data: e.Tx, Path: e.Provenance}
	if e.From != "" {
		from := e.From
		pe.From = &from
	}
	return pe
}

func fromPersisted(txid string, pe persistedEntry) (graph.Entry, error) {
	if pe.Data == nil {
		return graph.Entry{}, fmt.Errorf("entry %s has no transaction data", txid)
	}
	if pe.Data.TxID == "" {
		pe.Data.TxID = txid
	}
	if pe.Data.TxID != txid {
		return graph.Entry{}, fmt.Errorf("entry %s holds transaction %s", txid, pe.Data.TxID)
	}
	e := graph.Entry{TxID: txid, Tx: pe.Data, Provenance: pe.Path}
	if pe.From != nil {
		e.From = *pe.From
	}
	return e, nil
}

// Encode writes g as a JSON object keyed by txid, in graph order.
func Encode(w io.Writer, g *graph.Graph) error {
	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, e := range g.All() {
		if i > 0 {
			compact.WriteByte(',')
		}
		key, err := json.Marshal(e.TxID)
		if err != nil {
			return err
		}
		val, err := json.Marshal(toPersisted(e))
		if err != nil {
			return fmt.Errorf("failed to marshal entry %s: %w", e.TxID, err)
		}
		compact.Write(key)
		compact.WriteByte(':')
		compact.Write(val)
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "    "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

// Decode reads a graph written by Encode, keeping the persisted key order.
// Errors wrap ErrDecodeFailed. The from chain is not validated.
func Decode(r io.Reader) (*graph.Graph, error) {
	entries, err := decodeEntries(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return graph.FromEntries(entries), nil
}

func decodeEntries(r io.Reader) ([]graph.Entry, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var entries []graph.Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		txid, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected a transaction id key, got %v", tok)
		}

		var pe persistedEntry
		if err := dec.Decode(&pe); err != nil {
			return nil, fmt.Errorf("entry %s: %w", txid, err)
		}
		e, err := fromPersisted(txid, pe)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after session object")
	}
	return entries, nil
}
