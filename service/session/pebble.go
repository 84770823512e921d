package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/chaintrail/service/graph"
	"github.com/cockroachdb/pebble"
	"github.com/lightningnetwork/lnd/clock"
)

// Key prefixes.
const (
	prefixHandle = "hdl:"
	prefixEntry  = "ent:"
)

type handleMeta struct {
	Entries int       `json:"entries"`
	SavedAt time.Time `json:"saved_at"`
}

type storedEntry struct {
	TxID string `json:"txid"`
	persistedEntry
}

// PebbleStore keeps every session in a single pebble database. Each entry is
// stored under its session handle and position, and a dump replaces the
// whole session in one batch.
type PebbleStore struct {
	db    *pebble.DB
	clock clock.Clock
	namer handleNamer
	mu    sync.Mutex
}

// OpenPebbleStore opens or creates the database at path.
func OpenPebbleStore(path string, clk clock.Clock) (*PebbleStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &PebbleStore{
		db:    db,
		clock: clk,
		namer: handleNamer{clock: clk, prefix: "session_"},
	}, nil
}

func (s *PebbleStore) Backend() string { return "pebble" }

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func handleKey(handle string) []byte {
	return []byte(prefixHandle + handle)
}

func entryPrefix(handle string) []byte {
	return []byte(prefixEntry + handle + "\x00")
}

func entryKey(handle string, pos int) []byte {
	return append(entryPrefix(handle), []byte(fmt.Sprintf("%08d", pos))...)
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func validHandle(handle string) error {
	if strings.ContainsRune(handle, 0) {
		return errors.New("handle contains a NUL byte")
	}
	return nil
}

func (s *PebbleStore) exists(handle string) bool {
	_, closer, err := s.db.Get(handleKey(handle))
	if err != nil {
		return false
	}
	closer.Close()
	return true
}

func (s *PebbleStore) Dump(ctx context.Context, g *graph.Graph, handle string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if handle == "" {
		handle = s.namer.next(s.exists)
	}
	if err := validHandle(handle); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	entries := g.All()
	batch := s.db.NewBatch()
	defer batch.Close()

	prefix := entryPrefix(handle)
	if err := batch.DeleteRange(prefix, prefixUpperBound(prefix), nil); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	for i, e := range entries {
		value, err := json.Marshal(storedEntry{TxID: e.TxID, persistedEntry: toPersisted(e)})
		if err != nil {
			return "", fmt.Errorf("%w: failed to marshal entry %s: %w", ErrWriteFailed, e.TxID, err)
		}
		if err := batch.Set(entryKey(handle, i), value, nil); err != nil {
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}

	meta, err := json.Marshal(handleMeta{Entries: len(entries), SavedAt: s.clock.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := batch.Set(handleKey(handle), meta, nil); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return handle, nil
}

func (s *PebbleStore) Load(ctx context.Context, handle string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handle == "" || validHandle(handle) != nil {
		return nil, fmt.Errorf("%w: invalid handle %q", ErrNotFound, handle)
	}

	raw, closer, err := s.db.Get(handleKey(handle))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, handle)
		}
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var meta handleMeta
	err = json.Unmarshal(raw, &meta)
	closer.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: session metadata: %w", ErrDecodeFailed, err)
	}

	prefix := entryPrefix(handle)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	entries := make([]graph.Entry, 0, meta.Entries)
	for iter.First(); iter.Valid(); iter.Next() {
		var se storedEntry
		if err := json.Unmarshal(iter.Value(), &se); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		e, err := fromPersisted(se.TxID, se.persistedEntry)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate session %s: %w", handle, err)
	}
	if len(entries) != meta.Entries {
		return nil, fmt.Errorf("%w: expected %d entries, found %d", ErrDecodeFailed, meta.Entries, len(entries))
	}
	return graph.FromEntries(entries), nil
}

func (s *PebbleStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(prefixHandle)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var handles []string
	for iter.First(); iter.Valid(); iter.Next() {
		handles = append(handles, strings.TrimPrefix(string(iter.Key()), prefixHandle))
	}
	return handles, iter.Error()
}
