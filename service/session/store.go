// Package session persists transaction graphs under operator-chosen or
// generated handles so an exploration can be resumed later.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/brojonat/chaintrail/service/graph"
	"github.com/lightningnetwork/lnd/clock"
)

var (
	// ErrWriteFailed is returned when a dump cannot be fully written.
	ErrWriteFailed = errors.New("session write failed")

	// ErrNotFound is returned when a handle does not resolve to stored data.
	ErrNotFound = errors.New("session not found")

	// ErrDecodeFailed is returned when stored data is not a valid graph.
	ErrDecodeFailed = errors.New("session decode failed")
)

// Store saves and restores whole graphs.
type Store interface {
	// Dump persists g. An empty handle asks the store to generate one.
	// The handle that can be passed to Load is returned.
	Dump(ctx context.Context, g *graph.Graph, handle string) (string, error)

	// Load returns a new graph holding exactly the dumped entries.
	Load(ctx context.Context, handle string) (*graph.Graph, error)

	// List returns the handles currently stored, sorted.
	List(ctx context.Context) ([]string, error)

	// Backend names the storage kind, used as a metrics label.
	Backend() string

	Close() error
}

// handleNamer generates timestamped handles and avoids collisions with
// handles that already exist.
type handleNamer struct {
	clock  clock.Clock
	prefix string
	suffix string
}

func (n handleNamer) next(exists func(string) bool) string {
	base := fmt.Sprintf("%s%d", n.prefix, n.clock.Now().Unix())
	handle := base + n.suffix
	for i := 2; exists(handle); i++ {
		handle = fmt.Sprintf("%s_%d%s", base, i, n.suffix)
	}
	return handle
}
