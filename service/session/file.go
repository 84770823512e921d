package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/brojonat/chaintrail/service/graph"
	"github.com/lightningnetwork/lnd/clock"
)

// FileStore keeps one JSON file per session in a directory.
type FileStore struct {
	dir   string
	namer handleNamer
	mu    sync.Mutex
}

// NewFileStore returns a store rooted at dir. A nil clock uses wall time.
func NewFileStore(dir string, clk clock.Clock) *FileStore {
	if dir == "" {
		dir = "."
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &FileStore{
		dir:   dir,
		namer: handleNamer{clock: clk, prefix: "chain_dump_", suffix: ".json"},
	}
}

func (s *FileStore) Backend() string { return "file" }

func (s *FileStore) Close() error { return nil }

// resolve maps a handle to a path. Bare names live in the store directory
// and get a .json extension when they have none, so List finds them;
// anything with a path separator is used as given.
func (s *FileStore) resolve(handle string) string {
	if filepath.IsAbs(handle) || strings.ContainsRune(handle, filepath.Separator) {
		return handle
	}
	if filepath.Ext(handle) == "" {
		handle += ".json"
	}
	return filepath.Join(s.dir, handle)
}

func (s *FileStore) Dump(ctx context.Context, g *graph.Graph, handle string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if handle == "" {
		handle = s.namer.next(func(h string) bool {
			_, err := os.Stat(s.resolve(h))
			return err == nil
		})
	}
	path := s.resolve(handle)

	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return path, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place, so an existing file is either fully replaced or untouched.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".chaintrail-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, handle string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handle == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrNotFound)
	}

	data, err := os.ReadFile(s.resolve(handle))
	if errors.Is(err, fs.ErrNotExist) && filepath.Base(handle) == handle {
		// Extensionless files written by hand load under their own name.
		data, err = os.ReadFile(filepath.Join(s.dir, handle))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return Decode(bytes.NewReader(data))
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var handles []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		handles = append(handles, e.Name())
	}
	sort.Strings(handles)
	return handles, nil
}
