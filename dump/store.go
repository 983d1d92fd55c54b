package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a named dump does not exist.
//
// Implementations return errors satisfying errors.Is(err, ErrNotFound); the
// default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store archives encoded dumps by name. Names are flat: they must not
// contain path separators.
type Store interface {
	// Put writes a complete dump, replacing any previous dump of that name.
	Put(ctx context.Context, name string, data []byte) error

	// Open opens a dump for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns the names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a dump. Deleting a missing dump is not an error.
	Delete(ctx context.Context, name string) error
}

// DirStore keeps dumps as files under one directory. Put stages into a
// temporary file and renames, so readers never observe a partial dump.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir. The directory is created on
// first Put.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Put implements Store.
func (s *DirStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("dump: create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("dump: create temp file: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("dump: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("dump: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dump: close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.root, name)); err != nil {
		return fmt.Errorf("dump: rename %s: %w", name, err)
	}
	tmp = nil
	return nil
}

// Open implements Store. The returned error satisfies
// errors.Is(err, ErrNotFound) when no such dump exists.
func (s *DirStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.root, name))
}

// List implements Store. Staged temporary files are excluded.
func (s *DirStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dump: list store dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.Contains(name, ".tmp-") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (s *DirStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore keeps dumps in process memory. It is intended for tests.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	dumps map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dumps: make(map[string][]byte),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	m.dumps[name] = copied
	return nil
}

// Open implements Store.
func (m *MemoryStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.dumps[name]
	if !ok {
		return nil, fmt.Errorf("dump: open %s: %w", name, ErrNotFound)
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	return io.NopCloser(bytes.NewReader(copied)), nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.dumps {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.dumps, name)
	return nil
}
