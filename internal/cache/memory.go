// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/pgzip"
)

// Memory is a lock-protected map shared by concurrent workers. Callers only
// see whole-batch operations, so no read-modify-write spans two calls.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMemory returns an empty cache.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{entries: make(map[string]V)}
}

// GetMany returns the cached values for keys that are present.
func (m *Memory[V]) GetMany(keys ...string) map[string]V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]V, len(keys))
	for _, k := range keys {
		if v, ok := m.entries[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Get returns one value and whether it was present.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// PutMany stores every entry of values.
func (m *Memory[V]) PutMany(values map[string]V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.entries, values)
}

// Put stores one value.
func (m *Memory[V]) Put(key string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = v
}

// Len returns the number of entries.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Snapshot returns a copy of all entries. The lock is held only for the copy.
func (m *Memory[V]) Snapshot() map[string]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries)
}

// LoadSnapshot reads a JSON snapshot written by SaveSnapshot into m. A
// missing file leaves m unchanged. Paths ending in ".gz" are gzip-compressed.
func LoadSnapshot[V any](path string, m *Memory[V]) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening cache snapshot: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip(path) {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("reading compressed snapshot %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	values := make(map[string]V)
	if err := json.NewDecoder(r).Decode(&values); err != nil {
		return fmt.Errorf("parsing cache snapshot %s: %w", path, err)
	}
	m.PutMany(values)
	return nil
}

// SaveSnapshot writes m's entries to path through a temporary file and a
// rename, so readers never observe a partial snapshot.
func SaveSnapshot[V any](path string, m *Memory[V]) error {
	snap := m.Snapshot()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, path, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

func writeSnapshot[V any](f *os.File, path string, snap map[string]V) error {
	var w io.Writer = f
	var zw *pgzip.Writer
	if isGzip(path) {
		zw = pgzip.NewWriter(f)
		w = zw
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing snapshot: %w", err)
		}
	}
	return nil
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}
