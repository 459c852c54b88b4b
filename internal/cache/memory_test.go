// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubenrich/pkg/types"
)

func TestMemory_ConcurrentPuts(t *testing.T) {
	m := NewMemory[int]()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Put(fmt.Sprintf("%d-%d", w, i), i)
				m.GetMany(fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 800, m.Len())
}

func TestMemory_SnapshotIsCopy(t *testing.T) {
	m := NewMemory[string]()
	m.PutMany(map[string]string{"a": "1"})

	snap := m.Snapshot()
	m.Put("b", "2")

	assert.Len(t, snap, 1)
	assert.Equal(t, map[string]string{"a": "1"}, m.GetMany("a", "missing"))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	for _, name := range []string{"names.json", "names.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			m := NewMemory[types.AccessionDetail]()
			m.PutMany(map[string]types.AccessionDetail{
				"P12345":   {CanonicalID: "GENE_HUMAN", ProteinName: "Example Protein", GeneSymbol: "GENE1"},
				"NOTFOUND": {},
			})
			require.NoError(t, SaveSnapshot(path, m))

			loaded := NewMemory[types.AccessionDetail]()
			require.NoError(t, LoadSnapshot(path, loaded))
			assert.Equal(t, m.Snapshot(), loaded.Snapshot())

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary file is renamed away")
		})
	}
}

func TestLoadSnapshot_MissingFile(t *testing.T) {
	m := NewMemory[int]()
	require.NoError(t, LoadSnapshot(filepath.Join(t.TempDir(), "absent.json"), m))
	assert.Zero(t, m.Len())
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, LoadSnapshot(path, NewMemory[int]()))
}
