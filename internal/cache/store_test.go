// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubenrich/pkg/types"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "enrich.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestGeneMappings_PartialHits(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutGeneMappings(ctx, map[string][]string{
		"123": {"P2", "P1"},
		"456": {},
	}))

	got, err := s.GeneMappings(ctx, []string{"123", "456", "789", "123", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"123": {"P1", "P2"},
		"456": {},
	}, got, "a cached empty mapping is distinct from a miss")
}

func TestGeneMappings_Upsert(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutGeneMappings(ctx, map[string][]string{"1": {"A"}}))
	require.NoError(t, s.PutGeneMappings(ctx, map[string][]string{"1": {"B"}}))

	got, err := s.GeneMappings(ctx, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got["1"])
}

func TestGeneMappings_ManyKeysChunked(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	m := map[string][]string{}
	var keys []string
	for i := 0; i < maxVars*2+7; i++ {
		k := fmt.Sprint(i)
		m[k] = []string{"P" + k}
		keys = append(keys, k)
	}
	require.NoError(t, s.PutGeneMappings(ctx, m))

	got, err := s.GeneMappings(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, got, len(keys))
}

func TestDetails_RoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	want := map[string]types.AccessionDetail{
		"P12345": {CanonicalID: "GENE_HUMAN", ProteinName: "Example Protein", GeneSymbol: "GENE1"},
		"Q00000": {},
	}
	require.NoError(t, s.PutDetails(ctx, want))

	got, err := s.Details(ctx, []string{"P12345", "Q00000", "MISSING"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBiblio_RoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	fetched := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, s.PutBiblio(ctx, map[string]types.BiblioMetadata{
		"111": {PublicationDate: "2019 Mar 15", Year: 2019, Month: "Mar", Journal: "Nature", Authors: "Smith J", FetchedAt: fetched},
		"222": {},
	}))

	got, err := s.Biblio(ctx, []string{"111", "222"})
	require.NoError(t, err)
	assert.Equal(t, types.BiblioMetadata{
		PublicationDate: "2019 Mar 15", Year: 2019, Month: "Mar", Journal: "Nature", Authors: "Smith J", FetchedAt: fetched,
	}, got["111"])
	assert.Zero(t, got["222"].Year)
	assert.False(t, got["222"].FetchedAt.IsZero(), "zero fetch time is stamped on write")
}

func TestOnLookupObservesHitsAndMisses(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutDetails(ctx, map[string]types.AccessionDetail{"A": {}}))

	var hits, misses int
	s.OnLookup = func(ns Namespace, h, m int) {
		assert.Equal(t, Details, ns)
		hits += h
		misses += m
	}
	_, err := s.Details(ctx, []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestStatsClearExport(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutGeneMappings(ctx, map[string][]string{"1": {"P1"}, "2": {}}))
	require.NoError(t, s.PutDetails(ctx, map[string]types.AccessionDetail{"P1": {CanonicalID: "X_HUMAN"}}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Genes: 2, Details: 1, Biblio: 0, Symbols: 0}, st)

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, &buf))
	var dump Dump
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &dump))
	assert.Equal(t, map[string][]string{"1": {"P1"}, "2": {}}, dump.Genes)
	assert.Equal(t, "X_HUMAN", dump.Details["P1"].CanonicalID)

	n, err := s.Clear(ctx, Genes)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Survives reopen.
	require.NoError(t, s.Close())
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	st, err = s2.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Genes: 0, Details: 1, Biblio: 0, Symbols: 0}, st)
}

func TestSymbolHits(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSymbolHits(ctx, map[string]string{"AKT1": "P31749", "NOSUCH": ""}))
	got, err := s.SymbolHits(ctx, []string{"AKT1", "NOSUCH", "TP53"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AKT1": "P31749", "NOSUCH": ""}, got)

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, &buf))
	var dump Dump
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &dump))
	assert.Equal(t, map[string]string{"AKT1": "P31749", "NOSUCH": ""}, dump.Symbols)

	ns, err := ParseNamespace("symbols")
	require.NoError(t, err)
	assert.Equal(t, Symbols, ns)
}

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace("uniprot_details")
	require.NoError(t, err)
	assert.Equal(t, Details, ns)

	ns, err = ParseNamespace("biblio")
	require.NoError(t, err)
	assert.Equal(t, Biblio, ns)

	_, err = ParseNamespace("other")
	assert.Error(t, err)
}
