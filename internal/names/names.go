// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package names fills protein and gene names for rows that already carry
// an accession. Lookups run on a bounded pool of workers sharing one
// in-memory cache; results are applied and the cache is snapshotted at
// every checkpoint.
package names

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pubenrich/internal/cache"
	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/enrich"
	"github.com/pdiddy/pubenrich/internal/uniprot"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const (
	defaultWorkers            = 10
	defaultCheckpointInterval = 1000
)

// Stats holds counts from one run.
type Stats struct {
	Rows      int
	CacheHits int64
	Fetched   int64
	NotFound  int64
	Errors    int64
	Updated   int64
}

type counters struct {
	hits, fetched, notFound, errors atomic.Int64
}

// Enricher is the parallel names pass.
type Enricher struct {
	DB      *dataset.DB
	Entries *uniprot.EntryClient
	Cache   *cache.Memory[types.AccessionDetail]

	Workers            int
	CheckpointInterval int

	// CachePath is loaded before the run and rewritten at each checkpoint.
	// Empty disables persistence.
	CachePath string

	Out io.Writer
	Log zerolog.Logger
	Now func() time.Time
}

// NewEnricher wires the pass from its configuration.
func NewEnricher(cfg types.NamesConfig, db *dataset.DB, entries *uniprot.EntryClient) *Enricher {
	return &Enricher{
		DB:                 db,
		Entries:            entries,
		Cache:              cache.NewMemory[types.AccessionDetail](),
		Workers:            cfg.Workers,
		CheckpointInterval: cfg.CheckpointInterval,
		CachePath:          cfg.CachePath,
		Out:                io.Discard,
		Log:                zerolog.Nop(),
		Now:                time.Now,
	}
}

// Run looks up names for every row missing them. Lookup failures are
// counted and leave the row for the next run; only cancellation and
// storage errors end the run early.
func (e *Enricher) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	var c counters
	e.defaults()

	if err := e.DB.EnsureNameColumns(ctx); err != nil {
		return stats, err
	}
	if e.CachePath != "" {
		if err := cache.LoadSnapshot(e.CachePath, e.Cache); err != nil {
			return stats, err
		}
		e.Log.Info().Int("entries", e.Cache.Len()).Str("path", e.CachePath).Msg("loaded name cache")
	}

	rows, err := e.DB.RowsMissingNames(ctx)
	if err != nil {
		return stats, err
	}
	stats.Rows = len(rows)
	progress := enrich.NewProgress(e.Out, len(rows), e.Now)
	progress.Unit = "row"

	done := 0
	for start := 0; start < len(rows); start += e.CheckpointInterval {
		chunk := rows[start:min(start+e.CheckpointInterval, len(rows))]
		updates, err := e.lookupChunk(ctx, chunk, &c)
		if err != nil {
			return e.finish(stats, &c), err
		}

		n, err := e.DB.ApplyNames(ctx, updates)
		if err != nil {
			return e.finish(stats, &c), err
		}
		stats.Updated += n
		if err := e.checkpoint(); err != nil {
			return e.finish(stats, &c), err
		}

		done += len(chunk)
		progress.Report(done, int(stats.Updated), true)
	}

	if len(rows) == 0 {
		progress.Report(0, 0, true)
	}
	return e.finish(stats, &c), nil
}

// lookupChunk resolves one checkpoint's rows on the worker pool. Results
// are written to distinct slice slots, so only the cache and counters are
// shared.
func (e *Enricher) lookupChunk(ctx context.Context, chunk []dataset.NameRow, c *counters) ([]dataset.NameUpdate, error) {
	updates := make([]dataset.NameUpdate, len(chunk))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)

	for i, row := range chunk {
		i, row := i, row
		g.Go(func() error {
			d, err := e.resolve(gctx, dataset.FirstAccession(row.Accession), c)
			if err != nil {
				return err
			}
			updates[i] = dataset.NameUpdate{
				RowID:       row.RowID,
				ProteinID:   d.CanonicalID,
				ProteinName: d.ProteinName,
				GeneName:    d.GeneSymbol,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return updates, nil
}

// resolve returns the cached detail for acc or looks it up. Unknown
// accessions are cached as empty; other failures are not cached.
func (e *Enricher) resolve(ctx context.Context, acc string, c *counters) (types.AccessionDetail, error) {
	if d, ok := e.Cache.Get(acc); ok {
		c.hits.Add(1)
		return d, nil
	}

	d, err := e.Entries.Lookup(ctx, acc)
	switch {
	case err == nil:
		c.fetched.Add(1)
		e.Cache.Put(acc, d)
	case errors.Is(err, uniprot.ErrNotFound):
		c.notFound.Add(1)
		e.Cache.Put(acc, types.AccessionDetail{})
	case ctx.Err() != nil:
		return types.AccessionDetail{}, ctx.Err()
	default:
		c.errors.Add(1)
		e.Log.Warn().Err(err).Str("accession", acc).Msg("name lookup failed")
	}
	return d, nil
}

func (e *Enricher) checkpoint() error {
	if e.CachePath == "" {
		return nil
	}
	if err := cache.SaveSnapshot(e.CachePath, e.Cache); err != nil {
		return fmt.Errorf("checkpointing name cache: %w", err)
	}
	return nil
}

func (e *Enricher) finish(s Stats, c *counters) Stats {
	s.CacheHits = c.hits.Load()
	s.Fetched = c.fetched.Load()
	s.NotFound = c.notFound.Load()
	s.Errors = c.errors.Load()
	return s
}

func (e *Enricher) defaults() {
	if e.Workers <= 0 {
		e.Workers = defaultWorkers
	}
	if e.CheckpointInterval <= 0 {
		e.CheckpointInterval = defaultCheckpointInterval
	}
	if e.Cache == nil {
		e.Cache = cache.NewMemory[types.AccessionDetail]()
	}
	if e.Out == nil {
		e.Out = io.Discard
	}
	if e.Now == nil {
		e.Now = time.Now
	}
}
