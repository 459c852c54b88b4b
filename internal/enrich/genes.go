// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pubenrich/internal/cache"
	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/uniprot"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const defaultGeneNameBatch = 50

// GeneNamesSummary holds counts from one GeneNames run.
type GeneNamesSummary struct {
	// Total is the number of distinct gene names on rows without an accession.
	Total     int
	Processed int
	CacheHits int
	Searched  int
	Found     int
	Updated   int

	// FailedBatches counts batches whose search failed; their names stay
	// uncached for the next run.
	FailedBatches int
}

// GeneNames fills empty accessions from the row's own gene symbol.
type GeneNames struct {
	DB       *dataset.DB
	Cache    *cache.Store
	Searcher *uniprot.GeneSearcher

	Batch int

	Out io.Writer
	Log zerolog.Logger
	Now func() time.Time
}

// NewGeneNames wires the pass from its configuration.
func NewGeneNames(cfg types.GenesConfig, db *dataset.DB, store *cache.Store, searcher *uniprot.GeneSearcher) *GeneNames {
	return &GeneNames{
		DB:       db,
		Cache:    store,
		Searcher: searcher,
		Batch:    cfg.Batch,
		Out:      io.Discard,
		Log:      zerolog.Nop(),
		Now:      time.Now,
	}
}

// Run resolves every gene name on a row whose accession is empty and fills
// the accession, Protein_ID and Protein_Name fields that are still empty.
func (g *GeneNames) Run(ctx context.Context) (GeneNamesSummary, error) {
	var s GeneNamesSummary
	if g.Batch <= 0 {
		g.Batch = defaultGeneNameBatch
	}
	if g.Out == nil {
		g.Out = io.Discard
	}
	if g.Now == nil {
		g.Now = time.Now
	}

	if err := g.DB.EnsureGeneNameColumns(ctx); err != nil {
		return s, err
	}
	names, err := g.DB.GeneNamesMissingAccession(ctx)
	if err != nil {
		return s, err
	}
	s.Total = len(names)
	progress := NewProgress(g.Out, s.Total, g.Now)
	progress.Unit = "gene"
	g.Log.Info().Int("pending", s.Total).Msg("starting gene-name pass")

	for i := 0; i < len(names); i += g.Batch {
		batch := names[i:min(i+g.Batch, len(names))]

		updates, err := g.resolve(ctx, batch, &s)
		if err != nil {
			return s, err
		}
		n, err := g.DB.ApplyGeneNameUpdates(ctx, updates)
		if err != nil {
			return s, err
		}
		s.Updated += int(n)
		s.Processed += len(batch)
		progress.Report(s.Processed, s.Updated, false)
	}

	progress.Report(s.Processed, s.Updated, true)
	return s, nil
}

// resolve returns updates for the names of one batch that map to an entry,
// searching and caching the names the cache does not know.
func (g *GeneNames) resolve(ctx context.Context, names []string, s *GeneNamesSummary) ([]dataset.GeneNameUpdate, error) {
	hits, err := g.Cache.SymbolHits(ctx, names)
	if err != nil {
		return nil, err
	}
	s.CacheHits += len(hits)

	var missing []string
	for _, name := range names {
		if _, ok := hits[name]; !ok {
			missing = append(missing, name)
		}
	}

	fetched := map[string]types.AccessionDetail{}
	if len(missing) > 0 {
		s.Searched += len(missing)
		found, searchErr := g.Searcher.Search(ctx, missing)
		if searchErr != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		settled := make(map[string]string, len(found))
		for name, hit := range found {
			settled[name] = hit.Accession
			hits[name] = hit.Accession
			if hit.Accession != "" {
				fetched[hit.Accession] = hit.Detail
			}
		}
		if err := g.Cache.PutSymbolHits(ctx, settled); err != nil {
			return nil, err
		}
		if err := g.Cache.PutDetails(ctx, fetched); err != nil {
			return nil, err
		}
		if searchErr != nil {
			s.FailedBatches++
			g.Log.Warn().Err(searchErr).Str("first", missing[0]).Int("size", len(missing)).Msg("gene-name search failed, skipping")
		}
	}

	var accs []string
	for _, acc := range hits {
		if _, ok := fetched[acc]; acc != "" && !ok {
			accs = append(accs, acc)
		}
	}
	details, err := g.Cache.Details(ctx, accs)
	if err != nil {
		return nil, err
	}
	for acc, d := range fetched {
		details[acc] = d
	}

	var updates []dataset.GeneNameUpdate
	for _, name := range names {
		acc := hits[name]
		if acc == "" {
			continue
		}
		s.Found++
		d := details[acc]
		updates = append(updates, dataset.GeneNameUpdate{
			GeneName:    name,
			Accession:   acc,
			ProteinID:   d.CanonicalID,
			ProteinName: d.ProteinName,
		})
	}
	return updates, nil
}
