// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich drives the enrichment passes over the predictions table.
// Pipeline resolves annotation genes to protein accessions, names and
// symbols; Biblio fills journal, author and date fields. Both page through
// rows that still need work, consult the cache before any network call,
// and write only into fields that are still empty.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pubenrich/internal/cache"
	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/httputil"
	"github.com/pdiddy/pubenrich/internal/pubtator"
	"github.com/pdiddy/pubenrich/internal/uniprot"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const (
	defaultBatch        = 50
	defaultCommitEvery  = 200
	defaultGeneMapTable = "pubtator_gene_map"
)

// errDetailService marks a detail fetch that failed at the remote end.
var errDetailService = errors.New("detail service")

// Summary holds counts from one Pipeline run.
type Summary struct {
	// Total is the number of unresolved documents when the run started.
	Total int

	// Processed counts documents sent to the annotation service.
	Processed int

	// Documents counts documents the annotation service returned.
	Documents int

	// Staged counts documents with at least one value to write.
	Staged int

	// Updated counts dataset rows written.
	Updated int

	// FailedBatches counts batches skipped after a service error.
	FailedBatches int

	// Deferred counts documents left for a later run because a mapping job
	// for one of their genes timed out.
	Deferred int

	MappingJobs     int
	MappingFailures int
}

// Pipeline is the accession enrichment pass.
type Pipeline struct {
	DB          *dataset.DB
	Cache       *cache.Store
	Annotations *pubtator.Client
	Mapper      *uniprot.Mapper
	Details     *uniprot.DetailFetcher

	Batch       int
	CommitEvery int
	Limit       int

	// Delay is the pause after each annotation batch.
	Delay time.Duration
	Sleep httputil.SleepFunc

	StoreGeneMap bool
	GeneMapTable string

	Out io.Writer
	Log zerolog.Logger
	Now func() time.Time

	staged  []dataset.Update
	geneMap []dataset.GeneMapRow
}

// NewPipeline wires the pass from its configuration. The caller owns db
// and store.
func NewPipeline(cfg types.EnrichConfig, db *dataset.DB, store *cache.Store,
	annotations *pubtator.Client, mapper *uniprot.Mapper, details *uniprot.DetailFetcher) *Pipeline {
	return &Pipeline{
		DB:           db,
		Cache:        store,
		Annotations:  annotations,
		Mapper:       mapper,
		Details:      details,
		Batch:        cfg.Batch,
		CommitEvery:  cfg.CommitEvery,
		Limit:        cfg.Limit,
		Delay:        cfg.Delay,
		Sleep:        httputil.Sleep,
		StoreGeneMap: cfg.StoreGeneMap,
		GeneMapTable: cfg.GeneMapTable,
		Out:          io.Discard,
		Log:          zerolog.Nop(),
		Now:          time.Now,
	}
}

// Run processes every unresolved document, or the first Limit of them.
// Service failures skip the affected batch, which stays unresolved for the
// next run. Cache and dataset errors abort the run after committing what
// was staged.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var s Summary
	p.defaults()

	if err := p.DB.EnsureEnrichColumns(ctx); err != nil {
		return s, err
	}
	if p.StoreGeneMap {
		if err := p.DB.EnsureGeneMapTable(ctx, p.GeneMapTable); err != nil {
			return s, err
		}
	}

	total, err := p.DB.CountUnresolved(ctx)
	if err != nil {
		return s, err
	}
	if p.Limit > 0 && p.Limit < total {
		total = p.Limit
	}
	s.Total = total
	progress := NewProgress(p.Out, total, p.Now)
	p.Log.Info().Int("unresolved", total).Int("batch", p.Batch).Msg("starting enrichment")

	after := ""
	for {
		size := p.Batch
		if p.Limit > 0 {
			size = min(size, p.Limit-s.Processed)
		}
		if size <= 0 {
			break
		}
		batch, err := p.DB.NextUnresolved(ctx, after, size)
		if err != nil {
			return s, p.abort(ctx, &s, err)
		}
		if len(batch) == 0 {
			break
		}
		after = batch[len(batch)-1]

		if err := p.processBatch(ctx, batch, &s); err != nil {
			return s, p.abort(ctx, &s, err)
		}
		s.Processed += len(batch)
		progress.Report(s.Processed, s.Updated, false)

		if len(p.staged) >= p.CommitEvery {
			if err := p.commit(ctx, &s); err != nil {
				return s, err
			}
			progress.Report(s.Processed, s.Updated, true)
		}

		if err := p.Sleep(ctx, p.Delay); err != nil {
			return s, p.abort(ctx, &s, err)
		}
	}

	if err := p.commit(ctx, &s); err != nil {
		return s, err
	}
	progress.Report(s.Processed, s.Updated, true)
	return s, nil
}

// processBatch resolves one batch of document IDs and stages its updates.
func (p *Pipeline) processBatch(ctx context.Context, batch []string, s *Summary) error {
	docs, err := p.Annotations.Fetch(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.FailedBatches++
		p.Log.Warn().Err(err).Str("first", batch[0]).Int("size", len(batch)).Msg("annotation fetch failed, skipping batch")
		return nil
	}

	var genes []pubtator.Genes
	var geneIDs []string
	for _, doc := range docs {
		g, ok := pubtator.ExtractGenes(doc)
		if !ok {
			continue
		}
		genes = append(genes, g)
		geneIDs = append(geneIDs, g.IDs...)
	}
	s.Documents += len(genes)

	mapping, err := p.resolveGenes(ctx, geneIDs, s)
	if err != nil {
		return err
	}

	details, err := p.resolveDetails(ctx, accessionsFor(genes, mapping))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errDetailService) {
			return err
		}
		s.FailedBatches++
		p.Log.Warn().Err(err).Str("first", batch[0]).Int("size", len(batch)).Msg("detail fetch failed, skipping batch")
		return nil
	}

	for _, g := range genes {
		if !mapped(g, mapping) {
			s.Deferred++
			continue
		}
		u := Aggregate(g, mapping, details)
		if !u.IsEmpty() {
			p.staged = append(p.staged, u)
			s.Staged++
		}
		if p.StoreGeneMap {
			p.geneMap = append(p.geneMap, dataset.GeneMapRow{PMID: g.DocumentID, GeneIDs: g.RawIDs, GeneNames: g.Names})
		}
	}
	p.Log.Debug().Int("documents", len(genes)).Int("genes", len(geneIDs)).Msg("batch resolved")
	return nil
}

// mapped reports whether every gene of g has a mapping result, empty or not.
func mapped(g pubtator.Genes, mapping map[string][]string) bool {
	for _, id := range g.IDs {
		if _, ok := mapping[id]; !ok {
			return false
		}
	}
	return true
}

// resolveGenes returns accessions for ids from the cache, mapping and
// caching the misses. IDs whose mapping job timed out are absent from the
// result and from the cache.
func (p *Pipeline) resolveGenes(ctx context.Context, ids []string, s *Summary) (map[string][]string, error) {
	mapping, err := p.Cache.GeneMappings(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := mapping[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return mapping, nil
	}

	mapped, stats, err := p.Mapper.Map(ctx, missing)
	s.MappingJobs += stats.Jobs
	s.MappingFailures += stats.Failures
	if err != nil {
		return nil, err
	}
	if err := p.Cache.PutGeneMappings(ctx, mapped); err != nil {
		return nil, err
	}
	for id, accs := range mapped {
		mapping[id] = accs
	}
	return mapping, nil
}

// resolveDetails returns details for accs from the cache, fetching and
// caching the misses. Details fetched before a failed batch are still
// cached.
func (p *Pipeline) resolveDetails(ctx context.Context, accs []string) (map[string]types.AccessionDetail, error) {
	details, err := p.Cache.Details(ctx, accs)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, a := range accs {
		if _, ok := details[a]; !ok {
			missing = append(missing, a)
		}
	}
	if len(missing) == 0 {
		return details, nil
	}

	fetched, fetchErr := p.Details.Fetch(ctx, missing)
	if err := p.Cache.PutDetails(ctx, fetched); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %w", errDetailService, fetchErr)
	}
	for a, d := range fetched {
		details[a] = d
	}
	return details, nil
}

// commit writes staged updates and gene-map rows.
func (p *Pipeline) commit(ctx context.Context, s *Summary) error {
	if len(p.staged) > 0 {
		n, err := p.DB.ApplyUpdates(ctx, p.staged)
		if err != nil {
			return fmt.Errorf("committing %d updates: %w", len(p.staged), err)
		}
		s.Updated += int(n)
		p.staged = p.staged[:0]
	}
	if len(p.geneMap) > 0 {
		if err := p.DB.UpsertGeneMap(ctx, p.GeneMapTable, p.geneMap, p.Now()); err != nil {
			return err
		}
		p.geneMap = p.geneMap[:0]
	}
	return nil
}

// abort commits staged work before returning cause. The commit runs
// without ctx so a cancelled run still keeps its finished batches.
func (p *Pipeline) abort(ctx context.Context, s *Summary, cause error) error {
	if err := p.commit(context.WithoutCancel(ctx), s); err != nil {
		p.Log.Error().Err(err).Msg("commit after failure")
	}
	return cause
}

func (p *Pipeline) defaults() {
	if p.Batch <= 0 {
		p.Batch = defaultBatch
	}
	if p.CommitEvery <= 0 {
		p.CommitEvery = defaultCommitEvery
	}
	if p.GeneMapTable == "" {
		p.GeneMapTable = defaultGeneMapTable
	}
	if p.Sleep == nil {
		p.Sleep = httputil.Sleep
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Out == nil {
		p.Out = io.Discard
	}
}
