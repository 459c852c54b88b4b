// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pubenrich/internal/cache"
	"github.com/pdiddy/pubenrich/internal/dataset"
	"github.com/pdiddy/pubenrich/internal/pubmed"
	"github.com/pdiddy/pubenrich/internal/pubtator"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const defaultBiblioBatch = 200

// BiblioSummary holds counts from one Biblio run.
type BiblioSummary struct {
	Total         int
	Processed     int
	CacheHits     int
	Fetched       int
	Updated       int
	FailedBatches int
}

// Biblio is the bibliographic metadata pass.
type Biblio struct {
	DB     *dataset.DB
	Cache  *cache.Store
	PubMed *pubmed.Client

	// Annotations supplies title and abstract text when WithText is set.
	Annotations *pubtator.Client
	WithText    bool

	Batch int
	Limit int

	Out io.Writer
	Log zerolog.Logger
	Now func() time.Time
}

// NewBiblio wires the pass from its configuration. annotations may be nil
// when text is not wanted.
func NewBiblio(cfg types.BiblioConfig, db *dataset.DB, store *cache.Store,
	pm *pubmed.Client, annotations *pubtator.Client) *Biblio {
	return &Biblio{
		DB:          db,
		Cache:       store,
		PubMed:      pm,
		Annotations: annotations,
		WithText:    cfg.WithText && annotations != nil,
		Batch:       cfg.Batch,
		Limit:       cfg.Limit,
		Out:         io.Discard,
		Log:         zerolog.Nop(),
		Now:         time.Now,
	}
}

// Run fills empty bibliographic fields. Each batch is committed on its
// own; a failed ESummary batch is logged and left for the next run.
func (b *Biblio) Run(ctx context.Context) (BiblioSummary, error) {
	var s BiblioSummary
	if b.Batch <= 0 {
		b.Batch = defaultBiblioBatch
	}
	if b.Out == nil {
		b.Out = io.Discard
	}

	if err := b.DB.EnsureBiblioColumns(ctx, b.WithText); err != nil {
		return s, err
	}
	total, err := b.DB.CountPendingBiblio(ctx, b.WithText)
	if err != nil {
		return s, err
	}
	if b.Limit > 0 && b.Limit < total {
		total = b.Limit
	}
	s.Total = total
	progress := NewProgress(b.Out, total, b.Now)
	b.Log.Info().Int("pending", total).Bool("with_text", b.WithText).Msg("starting bibliographic pass")

	after := ""
	for {
		size := b.Batch
		if b.Limit > 0 {
			size = min(size, b.Limit-s.Processed)
		}
		if size <= 0 {
			break
		}
		ids, err := b.DB.NextPendingBiblio(ctx, after, size, b.WithText)
		if err != nil {
			return s, err
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]

		updates, err := b.resolve(ctx, ids, &s)
		if err != nil {
			return s, err
		}
		n, err := b.DB.ApplyBiblio(ctx, updates, b.WithText)
		if err != nil {
			return s, err
		}
		s.Updated += int(n)
		s.Processed += len(ids)
		progress.Report(s.Processed, s.Updated, false)
	}

	progress.Report(s.Processed, s.Updated, true)
	return s, nil
}

// resolve builds the non-empty updates for one batch of IDs.
func (b *Biblio) resolve(ctx context.Context, ids []string, s *BiblioSummary) ([]dataset.BiblioUpdate, error) {
	meta, err := b.Cache.Biblio(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.CacheHits += len(meta)

	var missing []string
	for _, id := range ids {
		if _, ok := meta[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		fetched, err := b.PubMed.Summaries(ctx, missing)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			s.FailedBatches++
			b.Log.Warn().Err(err).Str("first", missing[0]).Int("size", len(missing)).Msg("esummary batch failed, skipping")
		default:
			if err := b.Cache.PutBiblio(ctx, fetched); err != nil {
				return nil, err
			}
			s.Fetched += len(fetched)
			for id, m := range fetched {
				meta[id] = m
			}
		}
	}

	text := map[string][2]string{}
	if b.WithText {
		docs, err := b.Annotations.Fetch(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.Log.Warn().Err(err).Str("first", ids[0]).Msg("passage fetch failed, continuing without text")
		}
		for _, doc := range docs {
			title, abstract := pubtator.ExtractText(doc)
			text[doc.DocumentID()] = [2]string{title, abstract}
		}
	}

	var updates []dataset.BiblioUpdate
	for _, id := range ids {
		m := meta[id]
		u := dataset.BiblioUpdate{
			PMID:            id,
			PublicationDate: m.PublicationDate,
			Year:            m.Year,
			Month:           m.Month,
			Journal:         m.Journal,
			Authors:         m.Authors,
			Title:           text[id][0],
			Abstract:        text[id][1],
		}
		if !u.IsEmpty() {
			updates = append(updates, u)
		}
	}
	return updates, nil
}
