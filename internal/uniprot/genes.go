// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package uniprot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/pubenrich/internal/httputil"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const (
	defaultGeneBatch = 50

	// hitsPerGene sizes a search page; one symbol can match several
	// entries across organisms.
	hitsPerGene = 5
)

// GeneHit is the entry chosen for one gene symbol. A zero Accession means
// no entry carries the symbol as its primary gene name.
type GeneHit struct {
	Accession string
	Detail    types.AccessionDetail
}

// GeneSearcher finds entries by primary gene name.
type GeneSearcher struct {
	HTTP    *httputil.Client
	BaseURL string
	Batch   int

	// Delay is the politeness pause after each search.
	Delay time.Duration
	Sleep httputil.SleepFunc
}

// NewGeneSearcher returns a searcher against baseURL, or DefaultBaseURL when empty.
func NewGeneSearcher(c *httputil.Client, baseURL string) *GeneSearcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &GeneSearcher{
		HTTP:    c,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Batch:   defaultGeneBatch,
		Sleep:   httputil.Sleep,
	}
}

// Search resolves gene symbols to entries. Reviewed entries are searched
// first; symbols still unresolved are searched again without that
// restriction. The first result whose primary gene name matches a symbol
// (case-insensitively) wins.
//
// Every symbol in the returned map is final: found, or absent from both
// searches. On error the map holds only the symbols settled before the
// failure, so callers can cache it as is.
func (s *GeneSearcher) Search(ctx context.Context, symbols []string) (map[string]GeneHit, error) {
	symbols = dedupeSorted(symbols)
	out := make(map[string]GeneHit, len(symbols))

	if err := s.pass(ctx, symbols, true, out, false); err != nil {
		return out, err
	}

	var rest []string
	for _, sym := range symbols {
		if _, ok := out[sym]; !ok {
			rest = append(rest, sym)
		}
	}
	if err := s.pass(ctx, rest, false, out, true); err != nil {
		return out, err
	}
	return out, nil
}

// pass searches symbols in batches and records matches in out. When final
// is set, symbols of a completed batch without a match are recorded empty.
func (s *GeneSearcher) pass(ctx context.Context, symbols []string, reviewed bool, out map[string]GeneHit, final bool) error {
	size := s.Batch
	if size <= 0 {
		size = defaultGeneBatch
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = httputil.Sleep
	}

	for i := 0; i < len(symbols); i += size {
		batch := symbols[i:min(i+size, len(symbols))]

		byKey := make(map[string]string, len(batch))
		clauses := make([]string, len(batch))
		for j, sym := range batch {
			byKey[strings.ToUpper(sym)] = sym
			clauses[j] = "gene:" + quoteTerm(sym)
		}
		query := "(" + strings.Join(clauses, " OR ") + ")"
		if reviewed {
			query += " AND reviewed:true"
		}
		params := url.Values{
			"query":  {query},
			"format": {"json"},
			"fields": {"accession,id,protein_name,gene_primary"},
			"size":   {strconv.Itoa(len(batch) * hitsPerGene)},
		}

		var resp searchResponse
		if err := s.HTTP.GetJSON(ctx, s.BaseURL+"/uniprotkb/search?"+params.Encode(), &resp); err != nil {
			return fmt.Errorf("searching %d gene names: %w", len(batch), err)
		}
		for _, e := range resp.Results {
			if len(e.Genes) == 0 {
				continue
			}
			sym, ok := byKey[strings.ToUpper(strings.TrimSpace(e.Genes[0].GeneName.Value))]
			if !ok {
				continue
			}
			if _, done := out[sym]; done {
				continue
			}
			out[sym] = GeneHit{Accession: strings.TrimSpace(e.PrimaryAccession), Detail: e.detail()}
		}
		if final {
			for _, sym := range batch {
				if _, ok := out[sym]; !ok {
					out[sym] = GeneHit{}
				}
			}
		}

		if err := sleep(ctx, s.Delay); err != nil {
			return err
		}
	}
	return nil
}

// quoteTerm quotes a query term containing characters the search syntax
// would split on.
func quoteTerm(s string) string {
	if strings.ContainsAny(s, " ():\"") {
		return strconv.Quote(s)
	}
	return s
}
