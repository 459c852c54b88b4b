// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package uniprot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/pubenrich/internal/httputil"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const defaultDetailBatch = 50

// ErrNotFound is returned by EntryClient.Lookup for unknown accessions.
var ErrNotFound = errors.New("accession not found")

// entry is the subset of a UniProtKB entry we read. The search and entry
// endpoints share this shape.
type entry struct {
	PrimaryAccession   string `json:"primaryAccession"`
	UniProtKBID        string `json:"uniProtkbId"`
	ProteinDescription struct {
		RecommendedName *struct {
			FullName valueField `json:"fullName"`
		} `json:"recommendedName"`
		SubmissionNames []struct {
			FullName valueField `json:"fullName"`
		} `json:"submissionNames"`
	} `json:"proteinDescription"`
	Genes []struct {
		GeneName valueField `json:"geneName"`
	} `json:"genes"`
}

type valueField struct {
	Value string `json:"value"`
}

// detail converts e, preferring the recommended name over the first
// submitted name.
func (e entry) detail() types.AccessionDetail {
	d := types.AccessionDetail{CanonicalID: strings.TrimSpace(e.UniProtKBID)}
	if rn := e.ProteinDescription.RecommendedName; rn != nil {
		d.ProteinName = strings.TrimSpace(rn.FullName.Value)
	}
	if d.ProteinName == "" && len(e.ProteinDescription.SubmissionNames) > 0 {
		d.ProteinName = strings.TrimSpace(e.ProteinDescription.SubmissionNames[0].FullName.Value)
	}
	if len(e.Genes) > 0 {
		d.GeneSymbol = strings.TrimSpace(e.Genes[0].GeneName.Value)
	}
	return d
}

type searchResponse struct {
	Results []entry `json:"results"`
}

// DetailFetcher batch-queries the search endpoint for accession details.
type DetailFetcher struct {
	HTTP    *httputil.Client
	BaseURL string
	Batch   int

	// Delay is the politeness pause after each batch.
	Delay time.Duration
	Sleep httputil.SleepFunc
}

// NewDetailFetcher returns a fetcher against baseURL, or DefaultBaseURL when empty.
func NewDetailFetcher(c *httputil.Client, baseURL string) *DetailFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DetailFetcher{
		HTTP:    c,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Batch:   defaultDetailBatch,
		Sleep:   httputil.Sleep,
	}
}

// Fetch returns details for accessions. Every requested accession is in
// the result; ones the service did not return get an empty detail. A
// failed batch aborts with the details gathered so far.
func (f *DetailFetcher) Fetch(ctx context.Context, accessions []string) (map[string]types.AccessionDetail, error) {
	accessions = dedupeSorted(accessions)
	out := make(map[string]types.AccessionDetail, len(accessions))

	size := f.Batch
	if size <= 0 {
		size = defaultDetailBatch
	}
	sleep := f.Sleep
	if sleep == nil {
		sleep = httputil.Sleep
	}

	for i := 0; i < len(accessions); i += size {
		batch := accessions[i:min(i+size, len(accessions))]

		clauses := make([]string, len(batch))
		for j, a := range batch {
			clauses[j] = "accession:" + a
		}
		params := url.Values{
			"query":  {"(" + strings.Join(clauses, " OR ") + ")"},
			"format": {"json"},
			"fields": {"accession,id,protein_name,gene_primary"},
			"size":   {strconv.Itoa(len(batch))},
		}

		var resp searchResponse
		if err := f.HTTP.GetJSON(ctx, f.BaseURL+"/uniprotkb/search?"+params.Encode(), &resp); err != nil {
			return out, fmt.Errorf("searching %d accessions: %w", len(batch), err)
		}
		for _, e := range resp.Results {
			if acc := strings.TrimSpace(e.PrimaryAccession); acc != "" {
				out[acc] = e.detail()
			}
		}
		for _, a := range batch {
			if _, ok := out[a]; !ok {
				out[a] = types.AccessionDetail{}
			}
		}

		if err := sleep(ctx, f.Delay); err != nil {
			return out, err
		}
	}
	return out, nil
}

// EntryClient fetches single UniProtKB entries.
type EntryClient struct {
	HTTP    *httputil.Client
	BaseURL string
}

// NewEntryClient returns a client against baseURL, or DefaultBaseURL when empty.
func NewEntryClient(c *httputil.Client, baseURL string) *EntryClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &EntryClient{HTTP: c, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Lookup fetches one accession's detail. It returns ErrNotFound on 404.
func (c *EntryClient) Lookup(ctx context.Context, accession string) (types.AccessionDetail, error) {
	var e entry
	err := c.HTTP.GetJSON(ctx, c.BaseURL+"/uniprotkb/"+url.PathEscape(accession)+".json", &e)
	if httputil.IsNotFound(err) {
		return types.AccessionDetail{}, fmt.Errorf("%s: %w", accession, ErrNotFound)
	}
	if err != nil {
		return types.AccessionDetail{}, fmt.Errorf("looking up %s: %w", accession, err)
	}
	return e.detail(), nil
}
