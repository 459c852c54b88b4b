// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package uniprot talks to the UniProt REST API: asynchronous gene-ID to
// accession mapping jobs, batched accession detail search, and single-entry
// lookups.
package uniprot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pubenrich/internal/httputil"
)

// DefaultBaseURL is the UniProt REST root.
const DefaultBaseURL = "https://rest.uniprot.org"

const (
	defaultChunkSize    = 200
	defaultMaxPolls     = 60
	defaultPollInterval = 1 * time.Second

	// resultsPageSize is the page size asked of the results endpoint;
	// further pages are followed through the Link header.
	resultsPageSize = 500
	maxResultPages  = 1000
)

// JobState is the lifecycle position of one mapping job.
type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobPolling   JobState = "polling"
	JobFinished  JobState = "finished"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// errNoJobID is returned when a submit response carries no job handle.
var errNoJobID = errors.New("mapping service returned no job id")

// Job is one submit → poll → fetch unit of work.
type Job struct {
	ID    string
	IDs   []string
	State JobState
	Polls int

	// Pairs holds (from, to) results once State is JobFinished.
	Pairs []Pair
}

// Pair is one mapping result row.
type Pair struct {
	From string `json:"from"`
	To   any    `json:"to"`
}

// Accession returns the target accession. The service returns a plain
// string for UniProtKB targets and an entry object for some others.
func (p Pair) Accession() string {
	switch v := p.To.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if s, ok := v["primaryAccession"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

type runResponse struct {
	JobID string `json:"jobId"`
}

type statusResponse struct {
	JobStatus string `json:"jobStatus"`
	Results   []Pair `json:"results"`
}

type resultsResponse struct {
	Results []Pair `json:"results"`
}

// Mapping maps a gene ID to its sorted accessions. An empty slice means the
// ID was queried and has no mapping.
type Mapping map[string][]string

// MapStats counts mapping work done by one Map call.
type MapStats struct {
	// Jobs is the number of jobs submitted.
	Jobs int

	// Failures is the number of jobs that failed, timed out, or errored.
	Failures int

	// GaveUp is the number of single IDs recorded empty after failing alone.
	GaveUp int

	// Unresolved is the number of IDs left out of the mapping because their
	// chunk timed out.
	Unresolved int
}

// Mapper runs ID-mapping jobs with bisection on failure.
type Mapper struct {
	HTTP    *httputil.Client
	BaseURL string

	// From and To are the source and target namespaces.
	From string
	To   string

	ChunkSize    int
	MaxPolls     int
	PollInterval time.Duration
	Sleep        httputil.SleepFunc
	Log          zerolog.Logger

	// OnJob, when set, observes each job's terminal state.
	OnJob func(JobState)
}

// NewMapper returns a Mapper for GeneID → UniProtKB with default polling.
func NewMapper(c *httputil.Client, baseURL string) *Mapper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Mapper{
		HTTP:         c,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		From:         "GeneID",
		To:           "UniProtKB",
		ChunkSize:    defaultChunkSize,
		MaxPolls:     defaultMaxPolls,
		PollInterval: defaultPollInterval,
		Sleep:        httputil.Sleep,
		Log:          zerolog.Nop(),
	}
}

// Map resolves ids, which are deduplicated and sorted first. A failed chunk
// is split in half and both halves are retried; a single failing ID maps to
// an empty set. A chunk that times out is not split: its IDs are left out
// of the result, so callers neither cache them nor treat them as unmapped.
// Every other input ID appears in the result. The only error returned is
// context cancellation.
func (m *Mapper) Map(ctx context.Context, ids []string) (Mapping, MapStats, error) {
	var stats MapStats
	ids = dedupeSorted(ids)
	out := make(Mapping, len(ids))
	if len(ids) == 0 {
		return out, stats, nil
	}

	size := m.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}

	var chunks [][]string
	for i := 0; i < len(ids); i += size {
		chunks = append(chunks, ids[i:min(i+size, len(ids))])
	}
	// Pushed in reverse so chunks pop in input order.
	stack := make([][]string, 0, len(chunks))
	for i := len(chunks) - 1; i >= 0; i-- {
		stack = append(stack, chunks[i])
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}
		chunk := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		stats.Jobs++
		job, err := m.runJob(ctx, chunk)
		if err == nil && job.State == JobFinished {
			m.observe(JobFinished)
			collect(out, chunk, job.Pairs)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, stats, ctxErr
		}

		stats.Failures++
		state := JobFailed
		if job != nil && job.State == JobTimedOut {
			state = JobTimedOut
		}
		m.observe(state)
		m.Log.Warn().Err(err).Str("state", string(state)).Int("ids", len(chunk)).
			Str("first", chunk[0]).Msg("mapping job did not finish")

		if state == JobTimedOut {
			stats.Unresolved += len(chunk)
			continue
		}
		if len(chunk) == 1 {
			stats.GaveUp++
			out[chunk[0]] = []string{}
			continue
		}
		mid := len(chunk) / 2
		stack = append(stack, chunk[mid:], chunk[:mid])
	}
	return out, stats, nil
}

// runJob drives one job through its states. A non-nil error or a state
// other than JobFinished means the chunk failed.
func (m *Mapper) runJob(ctx context.Context, ids []string) (*Job, error) {
	job := &Job{IDs: ids}

	form := url.Values{
		"from": {m.From},
		"to":   {m.To},
		"ids":  {strings.Join(ids, " ")},
	}
	var run runResponse
	if err := m.HTTP.PostFormJSON(ctx, m.BaseURL+"/idmapping/run", form, &run); err != nil {
		return job, fmt.Errorf("submitting mapping job: %w", err)
	}
	if run.JobID == "" {
		return job, errNoJobID
	}
	job.ID = run.JobID
	job.State = JobSubmitted

	maxPolls := m.MaxPolls
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}
	sleep := m.Sleep
	if sleep == nil {
		sleep = httputil.Sleep
	}

	statusURL := m.BaseURL + "/idmapping/status/" + url.PathEscape(job.ID)
	for job.State == JobSubmitted || job.State == JobPolling {
		if job.Polls >= maxPolls {
			job.State = JobTimedOut
			return job, nil
		}
		job.State = JobPolling
		job.Polls++

		var st statusResponse
		next, err := m.HTTP.GetJSONPage(ctx, statusURL, &st)
		if err != nil {
			return job, fmt.Errorf("polling mapping job %s: %w", job.ID, err)
		}

		switch strings.ToUpper(st.JobStatus) {
		case "FINISHED":
			job.State = JobFinished
		case "FAILED", "ERROR":
			job.State = JobFailed
			return job, nil
		case "":
			// Finished jobs may answer the status URL with their results.
			if st.Results != nil {
				pairs, err := m.fetchResults(ctx, next, st.Results)
				if err != nil {
					return job, fmt.Errorf("fetching mapping results %s: %w", job.ID, err)
				}
				job.State = JobFinished
				job.Pairs = pairs
				return job, nil
			}
		}
		if job.State == JobPolling {
			if err := sleep(ctx, m.PollInterval); err != nil {
				return job, err
			}
		}
	}

	resultsURL := fmt.Sprintf("%s/idmapping/results/%s?format=json&size=%d",
		m.BaseURL, url.PathEscape(job.ID), resultsPageSize)
	pairs, err := m.fetchResults(ctx, resultsURL, nil)
	if err != nil {
		return job, fmt.Errorf("fetching mapping results %s: %w", job.ID, err)
	}
	job.Pairs = pairs
	return job, nil
}

// fetchResults appends every page starting at pageURL to pairs, following
// rel="next" links until the last page. An empty pageURL returns pairs.
// A failed page fails the whole fetch; a partial result set would record
// the missing IDs as unmapped.
func (m *Mapper) fetchResults(ctx context.Context, pageURL string, pairs []Pair) ([]Pair, error) {
	seen := map[string]bool{}
	for pages := 0; pageURL != ""; pages++ {
		if pages >= maxResultPages || seen[pageURL] {
			return nil, fmt.Errorf("results pagination did not end after %d pages", pages)
		}
		seen[pageURL] = true

		var res resultsResponse
		next, err := m.HTTP.GetJSONPage(ctx, pageURL, &res)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, res.Results...)
		pageURL = next
	}
	return pairs, nil
}

func (m *Mapper) observe(s JobState) {
	if m.OnJob != nil {
		m.OnJob(s)
	}
}

// collect records the pairs for chunk into out. Chunk IDs without a pair
// map to an empty set.
func collect(out Mapping, chunk []string, pairs []Pair) {
	found := make(map[string]map[string]struct{}, len(chunk))
	for _, id := range chunk {
		found[id] = map[string]struct{}{}
	}
	for _, p := range pairs {
		from := strings.TrimSpace(p.From)
		acc := p.Accession()
		if from == "" || acc == "" {
			continue
		}
		if found[from] == nil {
			found[from] = map[string]struct{}{}
		}
		found[from][acc] = struct{}{}
	}
	for id, set := range found {
		accs := make([]string, 0, len(set))
		for a := range set {
			accs = append(accs, a)
		}
		sort.Strings(accs)
		out[id] = accs
	}
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
