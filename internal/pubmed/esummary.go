// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed fetches bibliographic metadata (publication date, journal,
// authors) from the NCBI E-utilities ESummary endpoint.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/pubenrich/internal/httputil"
	"github.com/pdiddy/pubenrich/pkg/types"
)

// DefaultBaseURL is the E-utilities root.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// DefaultDelay keeps unauthenticated clients under three requests per second.
const DefaultDelay = 340 * time.Millisecond

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type summary struct {
	PubDate         string `json:"pubdate"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// Client queries ESummary.
type Client struct {
	HTTP    *httputil.Client
	BaseURL string

	// APIKey and Email are sent as api_key and email when set.
	APIKey string
	Email  string

	// Delay is the pause after each request.
	Delay time.Duration
	Sleep httputil.SleepFunc

	// Now stamps FetchedAt.
	Now func() time.Time
}

// NewClient returns a client against baseURL, or DefaultBaseURL when empty.
func NewClient(c *httputil.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		HTTP:    c,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Delay:   DefaultDelay,
		Sleep:   httputil.Sleep,
		Now:     time.Now,
	}
}

// Summaries fetches metadata for pmids in one request. Every requested ID
// is present in the result; IDs the service does not know get a record
// with only FetchedAt set.
func (c *Client) Summaries(ctx context.Context, pmids []string) (map[string]types.BiblioMetadata, error) {
	ids := make([]string, 0, len(pmids))
	for _, p := range pmids {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	if len(ids) == 0 {
		return map[string]types.BiblioMetadata{}, nil
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}
	if c.Email != "" {
		params.Set("email", c.Email)
		params.Set("tool", "pubenrich")
	}

	var resp esummaryResponse
	if err := c.HTTP.GetJSON(ctx, c.BaseURL+"/esummary.fcgi?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("esummary for %d ids: %w", len(ids), err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	fetched := now().UTC().Truncate(time.Second)

	out := make(map[string]types.BiblioMetadata, len(ids))
	for _, id := range ids {
		md := types.BiblioMetadata{FetchedAt: fetched}
		var s summary
		// "uids" and error entries do not decode into a summary.
		if raw, ok := resp.Result[id]; ok && json.Unmarshal(raw, &s) == nil {
			md.PublicationDate = strings.TrimSpace(s.PubDate)
			md.Journal = strings.TrimSpace(s.FullJournalName)
			if md.Journal == "" {
				md.Journal = strings.TrimSpace(s.Source)
			}
			var names []string
			for _, a := range s.Authors {
				if n := strings.TrimSpace(a.Name); n != "" {
					names = append(names, n)
				}
			}
			md.Authors = strings.Join(names, "; ")
			md.Year, md.Month = ParseYearMonth(md.PublicationDate)
		}
		out[id] = md
	}

	sleep := c.Sleep
	if sleep == nil {
		sleep = httputil.Sleep
	}
	if err := sleep(ctx, c.Delay); err != nil {
		return out, err
	}
	return out, nil
}

var months = map[string]string{
	"jan": "Jan", "feb": "Feb", "mar": "Mar", "apr": "Apr",
	"may": "May", "jun": "Jun", "jul": "Jul", "aug": "Aug",
	"sep": "Sep", "sept": "Sep", "oct": "Oct", "nov": "Nov", "dec": "Dec",
}

// ParseYearMonth extracts the first four-digit year and the first month
// abbreviation from a pubdate such as "2019 Mar 15" or "2020 Sept-Oct".
// Missing parts come back as 0 and "".
func ParseYearMonth(pubdate string) (year int, month string) {
	tokens := strings.FieldsFunc(pubdate, func(r rune) bool {
		return r == ' ' || r == '/' || r == '-' || r == ','
	})
	for _, tok := range tokens {
		if year == 0 && len(tok) == 4 && strings.Trim(tok, "0123456789") == "" {
			year, _ = strconv.Atoi(tok)
			continue
		}
		if month == "" {
			month = months[strings.ToLower(tok)]
		}
	}
	return year, month
}
