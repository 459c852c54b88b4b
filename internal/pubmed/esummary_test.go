// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubenrich/internal/httputil"
	"github.com/pdiddy/pubenrich/pkg/types"
)

const sampleESummary = `{
  "header": {"type": "esummary", "version": "0.3"},
  "result": {
    "uids": ["111", "222"],
    "111": {
      "uid": "111",
      "pubdate": "2019 Mar 15",
      "source": "Nature",
      "fulljournalname": "Nature",
      "authors": [{"name": "Smith J", "authtype": "Author"}, {"name": " "}, {"name": "Doe A"}]
    },
    "222": {
      "uid": "222",
      "pubdate": "2021",
      "source": "J Biol Chem",
      "authors": []
    }
  }
}`

func TestSummaries(t *testing.T) {
	var query map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/esummary.fcgi", r.URL.Path)
		query = r.URL.Query()
		fmt.Fprint(w, sampleESummary)
	}))
	defer ts.Close()

	var slept []time.Duration
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	c := NewClient(httputil.NewClient(types.HTTPConfig{Retries: 1}), ts.URL)
	c.APIKey = "k"
	c.Email = "me@example.org"
	c.Now = func() time.Time { return fixed }
	c.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	got, err := c.Summaries(context.Background(), []string{"111", " ", "222", "333"})
	require.NoError(t, err)

	assert.Equal(t, []string{"pubmed"}, query["db"])
	assert.Equal(t, []string{"111,222,333"}, query["id"])
	assert.Equal(t, []string{"json"}, query["retmode"])
	assert.Equal(t, []string{"k"}, query["api_key"])
	assert.Equal(t, []string{"me@example.org"}, query["email"])

	stamp := fixed.Truncate(time.Second)
	assert.Equal(t, map[string]types.BiblioMetadata{
		"111": {PublicationDate: "2019 Mar 15", Year: 2019, Month: "Mar", Journal: "Nature", Authors: "Smith J; Doe A", FetchedAt: stamp},
		"222": {PublicationDate: "2021", Year: 2021, Journal: "J Biol Chem", FetchedAt: stamp},
		"333": {FetchedAt: stamp},
	}, got)
	assert.Equal(t, []time.Duration{DefaultDelay}, slept)
}

func TestSummaries_EmptyInput(t *testing.T) {
	c := NewClient(httputil.NewClient(types.HTTPConfig{}), "http://127.0.0.1:0")
	got, err := c.Summaries(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummaries_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	hc := httputil.NewClient(types.HTTPConfig{Retries: 2})
	hc.Sleep = httputil.NoSleep
	c := NewClient(hc, ts.URL)

	_, err := c.Summaries(context.Background(), []string{"1"})
	assert.Error(t, err)
}

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		in        string
		wantYear  int
		wantMonth string
	}{
		{"2019 Mar 15", 2019, "Mar"},
		{"2020 Sept-Oct", 2020, "Sep"},
		{"2018/12/01", 2018, ""},
		{"Winter 2017", 2017, ""},
		{"2015 dec", 2015, "Dec"},
		{"", 0, ""},
		{"n.d.", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			y, m := ParseYearMonth(tt.in)
			assert.Equal(t, tt.wantYear, y)
			assert.Equal(t, tt.wantMonth, m)
		})
	}
}
