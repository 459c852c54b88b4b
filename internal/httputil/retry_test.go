// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubenrich/pkg/types"
)

// recordingSleep captures requested backoff durations without sleeping.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestClient(retries int, rs *recordingSleep) *Client {
	c := NewClient(types.HTTPConfig{Retries: retries, BackoffBase: 10 * time.Millisecond})
	c.Sleep = rs.sleep
	return c
}

func TestGetJSON_ImmediateSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"jobId": "abc"}`)
	}))
	defer ts.Close()

	rs := &recordingSleep{}
	var out struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, newTestClient(3, rs).GetJSON(context.Background(), ts.URL, &out))

	assert.Equal(t, "abc", out.JobID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, rs.delays)
}

func TestGetJSON_RetriesWithExponentialBackoff(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer ts.Close()

	rs := &recordingSleep{}
	var out map[string]any
	require.NoError(t, newTestClient(3, rs).GetJSON(context.Background(), ts.URL, &out))

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, rs.delays)
}

func TestGetJSON_ExhaustsRetriesAndPropagates(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	rs := &recordingSleep{}
	err := newTestClient(4, rs).GetJSON(context.Background(), ts.URL, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Len(t, rs.delays, 3)
}

func TestGetJSON_UndecodableBodyIsRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `<html>busy</html>`)
	}))
	defer ts.Close()

	var out map[string]any
	err := newTestClient(2, &recordingSleep{}).GetJSON(context.Background(), ts.URL, &out)

	assert.True(t, errors.Is(err, ErrDecode))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetJSON_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	err := newTestClient(3, &recordingSleep{}).GetJSON(context.Background(), ts.URL, nil)

	assert.True(t, IsClientError(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetJSON_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	err := newTestClient(3, &recordingSleep{}).GetJSON(context.Background(), ts.URL, nil)
	assert.True(t, IsNotFound(err))
}

func TestPostFormJSON_SendsForm(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "GeneID", r.PostForm.Get("from"))
		assert.Equal(t, "1 2 3", r.PostForm.Get("ids"))
		fmt.Fprint(w, `{"jobId": "j1"}`)
	}))
	defer ts.Close()

	var out struct {
		JobID string `json:"jobId"`
	}
	form := url.Values{"from": {"GeneID"}, "ids": {"1 2 3"}}
	require.NoError(t, newTestClient(3, &recordingSleep{}).PostFormJSON(context.Background(), ts.URL, form, &out))
	assert.Equal(t, "j1", out.JobID)
}

func TestGetJSON_ContextCancelledDuringBackoff(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(types.HTTPConfig{Retries: 5, BackoffBase: 500 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.GetJSON(ctx, ts.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnAttemptObservesOutcomes(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer ts.Close()

	var outcomes []string
	c := newTestClient(3, &recordingSleep{})
	c.OnAttempt = func(o string) { outcomes = append(outcomes, o) }

	require.NoError(t, c.GetJSON(context.Background(), ts.URL, nil))
	assert.Equal(t, []string{"retry", "ok"}, outcomes)
}

func TestGetJSON_FailedAttemptLeavesNoFields(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Results decode, then the status type mismatch fails the attempt.
			fmt.Fprint(w, `{"results": [{"from": "1", "to": "P1"}], "jobStatus": 5}`)
			return
		}
		fmt.Fprint(w, `{"jobStatus": "RUNNING"}`)
	}))
	defer ts.Close()

	var out struct {
		JobStatus string `json:"jobStatus"`
		Results   []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"results"`
	}
	require.NoError(t, newTestClient(3, &recordingSleep{}).GetJSON(context.Background(), ts.URL, &out))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "RUNNING", out.JobStatus)
	assert.Nil(t, out.Results)
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   string
	}{
		{"none", nil, ""},
		{"next only", []string{`<https://x.org/r?cursor=a&size=500>; rel="next"`}, "https://x.org/r?cursor=a&size=500"},
		{"prev and next", []string{`<https://x.org/r?c=1>; rel="prev", <https://x.org/r?c=3>; rel="next"`}, "https://x.org/r?c=3"},
		{"comma in target", []string{`<https://x.org/r?fields=a,b&c=2>; rel=next`}, "https://x.org/r?fields=a,b&c=2"},
		{"multi-valued rel", []string{`<https://x.org/r?c=2>; rel="last next"`}, "https://x.org/r?c=2"},
		{"separate headers", []string{`<https://x.org/a>; rel="first"`, `<https://x.org/b>; rel="next"`}, "https://x.org/b"},
		{"no next", []string{`<https://x.org/r?c=1>; rel="prev"`}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tt.header {
				h.Add("Link", v)
			}
			assert.Equal(t, tt.want, NextLink(h))
		})
	}
}

func TestGetJSONPage_ResolvesRelativeNext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			w.Header().Set("Link", `</results/J1?cursor=abc>; rel="next"`)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer ts.Close()

	c := newTestClient(1, &recordingSleep{})
	next, err := c.GetJSONPage(context.Background(), ts.URL+"/results/J1", nil)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/results/J1?cursor=abc", next)

	next, err = c.GetJSONPage(context.Background(), next, nil)
	require.NoError(t, err)
	assert.Empty(t, next)
}
