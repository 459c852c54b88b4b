// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/pdiddy/pubenrich/internal/cache"
	"github.com/pdiddy/pubenrich/internal/httputil"
	"github.com/pdiddy/pubenrich/pkg/types"
)

// newHTTPClient returns a client whose attempts are counted under service.
func newHTTPClient(cfg types.HTTPConfig, service string) *httputil.Client {
	c := httputil.NewClient(cfg)
	c.OnAttempt = metered.RequestObserver(service)
	return c
}

// openCache opens the cache store with lookups counted in metrics.
func openCache(path string) (*cache.Store, error) {
	if path == "" {
		path = defaultCacheDB
	}
	store, err := cache.Open(path)
	if err != nil {
		return nil, err
	}
	store.OnLookup = func(ns cache.Namespace, hits, misses int) {
		metered.ObserveLookup(string(ns), hits, misses)
	}
	return store, nil
}

// finishPass records a pass's row count and wall time.
func finishPass(pass string, updated int, start time.Time) {
	metered.AddRows(pass, int64(updated))
	now := time.Now()
	metered.ObservePass(pass, now.Sub(start), now)
	log.Info().Str("pass", pass).Int("updated", updated).Dur("elapsed", now.Sub(start)).Msg("pass finished")
}

// printSummary writes the final line of a pass, highlighted when w is a
// terminal.
func printSummary(w io.Writer, failed bool, format string, args ...any) {
	c := color.New(color.FgGreen, color.Bold)
	if failed {
		c = color.New(color.FgYellow, color.Bold)
	}
	c.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}
