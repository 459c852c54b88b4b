// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics collects Prometheus counters for the enrichment passes.
// A batch tool has no scrape endpoint, so the registry is written to a
// node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pubenrich"

// Metrics holds every collector of one run on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP attempts by service and outcome (ok, retry, error).
	RequestsTotal *prometheus.CounterVec

	// Cache keys looked up by namespace and result (hit, miss).
	CacheLookupsTotal *prometheus.CounterVec

	// Mapping jobs by terminal state.
	MappingJobsTotal *prometheus.CounterVec

	// Dataset rows written by pass.
	RowsUpdatedTotal *prometheus.CounterVec

	PassDuration *prometheus.HistogramVec
	LastRun      prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP request attempts by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache keys looked up by namespace and result",
			},
			[]string{"namespace", "result"},
		),
		MappingJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mapping_jobs_total",
				Help:      "Identifier mapping jobs by terminal state",
			},
			[]string{"state"},
		),
		RowsUpdatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_updated_total",
				Help:      "Dataset rows written by pass",
			},
			[]string{"pass"},
		),
		PassDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Wall time of each pass in seconds",
				Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 4 * 3600},
			},
			[]string{"pass"},
		),
		LastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}
}

// RequestObserver returns a callback counting attempts against service.
func (m *Metrics) RequestObserver(service string) func(outcome string) {
	return func(outcome string) {
		m.RequestsTotal.WithLabelValues(service, outcome).Inc()
	}
}

// ObserveLookup records one batched cache read.
func (m *Metrics) ObserveLookup(ns string, hits, misses int) {
	m.CacheLookupsTotal.WithLabelValues(ns, "hit").Add(float64(hits))
	m.CacheLookupsTotal.WithLabelValues(ns, "miss").Add(float64(misses))
}

// ObserveJob records a mapping job's terminal state.
func (m *Metrics) ObserveJob(state string) {
	m.MappingJobsTotal.WithLabelValues(state).Inc()
}

// AddRows records rows written by pass.
func (m *Metrics) AddRows(pass string, n int64) {
	m.RowsUpdatedTotal.WithLabelValues(pass).Add(float64(n))
}

// ObservePass records a pass's duration and stamps LastRun.
func (m *Metrics) ObservePass(pass string, d time.Duration, now time.Time) {
	m.PassDuration.WithLabelValues(pass).Observe(d.Seconds())
	m.LastRun.Set(float64(now.Unix()))
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
