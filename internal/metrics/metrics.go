// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"txdash/internal/core"
)

const namespace = "txdash"

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	seedRuns     *prometheus.CounterVec
	seedRecords  prometheus.Gauge
	datasetState *prometheus.GaugeVec
	queryErrors  *prometheus.CounterVec
}

// New registers the collectors, plus Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		seedRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_runs_total",
			Help:      "Completed seed runs by result.",
		}, []string{"result"}),
		seedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Transactions loaded by the last successful seed.",
		}),
		datasetState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_state",
			Help:      "1 for the current dataset state, 0 otherwise.",
		}, []string{"state"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Failed analytics queries by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.seedRuns,
		m.seedRecords,
		m.datasetState,
		m.queryErrors,
	)
	m.setState(core.StatePending)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// QueryFailed counts a failed analytics operation.
func (m *Metrics) QueryFailed(operation string) {
	m.queryErrors.WithLabelValues(operation).Inc()
}

// RegisterCacheStats exposes hit/miss counters read from stats at scrape time.
func (m *Metrics) RegisterCacheStats(stats func() (hits, misses int64)) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Query cache hits.",
		}, func() float64 { h, _ := stats(); return float64(h) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Query cache misses.",
		}, func() float64 { _, ms := stats(); return float64(ms) }),
	)
}

// Notify implements notify.Notifier and tracks the dataset lifecycle.
func (m *Metrics) Notify(_ context.Context, status core.DatasetStatus) error {
	m.setState(status.State)
	switch status.State {
	case core.StateReady:
		m.seedRuns.WithLabelValues("success").Inc()
		m.seedRecords.Set(float64(status.Records))
	case core.StateFailed:
		m.seedRuns.WithLabelValues("failure").Inc()
	}
	return nil
}

func (m *Metrics) setState(state core.DatasetState) {
	for _, s := range []core.DatasetState{core.StatePending, core.StateSeeding, core.StateReady, core.StateFailed} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.datasetState.WithLabelValues(string(s)).Set(v)
	}
}
