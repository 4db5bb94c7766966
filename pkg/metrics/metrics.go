// Package metrics defines the Prometheus collectors for ranking runs, the
// rank worker and its HTTP surface, and exposes a scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcome labels.
const (
	StatusOK     = "ok"
	StatusCached = "cached"
	StatusError  = "error"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPRequestDuration  *prometheus.HistogramVec

	RunsTotal         *prometheus.CounterVec
	PhaseDuration     *prometheus.HistogramVec
	IterationsTotal   prometheus.Counter
	IterationDuration prometheus.Histogram
	RankMass          prometheus.Gauge
	GraphVertices     prometheus.Gauge
	GraphEdges        prometheus.Gauge
	DanglingVertices  prometheus.Gauge

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	JobsTotal        *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
// It panics if called twice in one process; use NewWithRegistry in tests.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagerank_runs_total",
				Help: "Ranking runs by outcome (ok, cached, error).",
			},
			[]string{"status"},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagerank_phase_duration_seconds",
				Help:    "Time spent in each pipeline phase.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"phase"},
		),
		IterationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pagerank_iterations_total",
				Help: "Total propagation steps executed.",
			},
		),
		IterationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagerank_iteration_duration_seconds",
				Help:    "Latency of a single propagation step.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		RankMass: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagerank_rank_mass",
				Help: "Sum of all ranks in the most recent state; stays at 1.",
			},
		),
		GraphVertices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagerank_graph_vertices",
				Help: "Vertices in the most recently indexed graph.",
			},
		),
		GraphEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagerank_graph_edges",
				Help: "Distinct edges in the most recently indexed graph.",
			},
		),
		DanglingVertices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagerank_graph_dangling_vertices",
				Help: "Vertices without out-edges in the most recently indexed graph.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pagerank_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pagerank_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagerank_jobs_total",
				Help: "Rank jobs consumed by the worker, by outcome.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.HTTPRequestDuration,
		m.RunsTotal,
		m.PhaseDuration,
		m.IterationsTotal,
		m.IterationDuration,
		m.RankMass,
		m.GraphVertices,
		m.GraphEdges,
		m.DanglingVertices,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.JobsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
