package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/tranche-engine/amortization"
)

const namespace = "tranche"

// Metrics holds the engine and HTTP collectors on a private registry, so
// several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	incomplete  *prometheus.CounterVec
	malformed   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	requests    *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
}

var _ amortization.Recorder = (*Metrics)(nil)

// NewMetrics registers all collectors plus the Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_runs_total",
			Help:      "Schedules computed, by accrual policy.",
		}, []string{"policy"}),
		incomplete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_incomplete_total",
			Help:      "Schedules that reached the month bound with a residual balance.",
		}, []string{"policy"}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Input records coerced by the normalizer, by kind.",
		}, []string{"kind"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_run_seconds",
			Help:      "Time spent computing one schedule.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}, []string{"policy"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by namespace and outcome.",
		}, []string{"namespace", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs, m.incomplete, m.malformed, m.runDuration, m.requests, m.cacheHits,
	)
	return m
}

func (m *Metrics) ObserveRun(policy amortization.AccrualPolicy, elapsed time.Duration, incomplete bool) {
	p := string(policy)
	m.runs.WithLabelValues(p).Inc()
	m.runDuration.WithLabelValues(p).Observe(elapsed.Seconds())
	if incomplete {
		m.incomplete.WithLabelValues(p).Inc()
	}
}

func (m *Metrics) ObserveMalformedRecords(kind string, count int) {
	m.malformed.WithLabelValues(kind).Add(float64(count))
}

// ObserveRequest counts one served request.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveCache counts one cache lookup.
func (m *Metrics) ObserveCache(ns string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheHits.WithLabelValues(ns, result).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
