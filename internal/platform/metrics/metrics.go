package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the chunk player and its
// telemetry HTTP surface.
type Metrics struct {
	registry *prometheus.Registry

	chunkRequestsTotal  prometheus.Counter
	staleResponsesTotal prometheus.Counter
	fetchErrorsTotal    prometheus.Counter
	recordsWrittenTotal prometheus.Counter
	storeErrorsTotal    prometheus.Counter
	endOfStreamTotal    prometheus.Counter
	pendingRequests     prometheus.Gauge
	fetchLatency        prometheus.Histogram

	httpRequestsTotal prometheus.Counter
	httpErrorsTotal   prometheus.Counter
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		chunkRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_chunk_requests_total",
			Help: "Total number of chunk requests sent to the transcoding service",
		}),
		staleResponsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_stale_responses_total",
			Help: "Total number of chunk responses discarded because their id was no longer pending",
		}),
		fetchErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_fetch_errors_total",
			Help: "Total number of failed chunk requests (network errors, non-2xx, malformed payloads)",
		}),
		recordsWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_metric_records_written_total",
			Help: "Total number of metric records appended to the local store",
		}),
		storeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_store_errors_total",
			Help: "Total number of metric store failures",
		}),
		endOfStreamTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_end_of_stream_total",
			Help: "Total number of streams that reached end-of-stream",
		}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_pending_requests",
			Help: "Number of chunk requests awaiting a response",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "player_fetch_duration_seconds",
			Help:    "Chunk fetch latency from request sent to response received",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		httpRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		httpErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
	}

	registry.MustRegister(
		m.chunkRequestsTotal,
		m.staleResponsesTotal,
		m.fetchErrorsTotal,
		m.recordsWrittenTotal,
		m.storeErrorsTotal,
		m.endOfStreamTotal,
		m.pendingRequests,
		m.fetchLatency,
		m.httpRequestsTotal,
		m.httpErrorsTotal,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncChunkRequests increments the chunk request counter.
func (m *Metrics) IncChunkRequests() {
	m.chunkRequestsTotal.Inc()
}

// IncStaleResponses increments the stale response counter.
func (m *Metrics) IncStaleResponses() {
	m.staleResponsesTotal.Inc()
}

// IncFetchErrors increments the fetch error counter.
func (m *Metrics) IncFetchErrors() {
	m.fetchErrorsTotal.Inc()
}

// IncRecordsWritten increments the metric records counter.
func (m *Metrics) IncRecordsWritten() {
	m.recordsWrittenTotal.Inc()
}

// IncStoreErrors increments the store error counter.
func (m *Metrics) IncStoreErrors() {
	m.storeErrorsTotal.Inc()
}

// IncEndOfStream increments the end-of-stream counter.
func (m *Metrics) IncEndOfStream() {
	m.endOfStreamTotal.Inc()
}

// SetPendingRequests sets the pending requests gauge.
func (m *Metrics) SetPendingRequests(n int) {
	m.pendingRequests.Set(float64(n))
}

// ObserveFetchLatency records one fetch round-trip.
func (m *Metrics) ObserveFetchLatency(d time.Duration) {
	m.fetchLatency.Observe(d.Seconds())
}

// IncRequests increments the total HTTP request counter.
func (m *Metrics) IncRequests() {
	m.httpRequestsTotal.Inc()
}

// IncErrors increments the HTTP errors counter.
func (m *Metrics) IncErrors() {
	m.httpErrorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
