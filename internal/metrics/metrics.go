// Package metrics exposes Prometheus metrics for the HTTP surface, the
// mirror and snapshot persistence.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"virtnet/internal/service"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPResponseSize     *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Mirror Metrics
	MirrorNodes           prometheus.Gauge
	MirrorEdges           prometheus.Gauge
	ExpansionsOutstanding prometheus.Gauge
	OperationsTotal       *prometheus.CounterVec
	DroppedEdgesTotal     prometheus.Counter
	SourceFailuresTotal   *prometheus.CounterVec

	// Persistence Metrics
	PersistFailuresTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric registered, plus the Go
// runtime and process collectors
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.initHTTPMetrics()
	r.initMirrorMetrics()
	return r
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "virtnet_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "virtnet_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "path"},
	)

	r.HTTPResponseSize = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "virtnet_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "virtnet_http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)
}

func (r *Registry) initMirrorMetrics() {
	r.MirrorNodes = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "virtnet_mirror_nodes",
		Help: "Number of nodes in the virtual network",
	})
	r.MirrorEdges = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "virtnet_mirror_edges",
		Help: "Number of edges in the virtual network",
	})
	r.ExpansionsOutstanding = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "virtnet_expansions_outstanding",
		Help: "Number of expanded seeds not yet collapsed",
	})
	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "virtnet_operations_total",
			Help: "Mirror operations by type",
		},
		[]string{"operation"},
	)
	r.DroppedEdgesTotal = promauto.With(r.registry).NewCounter(prometheus.CounterOpts{
		Name: "virtnet_dropped_edges_total",
		Help: "Edges discarded because an endpoint was missing",
	})
	r.SourceFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "virtnet_source_failures_total",
			Help: "Failed neighbor source calls",
		},
		[]string{"kind"},
	)
	r.PersistFailuresTotal = promauto.With(r.registry).NewCounter(prometheus.CounterOpts{
		Name: "virtnet_persist_failures_total",
		Help: "Snapshot saves that failed",
	})
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordResponseSize records the size of a response body
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSize.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight increments the in-flight gauge
func (r *Registry) IncHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight gauge
func (r *Registry) DecHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Dec()
}

// RecordPersistFailure counts a failed snapshot save
func (r *Registry) RecordPersistFailure(error) {
	r.PersistFailuresTotal.Inc()
}

// Observe is an event bus handler that tracks mirror size and operations
func (r *Registry) Observe(ev service.Event) {
	r.OperationsTotal.WithLabelValues(string(ev.Type)).Inc()
	if ev.Dropped > 0 {
		r.DroppedEdgesTotal.Add(float64(ev.Dropped))
	}
	if ev.Type == service.EventAdapterFailed {
		kind := ev.Kind
		if kind == "" {
			kind = "unknown"
		}
		r.SourceFailuresTotal.WithLabelValues(kind).Inc()
	}
	if ev.Snapshot != nil {
		r.MirrorNodes.Set(float64(len(ev.Snapshot.Nodes)))
		r.MirrorEdges.Set(float64(len(ev.Snapshot.Edges)))
		r.ExpansionsOutstanding.Set(float64(len(ev.Snapshot.Expansions)))
	}
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry for tests and embedding
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
