package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace prefixes every metric exported by the server.
const metricsNamespace = "docqa"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// uploadsTotal counts completed uploads by outcome.
	uploadsTotal *prometheus.CounterVec
	// uploadDurationSeconds covers extraction, archiving, embedding and indexing.
	uploadDurationSeconds *prometheus.HistogramVec
	// askTotal counts completed questions by outcome.
	askTotal *prometheus.CounterVec
	// askDurationSeconds covers question embedding, search and generation.
	askDurationSeconds *prometheus.HistogramVec
	// documentChunks is the number of chunks in the loaded document.
	documentChunks prometheus.Gauge
	// httpRequestsTotal counts all HTTP requests by method, handler and code.
	httpRequestsTotal *prometheus.CounterVec
	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upload",
			Name:      "requests_total",
			Help:      "Total number of document uploads, partitioned by outcome.",
		}, []string{"outcome"}),

		uploadDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of document uploads.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),

		askTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of questions answered, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of questions from receipt to answer.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		documentChunks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "index",
			Name:      "document_chunks",
			Help:      "Number of chunks in the currently loaded document.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}

// instrument records request count and latency for next under the logical
// handler name, so aliases such as /ask and /api/ask share one series.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
