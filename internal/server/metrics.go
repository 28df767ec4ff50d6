// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// searchRequestsTotal counts completed /api/search requests, partitioned
	// by outcome: "ok" or "empty".
	searchRequestsTotal *prometheus.CounterVec

	// searchDurationSeconds records the wall-clock duration of each
	// /api/search request.
	searchDurationSeconds prometheus.Histogram

	// searchResults records the number of chunks returned per search.
	searchResults prometheus.Histogram

	// ingestDocumentsTotal counts POST /api/documents requests, partitioned
	// by outcome: "ok", "conflict", "invalid", or "error".
	ingestDocumentsTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks written across all ingested documents.
	ingestChunksTotal prometheus.Counter

	// ingestDurationSeconds records the wall-clock duration of each
	// successful ingest, embedding round-trips included.
	ingestDurationSeconds prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		searchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of /api/search requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		searchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragstore",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/search requests.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10},
		}),

		searchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragstore",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of chunks returned per search request.",
			Buckets:   []float64{0, 1, 3, 5, 10, 15, 25, 50},
		}),

		ingestDocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of document ingest requests, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks written across all ingested documents.",
		}),

		ingestDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragstore",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful document ingests, embedding included.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 10, 30, 60},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragstore",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps a handler to record per-endpoint request counts and
// latencies under the given logical name.
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	}
}
