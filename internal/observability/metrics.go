// Package observability provides logging, metrics, and tracing.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// ProviderRequestsTotal counts upstream provider calls by operation and outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videojob_provider_requests_total",
			Help: "Total number of upstream provider requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	// ProviderRequestDuration records provider call durations by operation.
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videojob_provider_request_duration_seconds",
			Help:    "Upstream provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	// WorkerBatchesTotal counts worker RunOnce invocations by worker name and outcome.
	WorkerBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videojob_worker_batches_total",
			Help: "Total number of worker batch runs by worker and outcome",
		},
		[]string{"worker", "outcome"},
	)
	// WorkerJobsProcessed counts individual job outcomes processed by a worker batch.
	WorkerJobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videojob_worker_jobs_processed_total",
			Help: "Total number of jobs processed by worker batches, by worker and result",
		},
		[]string{"worker", "result"},
	)
	// WorkerSlotsGranted records the number of rate-limit slots granted per batch.
	WorkerSlotsGranted = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videojob_worker_slots_granted",
			Help:    "Rate-limit slots granted per worker batch invocation",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"worker"},
	)

	// CacheHitsTotal counts avatar/voice/credit-balance cache lookups by outcome.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videojob_cache_lookups_total",
			Help: "Total number of cache lookups by key kind and outcome (hit/miss)",
		},
		[]string{"kind", "outcome"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(WorkerBatchesTotal)
	prometheus.MustRegister(WorkerJobsProcessed)
	prometheus.MustRegister(WorkerSlotsGranted)
	prometheus.MustRegister(CacheHitsTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordProviderCall records the outcome and latency of an upstream provider call.
func RecordProviderCall(operation, outcome string, dur time.Duration) {
	ProviderRequestsTotal.WithLabelValues(operation, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(operation).Observe(dur.Seconds())
}

// RecordWorkerBatch records the outcome of a worker RunOnce invocation and the
// slot count it was granted.
func RecordWorkerBatch(worker, outcome string, slotsGranted int) {
	WorkerBatchesTotal.WithLabelValues(worker, outcome).Inc()
	WorkerSlotsGranted.WithLabelValues(worker).Observe(float64(slotsGranted))
}

// RecordWorkerJob records a single job's outcome within a batch (for example
// submitted, failed, completed, in_progress or skipped).
func RecordWorkerJob(worker, result string) {
	WorkerJobsProcessed.WithLabelValues(worker, result).Inc()
}

// RecordCacheLookup records a cache hit or miss for the given key kind.
func RecordCacheLookup(kind, outcome string) {
	CacheHitsTotal.WithLabelValues(kind, outcome).Inc()
}
