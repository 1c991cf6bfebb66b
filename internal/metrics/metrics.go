// Package metrics exposes Prometheus collectors for the HTTP API, the
// catalog gateway, and the exchange workflow.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookshare_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookshare_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookshare_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served.",
	})

	// Catalog gateway
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookshare_catalog_requests_total",
		Help: "Catalog API calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	CatalogLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookshare_catalog_request_duration_seconds",
		Help:    "Latency of catalog API calls, including retries.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation"})

	CatalogCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookshare_catalog_cache_total",
		Help: "Book detail cache lookups by result (hit or miss).",
	}, []string{"result"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bookshare_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookshare_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"name", "from", "to"})

	// Exchange workflow
	ExchangeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookshare_exchange_transitions_total",
		Help: "Exchange state transitions by resulting status.",
	}, []string{"status"})

	OwnershipTransferFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookshare_ownership_transfer_failures_total",
		Help: "Books that could not be transferred when an exchange was accepted.",
	})

	// Server-sent events
	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookshare_sse_clients",
		Help: "Number of connected event stream clients.",
	})
)

// Middleware records request metrics labelled by chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			httpInFlight.Inc()
			defer httpInFlight.Dec()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCatalog records one gateway operation.
func ObserveCatalog(operation, outcome string, start time.Time) {
	CatalogRequests.WithLabelValues(operation, outcome).Inc()
	CatalogLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// CacheResult records a cache lookup.
func CacheResult(hit bool) {
	if hit {
		CatalogCache.WithLabelValues("hit").Inc()
		return
	}
	CatalogCache.WithLabelValues("miss").Inc()
}

// routePattern must run after the handler so chi has filled in the pattern.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
