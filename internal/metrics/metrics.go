package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propsearch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "propsearch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})

	// Search metrics
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propsearch",
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Search requests by mode and aggregate source",
	}, []string{"mode", "source"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "propsearch",
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "End-to-end search latency in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2.5},
	}, []string{"mode"})

	// ConsistencyDrift counts responses where the capped map query and the
	// authoritative list count disagreed before reconciliation. Operators
	// watch this to detect drift; it is never user-facing.
	ConsistencyDrift = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "propsearch",
		Subsystem: "search",
		Name:      "consistency_drift_total",
		Help:      "Responses where bucket sum diverged from the list count before reconciliation",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propsearch",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "propsearch",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "propsearch",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})
)

// Middleware records per-request metrics using the chi route pattern to keep
// label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
