// Package metrics holds Prometheus metrics for the application.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	UsersCreated     prometheus.Counter
	AllocationsMade  prometheus.Counter
	TimelinesBuilt   prometheus.Counter
	CertificateBytes prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cetrack_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cetrack_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cetrack_users_created_total",
			Help: "Total number of users created lazily from resolved identities",
		}),
		AllocationsMade: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cetrack_allocations_created_total",
			Help: "Total number of credit allocations created",
		}),
		TimelinesBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cetrack_timelines_built_total",
			Help: "Total number of timeline builds served",
		}),
		CertificateBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cetrack_certificate_bytes_stored_total",
			Help: "Total certificate bytes written to the blob store",
		}),
	}
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chiRoutePattern(r)
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// chiRoutePattern returns the matched chi route pattern, falling back to
// a constant when no route matched so 404 traffic cannot explode the
// label cardinality.
func chiRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
