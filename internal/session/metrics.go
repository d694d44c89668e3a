package session

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrenchd_session_http_requests_total",
			Help: "Total number of HTTP requests handled by a session process.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wrenchd_session_http_request_duration_seconds",
			Help:    "Session HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	eventsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrenchd_session_events_delivered_total",
			Help: "Total number of simulation events delivered to this session's client.",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(eventsDeliveredTotal)
}

// metricsMiddleware records request count and duration for every HTTP
// request, keyed by the matched chi route pattern to avoid unbounded
// cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// recordEventDelivered increments the per-event-type delivery counter.
func recordEventDelivered(eventType string) {
	eventsDeliveredTotal.WithLabelValues(eventType).Inc()
}
