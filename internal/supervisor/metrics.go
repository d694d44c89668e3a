package supervisor

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
			Name: "wrenchd_supervisor_http_requests_total",
			Help: "Total number of HTTP requests handled by the supervisor.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wrenchd_supervisor_http_request_duration_seconds",
			Help:    "Supervisor HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wrenchd_sessions_active",
		Help: "Number of session processes this supervisor believes are currently live.",
	})

	sessionsLaunchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrenchd_sessions_launched_total",
			Help: "Total number of startSimulation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	sessionLaunchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wrenchd_session_launch_duration_seconds",
		Help:    "Time from receiving startSimulation to learning the session's init outcome.",
		Buckets: prometheus.DefBuckets,
	})

	sessionsExitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrenchd_sessions_exited_total",
			Help: "Total number of session processes that have exited, by terminal exit class.",
		},
		[]string{"exit_class"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(sessionsActive)
	prometheus.MustRegister(sessionsLaunchedTotal)
	prometheus.MustRegister(sessionLaunchDuration)
	prometheus.MustRegister(sessionsExitedTotal)
	for _, outcome := range []string{"succeeded", "failed"} {
		sessionsLaunchedTotal.WithLabelValues(outcome)
	}
	for _, class := range []string{"clean", "failed", "crashed"} {
		sessionsExitedTotal.WithLabelValues(class)
	}
}

// recordSessionExit decrements the active-sessions gauge and increments the
// terminal-exit-class counter. Called by the spawner's reaper goroutine.
func recordSessionExit(exitClass string) {
	sessionsActive.Dec()
	sessionsExitedTotal.WithLabelValues(exitClass).Inc()
}

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
