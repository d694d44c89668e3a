// Package supervisor implements the master daemon: it exposes
// startSimulation, allocates a port, spawns a per-client session process,
// and propagates that session's init outcome back to the client without
// ever blocking on the session's eventual exit.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/semaphore"

	"github.com/wrenchsim/daemon/internal/model"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	// maxConcurrentSpawns bounds how many startSimulation calls may be
	// mid-spawn at once, so a burst of requests cannot fork-bomb the host.
	maxConcurrentSpawns = 32
)

// sessionSpawner is the narrow interface the HTTP layer depends on, so
// tests can exercise handleStartSimulation without forking a real session
// process.
type sessionSpawner interface {
	Spawn(ctx context.Context, platformXML, controllerHostname string) spawnResult
}

// Server is the supervisor's HTTP front end.
type Server struct {
	router  *chi.Mux
	spawner sessionSpawner
	store   *AuditStore
	logger  *slog.Logger
	addr    string
	sem     *semaphore.Weighted
}

// NewServer creates and configures the supervisor's HTTP server.
func NewServer(addr string, spawner sessionSpawner, store *AuditStore, logger *slog.Logger) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		spawner: spawner,
		store:   store,
		logger:  logger,
		addr:    addr,
		sem:     semaphore.NewWeighted(maxConcurrentSpawns),
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())
	s.router.Post("/api/startSimulation", s.handleStartSimulation)
	s.router.Get("/api/sessions", s.handleListSessions)
}

// Router returns the chi router, primarily for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("supervisor listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("supervisor stopped")
	return nil
}

type startSimulationRequest struct {
	PlatformXML        string `json:"platform_xml"`
	ControllerHostname string `json:"controller_hostname"`
}

type startSimulationResponse struct {
	Success      bool   `json:"success"`
	PortNumber   int    `json:"port_number,omitempty"`
	FailureCause string `json:"failure_cause,omitempty"`
}

func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	var req startSimulationRequest
	r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.PlatformXML == "" {
		s.writeJSON(w, http.StatusOK, startSimulationResponse{Success: false, FailureCause: "platform_xml is required"})
		return
	}
	if req.ControllerHostname == "" {
		s.writeJSON(w, http.StatusOK, startSimulationResponse{Success: false, FailureCause: "controller_hostname is required"})
		return
	}

	if !s.sem.TryAcquire(1) {
		s.writeJSON(w, http.StatusOK, startSimulationResponse{Success: false, FailureCause: "too many simulations starting concurrently, try again shortly"})
		return
	}
	defer s.sem.Release(1)

	start := time.Now()
	result := s.spawner.Spawn(r.Context(), req.PlatformXML, req.ControllerHostname)
	sessionLaunchDuration.Observe(time.Since(start).Seconds())

	if result.err != nil {
		sessionsLaunchedTotal.WithLabelValues("failed").Inc()
		s.writeJSON(w, http.StatusOK, startSimulationResponse{Success: false, FailureCause: result.err.Error()})
		return
	}

	sessionsLaunchedTotal.WithLabelValues("succeeded").Inc()
	s.writeJSON(w, http.StatusOK, startSimulationResponse{Success: true, PortNumber: result.record.Port})
}

type listSessionsResponse struct {
	Sessions []*model.SessionRecord `json:"sessions"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list sessions", "error", err)
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*model.SessionRecord{}
	}
	s.writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: records})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
