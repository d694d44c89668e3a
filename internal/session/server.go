// Package session implements the per-session HTTP handler set: the REST
// surface a client drives after startSimulation hands it a port. Every
// handler marshals JSON into a controller call and the controller's result
// back into JSON; none of them hold simulation state of their own.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wrenchsim/daemon/internal/controller"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server wraps the chi router and the controller this session drives.
type Server struct {
	router      *chi.Mux
	controller  *controller.Controller
	logger      *slog.Logger
	onTerminate func()
	shutdown    func()
}

// NewServer creates and configures a new HTTP server for one session.
// onTerminate is invoked after /api/terminateSimulation has stopped the
// controller and the server started by Serve has been shut down.
func NewServer(ctrl *controller.Controller, logger *slog.Logger, onTerminate func()) *Server {
	srv := &Server{
		router:      chi.NewRouter(),
		controller:  ctrl,
		logger:      logger,
		onTerminate: onTerminate,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
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

	s.router.Get("/api/alive", s.handleAlive)
	s.router.Post("/api/terminateSimulation", s.handleTerminateSimulation)
	s.router.Post("/api/getTime", s.handleGetTime)
	s.router.Post("/api/getAllHostnames", s.handleGetAllHostnames)
	s.router.Post("/api/advanceTime", s.handleAdvanceTime)
	s.router.Post("/api/addService", s.handleAddService)
	s.router.Post("/api/createStandardJob", s.handleCreateStandardJob)
	s.router.Post("/api/submitStandardJob", s.handleSubmitStandardJob)
	s.router.Post("/api/getSimulationEvents", s.handleGetSimulationEvents)
	s.router.Post("/api/waitForNextSimulationEvent", s.handleWaitForNextSimulationEvent)
	s.router.Post("/api/standardJobGetNumTasks", s.handleStandardJobGetNumTasks)
}

// Router returns the chi router, useful for serving on an inherited
// listener from main().
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Serve runs the HTTP server on ln until the server is shut down via
// terminateSimulation or the process receives SIGINT/SIGTERM.
func (s *Server) Serve(ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.shutdown = func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("session shutdown", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		<-quit
		s.shutdown()
	}()

	s.logger.Info("session listening", "addr", ln.Addr().String())
	err := httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// loggingMiddleware logs each request using the structured logger.
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
