// Package server hosts the local dashboard API over the job engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/touchthesun/marvin-sub002/internal/errors"
	"github.com/touchthesun/marvin-sub002/internal/server/handlers"
	"github.com/touchthesun/marvin-sub002/internal/server/middleware"
	"github.com/touchthesun/marvin-sub002/pkg/jobengine"
)

// Options configures the HTTP server.
type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// Server exposes the job engine over HTTP.
type Server struct {
	opts   Options
	engine *jobengine.Engine
	router chi.Router
	log    *zap.Logger
	http   *http.Server
}

// New builds a server over the given engine. The engine may be nil in
// tests that only exercise routing.
func New(engine *jobengine.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	middleware.SetLogger(opts.Logger)

	s := &Server{
		opts:   opts,
		engine: engine,
		log:    opts.Logger,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.RealIP)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusNotFound, "NOT_FOUND",
			"no such endpoint: "+req.URL.Path, middleware.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("%s not allowed on %s", req.Method, req.URL.Path),
			middleware.GetRequestID(req.Context()))
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)

	if s.engine != nil {
		jobs := handlers.NewJobsHandler(s.engine)
		r.Route("/api/v1/jobs", func(r chi.Router) {
			r.Get("/", jobs.List)
			r.Post("/", jobs.Create)
			r.Get("/{id}", jobs.Get)
			r.Post("/{id}/cancel", jobs.Cancel)
			r.Post("/{id}/retry", jobs.Retry)
		})
	}

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured listen port.
func (s *Server) Port() int { return s.opts.Port }

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard API listening", zap.String("addr", s.Addr()))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down dashboard API")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
