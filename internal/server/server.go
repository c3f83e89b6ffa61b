package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me/ossched/internal/scheduler"
	"github.com/me/ossched/internal/store"
)

// Server is the ossched REST API server. It exposes one live scheduler so
// that an external driver can admit and dispatch processes over HTTP.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	scheduler scheduler.Scheduler
	store     store.Store          // optional; enables /runs
	gatherer  prometheus.Gatherer // optional; enables /metrics
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore sets the trace store served under /api/v1/runs.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithGatherer sets the Prometheus registry served at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New creates a new Server with all routes registered.
func New(sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		startTime: time.Now(),
		scheduler: sched,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Scheduler state
		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/", s.handleGetScheduler)
			r.Post("/reset", s.handleResetScheduler)
		})

		// Ready queue operations
		r.Route("/procs", func(r chi.Router) {
			r.Post("/", s.handleAddProc)
			r.Post("/return", s.handlePutProc)
			r.Post("/next", s.handleGetProc)
		})

		// Recorded simulation traces
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Get("/dispatches", s.handleListDispatches)
			})
		})
	})
}
