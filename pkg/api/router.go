package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/cuemby/shepherd/pkg/health"
	"github.com/cuemby/shepherd/pkg/metrics"
)

// Options configures the worker's HTTP surface
type Options struct {
	// Version is reported by the liveness endpoint
	Version string

	// CORSOrigins is the allowed origin list for browser clients
	CORSOrigins []string

	// RateLimit is requests per minute per client IP on /api/v1
	// routes. Zero disables limiting.
	RateLimit int
}

// Server is one worker's HTTP surface: health probes, metrics, and the
// demonstration user API
type Server struct {
	health    *health.State
	users     *userStore
	version   string
	startedAt time.Time
	router    chi.Router
}

// NewServer creates the HTTP surface backed by the given health state
func NewServer(state *health.State, opts Options) *Server {
	s := &Server{
		health:    state,
		users:     newUserStore(),
		version:   opts.Version,
		startedAt: time.Now(),
	}
	s.router = s.routes(opts)
	return s
}

// Handler returns the root handler for an http.Server
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware stack, applied to all routes in order
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Probe endpoints stay outside the rate limit: load balancers and
	// the supervisor hit them constantly
	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleReady)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}
		r.Use(httpMetrics)

		r.Get("/users", s.handleListUsers)
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}", s.handleGetUser)
		r.Put("/users/{id}", s.handleUpdateUser)
		r.Delete("/users/{id}", s.handleDeleteUser)
	})

	return r
}
