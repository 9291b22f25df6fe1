package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/config"
	"github.com/namelens/ascgate/internal/core/engine"
	"github.com/namelens/ascgate/internal/observability"
	"github.com/namelens/ascgate/internal/server/handlers"
	servermw "github.com/namelens/ascgate/internal/server/middleware"
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	api      engine.Doer
	journal  handlers.UploadJournal
	window   handlers.RateWindowSource
	upstream string
	health   *handlers.HealthManager
	timeouts config.ServerConfig
}

// Option configures a Server.
type Option func(*Server)

// WithAPI enables the /v1/* passthrough through api.
func WithAPI(api engine.Doer, upstream string) Option {
	return func(s *Server) {
		s.api = api
		s.upstream = upstream
	}
}

// WithJournal enables the /uploads endpoints.
func WithJournal(journal handlers.UploadJournal) Option {
	return func(s *Server) { s.journal = journal }
}

// WithRateWindow enables GET /ratelimit for the local request window.
func WithRateWindow(source handlers.RateWindowSource) Option {
	return func(s *Server) { s.window = source }
}

// WithHealthChecker adds a named check to the health probes.
func WithHealthChecker(name string, checker handlers.HealthChecker) Option {
	return func(s *Server) { s.health.RegisterChecker(name, checker) }
}

// WithTimeouts applies read, write and idle timeouts from configuration.
func WithTimeouts(cfg config.ServerConfig) Option {
	return func(s *Server) { s.timeouts = cfg }
}

// New creates a new HTTP server instance
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	s := &Server{
		router: r,
		host:   host,
		port:   port,
		health: handlers.NewHealthManager(handlers.AppVersion),
		timeouts: config.ServerConfig{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.timeouts.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.timeouts.WriteTimeout,
		IdleTimeout:       s.timeouts.IdleTimeout,
	}

	observability.Logger().Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", addr),
		zap.Bool("passthrough", s.api != nil),
		zap.Bool("journal", s.journal != nil))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	observability.Logger().Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
