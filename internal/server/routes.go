package server

import (
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/config"
	"github.com/namelens/ascgate/internal/observability"
	"github.com/namelens/ascgate/internal/server/handlers"
)

// AdminTokenEnv enables POST /admin/signal when set.
const AdminTokenEnv = config.EnvPrefix + "_ADMIN_TOKEN"

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.NewVersionHandler(s.upstream))

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	if s.api != nil {
		s.router.Get("/v1/*", handlers.NewAPIProxy(s.api).ServeHTTP)
	}
	s.router.Get("/ratelimit", handlers.NewRateWindowHandler(s.window))
	s.router.Get("/uploads", handlers.NewListUploadsHandler(s.journal))
	s.router.Get("/uploads/{id}", handlers.NewGetUploadHandler(s.journal))

	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	adminToken := strings.TrimSpace(os.Getenv(AdminTokenEnv))
	logger := observability.Logger()

	if adminToken == "" {
		logger.Debug("Admin signal endpoint disabled (no " + AdminTokenEnv + " set)")
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	logger.Info("Admin signal endpoint enabled",
		zap.String("path", "/admin/signal"),
		zap.String("auth", "bearer token"),
		zap.String("rate_limit", "10/min, burst 5"))
	logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
}
