package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postly/postly/internal/observability"
	"github.com/postly/postly/internal/server/handlers"
	servermw "github.com/postly/postly/internal/server/middleware"
)

// Admin signal endpoint throttle, per minute.
const (
	adminSignalRate  = 10
	adminSignalBurst = 5
)

func (s *Server) registerRoutes() {
	r := s.router
	r.Get("/", handlers.RootHandler)

	if s.posts != nil {
		r.Group(func(gen chi.Router) {
			gen.Use(servermw.RateLimit(s.limiter))
			gen.Post("/analyze", s.posts.Analyze)
			gen.Post("/improve", s.posts.Improve)
		})
		r.Get("/quota", s.posts.Quota)
	}

	r.Route("/health", func(health chi.Router) {
		health.Get("/", handlers.HealthHandler)
		health.Get("/live", handlers.LivenessHandler)
		health.Get("/ready", handlers.ReadinessHandler)
		health.Get("/startup", handlers.StartupHandler)
	})
	r.Get("/version", handlers.VersionHandler)
	r.Get("/metrics", MetricsHandler)

	if s.opts.AdminToken != "" {
		s.registerAdminSignals()
	}
}

// registerAdminSignals exposes gofulmen's signal handler so operators can
// trigger a reload or shutdown over HTTP where sending SIGHUP is awkward.
func (s *Server) registerAdminSignals() {
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: adminSignalRate,
		RateBurst: adminSignalBurst,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger := observability.ServerLogger; logger != nil {
		logger.Warn("Admin signal endpoint enabled; keep this server off the public internet",
			zap.String("path", "/admin/signal"),
			zap.Int("rate_per_minute", adminSignalRate),
			zap.Int("burst", adminSignalBurst))
	}
}
