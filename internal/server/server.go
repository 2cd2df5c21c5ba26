package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apperrors "github.com/postly/postly/internal/errors"
	"github.com/postly/postly/internal/observability"
	"github.com/postly/postly/internal/server/handlers"
	servermw "github.com/postly/postly/internal/server/middleware"
)

// Options configures the HTTP server.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Posts serves /analyze, /improve and /quota. Those routes are not
	// registered when nil.
	Posts *handlers.PostHandlers

	// Limiter throttles the generation routes. Nil disables throttling.
	Limiter *servermw.ClientLimiter

	CORS cors.Options

	// TrustProxyHeaders rewrites RemoteAddr from X-Real-IP / X-Forwarded-For.
	// Off, clients are keyed on the socket address.
	TrustProxyHeaders bool

	// AdminToken enables POST /admin/signal behind bearer auth when set.
	AdminToken string
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	opts    Options
	posts   *handlers.PostHandlers
	limiter *servermw.ClientLimiter
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	// RealIP first so quota and rate-limit keys see the caller's address.
	// Any client can set those headers, so it only runs behind a trusted proxy.
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}

	// Our custom middleware in order (RequestID → Metrics → Recovery → CORS)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)
	r.Use(cors.Handler(corsOptions(opts.CORS)))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:  r,
		opts:    opts,
		posts:   opts.Posts,
		limiter: opts.Limiter,
	}

	s.registerRoutes()

	return s
}

// corsOptions fills in the permissive defaults browser and mobile clients expect.
func corsOptions(opts cors.Options) cors.Options {
	if len(opts.AllowedOrigins) == 0 && opts.AllowOriginFunc == nil {
		opts.AllowedOrigins = []string{"*"}
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"Content-Type", "Authorization", servermw.RequestIDHeader}
	}
	if len(opts.ExposedHeaders) == 0 {
		opts.ExposedHeaders = []string{servermw.RequestIDHeader, "Retry-After"}
	}
	return opts
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  durationOr(s.opts.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(s.opts.WriteTimeout, 5*time.Minute),
		IdleTimeout:  durationOr(s.opts.IdleTimeout, 120*time.Second),
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.opts.Port
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
