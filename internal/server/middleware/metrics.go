package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postly/postly/internal/metrics"
	"github.com/postly/postly/internal/observability"
)

// statusRecorder captures the status code and body size a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// knownRoutes maps paths served outside a chi route context to a stable label.
var knownRoutes = map[string]string{
	"/":               "/",
	"/analyze":        "/analyze",
	"/improve":        "/improve",
	"/quota":          "/quota",
	"/version":        "/version",
	"/metrics":        "/metrics",
	"/health":         "/health/*",
	"/health/live":    "/health/*",
	"/health/ready":   "/health/*",
	"/health/startup": "/health/*",
}

// EndpointPattern returns the chi route pattern for r, falling back to a
// fixed label so arbitrary paths never become metric labels.
func EndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if label, ok := knownRoutes[r.URL.Path]; ok {
		return label
	}
	return "/unknown"
}

// RequestMetrics records the HTTP series for every request and logs its
// completion. It is a pass-through when telemetry is off.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		sample := metrics.HTTPRequest{
			Method:       r.Method,
			Endpoint:     EndpointPattern(r),
			Status:       rec.status,
			Duration:     time.Since(start),
			RequestSize:  max(r.ContentLength, 0),
			ResponseSize: rec.written,
		}
		metrics.RecordHTTPRequest(sample)

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", sample.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", sample.Endpoint),
				zap.Int("status", sample.Status),
				zap.Duration("duration", sample.Duration),
				zap.Int64("request_size", sample.RequestSize),
				zap.Int64("response_size", sample.ResponseSize),
				zap.String("requestID", GetRequestID(r.Context())))
		}
	})
}
