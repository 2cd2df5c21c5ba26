package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/postly/postly/internal/metrics"
	"github.com/postly/postly/internal/observability"
)

// CodeRateLimited matches the API error code for 429 responses.
const CodeRateLimited = "RATE_LIMITED"

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client. It smooths bursts on the
// generation routes and is independent of the daily quota.
type ClientLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time

	// Clock is used in place of time.Now when set.
	Clock func() time.Time
}

// NewClientLimiter allows perMinute requests per client with the given burst.
// Buckets idle for longer than idleTTL are dropped.
func NewClientLimiter(perMinute float64, burst int, idleTTL time.Duration) *ClientLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &ClientLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		idleTTL:  idleTTL,
	}
}

// Allow reports whether clientID may make a request now.
func (l *ClientLimiter) Allow(clientID string) bool {
	_, ok := l.reserve(clientID)
	return ok
}

// reserve takes a token for clientID. When none is available it returns the
// wait until the next one.
func (l *ClientLimiter) reserve(clientID string) (time.Duration, bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	v, ok := l.visitors[clientID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[clientID] = v
	}
	v.lastSeen = now

	if v.limiter.AllowN(now, 1) {
		return 0, true
	}

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0, false
	}
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return wait, false
}

// sweep drops idle buckets at most once per idleTTL. Callers hold mu.
func (l *ClientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, id)
		}
	}
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *ClientLimiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}

// RateLimit rejects requests over the client's burst budget with 429.
// A nil limiter passes every request through.
func RateLimit(limiter *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ClientID(r)
			wait, ok := limiter.reserve(clientID)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			endpoint := EndpointPattern(r)
			metrics.RecordRateLimitRejection(endpoint)
			if observability.ServerLogger != nil {
				observability.ServerLogger.Info("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.String("endpoint", endpoint),
					zap.Duration("retry_after", wait),
					zap.String("requestID", GetRequestID(r.Context())))
			}

			retryAfter := int(math.Ceil(wait.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			envelope := errors.NewErrorEnvelope(CodeRateLimited,
				fmt.Sprintf("too many requests, retry in %d seconds", retryAfter)).
				WithCorrelationID(GetRequestID(r.Context()))
			envelope = envelope.WithDetails(map[string]interface{}{
				"retry_after_seconds": retryAfter,
			})
			writeErrorResponse(w, envelope, http.StatusTooManyRequests)
		})
	}
}
