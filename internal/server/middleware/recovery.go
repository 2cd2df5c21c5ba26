package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/postly/postly/internal/metrics"
	"github.com/postly/postly/internal/observability"
)

const codeInternal = "INTERNAL_ERROR"

// Recovery turns a handler panic into a 500 error envelope. The panic value
// and stack are logged; the caller only gets the request ID.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			requestID := GetRequestID(r.Context())
			metrics.RecordPanic()
			if logger := observability.ServerLogger; logger != nil {
				logger.Error("Recovered from panic",
					zap.String("panic", fmt.Sprint(recovered)),
					zap.String("endpoint", EndpointPattern(r)),
					zap.String("requestID", requestID),
					zap.ByteString("stack_trace", debug.Stack()))
			}

			envelope, _ := errors.NewErrorEnvelope(codeInternal, "internal server error").
				WithCorrelationID(requestID).
				WithSeverity(errors.SeverityCritical)
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorResponse mirrors the API error body. Middleware writes it directly
// because the errors package imports this one.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   envelope.Details,
		RequestID: envelope.CorrelationID,
	}})
}
