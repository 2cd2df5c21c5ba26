// Package errors builds the gofulmen error envelopes Postly returns from its
// HTTP API and CLI, and maps them to HTTP status codes.
package errors

import (
	"context"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"

	"github.com/postly/postly/internal/server/middleware"
)

// Error codes returned by the HTTP API.
const (
	CodeNoInput              = "NO_INPUT"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeNotFound             = "NOT_FOUND"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeQuotaExceeded        = "QUOTA_EXCEEDED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeUpstreamFailure      = "UPSTREAM_FAILURE"
	CodeMalformedModelOutput = "MALFORMED_MODEL_OUTPUT"
	CodeInternal             = "INTERNAL_ERROR"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid        = "CONFIG_INVALID"
)

// statusByCode lists every code that is not a 500.
var statusByCode = map[string]int{
	CodeNoInput:            http.StatusBadRequest,
	CodeInvalidInput:       http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodeQuotaExceeded:      http.StatusForbidden,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// HTTPStatusFromCode resolves the HTTP status for an error code.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HTTPStatusFromEnvelope resolves the HTTP status for an envelope; nil is a 500.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

func NewNoInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNoInput, message)
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

// NewQuotaExceededError reports a spent daily quota with its class and ceiling.
func NewQuotaExceededError(message, class string, limit int) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeQuotaExceeded, message).WithDetails(map[string]interface{}{
		"class": class,
		"limit": limit,
	})
}

func NewRateLimitedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeRateLimited, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// The Wrap helpers keep err as the envelope's cause and take correlation and
// trace IDs from the request ID on ctx.

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInvalidInput, err, message)
}

func WrapNoInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeNoInput, err, message)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope, _ := wrap(ctx, CodeInternal, err, message).WithSeverity(errors.SeverityHigh)
	return envelope
}

// WrapUpstreamFailure reports a failed or timed-out model call in stage.
func WrapUpstreamFailure(ctx context.Context, err error, stage, providerCode string) *errors.ErrorEnvelope {
	envelope := wrap(ctx, CodeUpstreamFailure, err, "model request failed")
	envelope, _ = withDetails(envelope, "stage", stage, "provider_code", providerCode).WithSeverity(errors.SeverityHigh)
	return envelope
}

// WrapMalformedOutput reports model output that could not be parsed in stage.
func WrapMalformedOutput(ctx context.Context, err error, stage, kind string) *errors.ErrorEnvelope {
	envelope := wrap(ctx, CodeMalformedModelOutput, err, "model returned an unusable response")
	envelope, _ = withDetails(envelope, "stage", stage, "kind", kind).WithSeverity(errors.SeverityMedium)
	return envelope
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		envelope, _ := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error").WithSeverity(errors.SeverityCritical)
		return envelope
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}
	envelope := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	envelope, _ = withCause(envelope, err).WithSeverity(errors.SeverityHigh)
	return envelope
}

// EnsureCorrelationID fills an empty correlation ID from the request ID on
// ctx, or a generated fallback.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}
	id := requestID(ctx)
	if id == "" {
		id = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(id)
}

func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := requestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(id).
		WithTraceID(id)
	return withCause(envelope, err)
}

// withCause keeps err as the envelope's Original and records its text in the
// logged context.
func withCause(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if err == nil {
		return envelope
	}
	envelope.Original = err
	if updated, cerr := envelope.WithContext(map[string]interface{}{"wrapped_error": err.Error()}); cerr == nil {
		return updated
	}
	return envelope
}

// withDetails adds the non-empty values of alternating key/value pairs.
func withDetails(envelope *errors.ErrorEnvelope, kv ...string) *errors.ErrorEnvelope {
	details := map[string]interface{}{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			details[kv[i]] = kv[i+1]
		}
	}
	if len(details) == 0 {
		return envelope
	}
	return envelope.WithDetails(details)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return middleware.GetRequestID(ctx)
}
