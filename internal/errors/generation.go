package errors

import (
	"context"
	stderrors "errors"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/postly/postly/internal/ailink"
	"github.com/postly/postly/internal/generate"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
)

// FromGenerationError converts a generation failure into an API envelope.
// Errors that are not generation failures become INTERNAL_ERROR.
func FromGenerationError(ctx context.Context, err error) *errors.ErrorEnvelope {
	var gerr *generate.Error
	if !stderrors.As(err, &gerr) || gerr == nil {
		return WrapInternal(ctx, err, "unexpected error")
	}

	switch gerr.Kind {
	case generate.KindNoInput:
		return WrapNoInput(ctx, err, gerr.Reason)
	case generate.KindInvalidInput:
		return WrapInvalidInput(ctx, err, gerr.Reason)
	case generate.KindQuotaExceeded:
		var exceeded *quota.ExceededError
		if stderrors.As(err, &exceeded) {
			envelope := NewQuotaExceededError(exceeded.Error(), string(exceeded.Class), exceeded.Limit)
			return EnsureCorrelationID(envelope, ctx)
		}
		return WrapInternal(ctx, err, "quota check failed")
	case generate.KindUpstreamFailure:
		providerCode := ""
		var aerr *ailink.Error
		if stderrors.As(err, &aerr) {
			providerCode = aerr.Code
		}
		return WrapUpstreamFailure(ctx, err, gerr.Stage, providerCode)
	case generate.KindMalformedOutput:
		kind := ""
		var perr *sanitize.ParseError
		if stderrors.As(err, &perr) {
			kind = string(perr.Kind)
		}
		return WrapMalformedOutput(ctx, err, gerr.Stage, kind)
	default:
		return WrapInternal(ctx, err, "unexpected error")
	}
}
