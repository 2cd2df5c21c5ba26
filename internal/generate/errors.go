package generate

import (
	"errors"
	"fmt"
)

// Kind classifies generation failures.
type Kind string

const (
	KindNoInput         Kind = "no_input"
	KindInvalidInput    Kind = "invalid_input"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindUpstreamFailure Kind = "upstream_failure"
	KindMalformedOutput Kind = "malformed_model_output"
)

// ErrNoInput is returned when the image or post text is missing.
var ErrNoInput = errors.New("no input provided")

// Error is a generation failure with the stage it happened in.
type Error struct {
	Kind Kind
	// Stage names the model call that failed: draft, refine, improve or variants.
	// Empty for failures detected before any call.
	Stage  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "generation failed"
	}
	msg := e.Reason
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("%s stage: %s", e.Stage, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of a generation error, or "" for other errors.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) && gerr != nil {
		return gerr.Kind
	}
	return ""
}

func noInput(reason string) *Error {
	return &Error{Kind: KindNoInput, Reason: reason, Err: ErrNoInput}
}

func upstream(stage string, err error) *Error {
	return &Error{Kind: KindUpstreamFailure, Stage: stage, Reason: "upstream error", Err: err}
}

func malformed(stage string, err error) *Error {
	return &Error{Kind: KindMalformedOutput, Stage: stage, Reason: fmt.Sprintf("invalid %s JSON", stage), Err: err}
}
