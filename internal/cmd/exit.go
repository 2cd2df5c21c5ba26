package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	errwrap "github.com/postly/postly/internal/errors"
	"github.com/postly/postly/internal/generate"
)

// osExit is swapped in tests.
var osExit = os.Exit

// ExitCodeFor maps a non-nil command error to a semantic exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	var envelope *errors.ErrorEnvelope
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return foundry.ExitFileNotFound
	case generate.KindOf(err) == generate.KindUpstreamFailure:
		return foundry.ExitExternalServiceUnavailable
	case stderrors.As(err, &envelope) && envelope.Code == errwrap.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode logs msg and err with the exit code's catalog metadata, then
// exits. A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	fields := []zap.Field{zap.Int("exit_code", int(exitCode))}
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fields = append(fields,
			zap.String("exit_name", info.Name),
			zap.String("exit_category", info.Category))
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		err = underlying(envelope)
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
	osExit(int(exitCode))
}

// ExitWithCodeStderr reports to stderr and exits; used before a logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	writeFatal(os.Stderr, exitCode, msg, err)
	osExit(int(exitCode))
}

func writeFatal(w io.Writer, exitCode foundry.ExitCode, msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case stderrors.As(err, &envelope):
		fmt.Fprintf(w, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if cause := underlying(envelope); cause != envelope {
			fmt.Fprintf(w, "Underlying error: %v\n", cause)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}

	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	} else {
		fmt.Fprintf(w, "Exit Code: %d\n", exitCode)
	}
}

// underlying returns the error an envelope wraps, or the envelope itself.
func underlying(envelope *errors.ErrorEnvelope) error {
	if cause, ok := envelope.Original.(error); ok && cause != nil {
		return cause
	}
	return envelope
}
