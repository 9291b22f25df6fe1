package cmd

import (
	"fmt"
	"os"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/core"
	apperrors "github.com/namelens/ascgate/internal/errors"
)

// Exit logs err with its exit code metadata and terminates the process. The
// exit code is derived from the failure kind carried by err.
func Exit(logger *logging.Logger, msg string, err error) {
	ExitWithCode(logger, apperrors.ExitCodeFor(err), msg, err)
}

// ExitWithCode exits the program with a semantic foundry exit code and logs the error.
// The logger may be nil for failures before logger initialization.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %s (exit code: %d)\n", msg, errorText(err), exitCode)
		os.Exit(int(exitCode))
	}

	if logger == nil {
		writeFatal(msg, err)
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	if err != nil {
		envelope := apperrors.EnsureEnvelope(err)
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if len(envelope.Details) > 0 {
			fields = append(fields, zap.Any("error_details", envelope.Details))
		}
		fields = append(fields, zap.String("error", errorText(err)))
	}
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr is a variant that writes to stderr without a logger.
// Use this for early failures before logger initialization.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

func writeFatal(msg string, err error) {
	if err == nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
		return
	}
	if envelope, ok := err.(*gferrors.ErrorEnvelope); ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s [%s]: %s (correlation: %s)\n",
			msg, envelope.Code, core.Redact(envelope.Message), envelope.CorrelationID)
		return
	}
	fmt.Fprintf(os.Stderr, "FATAL: %s: %s\n", msg, errorText(err))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return core.Redact(err.Error())
}
