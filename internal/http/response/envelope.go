// Package response defines the two JSON envelopes every endpoint emits.
package response

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"apicore/internal/domain"
	"apicore/internal/failure"
)

// Success wraps every successful payload.
type Success struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// OK builds a Success envelope stamped with the current time.
func OK(data any, message, path string) Success {
	return Success{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: domain.FormatTimestamp(time.Now()),
		Path:      path,
	}
}

// ErrorBody is the "error" member of ErrorEnvelope.
type ErrorBody struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details map[string]any   `json:"details"`
	Stack   string           `json:"stack,omitempty"`
}

// ErrorEnvelope wraps every failure.
type ErrorEnvelope struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path"`
}

// Failed builds the envelope for a resolved failure. The stack is kept only
// outside production.
func Failed(out failure.Outcome, path string, production bool) ErrorEnvelope {
	details := out.Details
	if details == nil {
		details = map[string]any{}
	}
	if path == "" {
		path = "unknown"
	}
	env := ErrorEnvelope{
		Error: ErrorBody{
			Code:    out.Code,
			Message: out.Message,
			Details: details,
		},
		Timestamp: domain.FormatTimestamp(time.Now()),
		Path:      path,
	}
	if !production {
		env.Error.Stack = out.Stack
	}
	return env
}

// LogFailure writes the single log line for an error response: error level
// for 5xx, warn otherwise.
func LogFailure(ctx context.Context, logger *slog.Logger, status int, env ErrorEnvelope, requestID string) {
	if logger == nil {
		return
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "request failed",
		slog.Int("status", status),
		slog.String("code", env.Error.Code.String()),
		slog.String("message", env.Error.Message),
		slog.String("path", env.Path),
		slog.String("request_id", requestID),
		slog.Any("details", env.Error.Details),
	)
}
