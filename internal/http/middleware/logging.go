package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":        true,
	"confirmpassword": true,
	"oldpassword":     true,
	"newpassword":     true,
	"token":           true,
	"accesstoken":     true,
	"refreshtoken":    true,
	"secret":          true,
	"key":             true,
	"apikey":          true,
	"authorization":   true,
}

// Logging writes one entry line per request and exactly one exit line:
// "request completed" on success or "request errored" on failure. Errors are
// passed on unchanged.
func Logging(logger *slog.Logger) Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			rc := req.Context
			logger.InfoContext(ctx, "incoming request",
				slog.String("request_id", rc.RequestID),
				slog.String("method", rc.Method),
				slog.String("path", rc.Path),
				slog.String("ip", rc.ClientIP),
				slog.String("user_id", rc.UserID),
				slog.String("user_agent", req.Header.Get("User-Agent")),
				slog.Any("query", req.Query),
				slog.Any("body", RedactBody(req.Body)),
			)

			out, err := next(ctx, req)
			elapsed := time.Since(rc.StartedAt)
			attrs := []any{
				slog.String("request_id", rc.RequestID),
				slog.String("method", rc.Method),
				slog.String("path", rc.Path),
				slog.Int("status", statusOf(rc.Method, err)),
				slog.Int64("elapsed_ms", elapsed.Milliseconds()),
			}
			if err != nil {
				logger.ErrorContext(ctx, "request errored", append(attrs, slog.String("error", err.Error()))...)
				return nil, err
			}
			logger.InfoContext(ctx, "request completed", attrs...)
			return out, nil
		}
	}
}

// RedactBody decodes a JSON body and masks sensitive fields at any depth.
// Bodies that are not JSON are summarised by size.
func RedactBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return map[string]any{"nonJsonBytes": len(body)}
	}
	return redact(v)
}

func redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				t[k] = redacted
				continue
			}
			t[k] = redact(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	default:
		return v
	}
}
