package middleware

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"apicore/internal/metrics"
)

// DefaultSlowThreshold marks a request as slow.
const DefaultSlowThreshold = time.Second

// Performance measures wall time and heap delta around next. The
// measurement is recorded whether next succeeds, fails or is abandoned.
func Performance(logger *slog.Logger, m *metrics.Metrics, slow time.Duration) Stage {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (out any, err error) {
			start := time.Now()
			before := heapAlloc()

			defer func() {
				elapsed := time.Since(start)
				delta := int64(heapAlloc()) - int64(before)
				status := statusOf(req.Context.Method, err)
				route := req.Route
				if route == "" {
					route = "unmatched"
				}
				m.ObserveRequest(req.Context.Method, route, status, elapsed, delta)

				attrs := []any{
					slog.String("request_id", req.Context.RequestID),
					slog.String("method", req.Context.Method),
					slog.String("route", route),
					slog.Int("status", status),
					slog.Int64("elapsed_ms", elapsed.Milliseconds()),
					slog.Int64("heap_delta_bytes", delta),
				}
				if elapsed > slow {
					m.ObserveSlow(req.Context.Method, route)
					logger.WarnContext(ctx, "slow request", attrs...)
					return
				}
				logger.DebugContext(ctx, "request performance", attrs...)
			}()

			return next(ctx, req)
		}
	}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}
