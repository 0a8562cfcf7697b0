package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"apicore/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	MinTimeout     = time.Second
	MaxTimeout     = 300 * time.Second

	// TimeoutHeader overrides the deadline of one request, in milliseconds.
	TimeoutHeader = "X-Timeout"
)

// ResolveTimeout picks the deadline for a request: the header value clamped
// to [MinTimeout, MaxTimeout], or def when the header is absent or invalid.
func ResolveTimeout(header string, def time.Duration) time.Duration {
	if def <= 0 {
		def = DefaultTimeout
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(header), 10, 64)
	if err != nil || ms <= 0 {
		return def
	}
	d := time.Duration(ms) * time.Millisecond
	return min(max(d, MinTimeout), MaxTimeout)
}

// Timeout races next against the request deadline. On expiry it returns a
// REQUEST_TIMEOUT error, cancels the handler context and drops whatever the
// handler produces later.
func Timeout(def time.Duration) Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			d := ResolveTimeout(req.Header.Get(TimeoutHeader), def)
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				out any
				err error
			}
			done := make(chan result, 1)
			go func() {
				out, err := recoverPanics(next)(tctx, req)
				done <- result{out, err}
			}()

			select {
			case r := <-done:
				return r.out, r.err
			case <-tctx.Done():
				if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
					return nil, domain.RequestTimeout(d)
				}
				return nil, ctx.Err()
			}
		}
	}
}
