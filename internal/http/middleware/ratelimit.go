package middleware

import (
	"context"
	"sync"
	"time"

	"apicore/internal/domain"
	"apicore/internal/metrics"

	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	ips      sync.Map // map[string]*rate.Limiter
	perMin   int
	rateFunc func() *rate.Limiter
}

// NewIPRateLimiter allows requestsPerMinute per IP with an equal burst. It
// returns nil when requestsPerMinute is not positive.
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return &IPRateLimiter{
		perMin: requestsPerMinute,
		rateFunc: func() *rate.Limiter {
			return rate.NewLimiter(
				rate.Every(time.Minute/time.Duration(requestsPerMinute)),
				requestsPerMinute,
			)
		},
	}
}

// GetLimiter returns the limiter for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	limiter, _ := i.ips.LoadOrStore(ip, i.rateFunc())
	return limiter.(*rate.Limiter)
}

// CleanupExpired drops limiters whose bucket has refilled.
func (i *IPRateLimiter) CleanupExpired() {
	i.ips.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(limiter.Burst()) {
			i.ips.Delete(key)
		}
		return true
	})
}

// RateLimit rejects requests over the per-IP budget with RATE_LIMIT_EXCEEDED.
// A nil limiter disables the stage.
func RateLimit(limiter *IPRateLimiter, m *metrics.Metrics) Stage {
	if limiter == nil {
		return nil
	}
	retry := time.Minute / time.Duration(max(limiter.perMin, 1))
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			if !limiter.GetLimiter(req.Context.ClientIP).Allow() {
				m.ObserveRateLimited(req.Route)
				return nil, domain.RateLimited(retry)
			}
			return next(ctx, req)
		}
	}
}
