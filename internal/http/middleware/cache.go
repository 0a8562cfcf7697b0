package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"apicore/internal/cache"
	"apicore/internal/metrics"
)

const DefaultCacheTTL = 300 * time.Second

// CacheOptions tunes response caching for one route.
type CacheOptions struct {
	TTL time.Duration
	// Key replaces the computed key when set.
	Key string
	// Condition, when set, must return true for the request to use the cache.
	Condition func(*Request) bool
}

// CacheKey is "user:<id>" or "anonymous", then the path, then the query as
// JSON with sorted keys. Every value of a repeated parameter is kept.
func CacheKey(req *Request) string {
	user := "anonymous"
	if req.Context.UserID != "" {
		user = "user:" + req.Context.UserID
	}
	values := req.Query
	if values == nil {
		values = url.Values{}
	}
	q, err := json.Marshal(values)
	if err != nil {
		q = []byte("{}")
	}
	return user + ":" + req.Context.Path + ":" + string(q)
}

// Cache serves GET results from store and stores misses. Only successful
// results are kept.
func Cache(store cache.Store, opts CacheOptions, m *metrics.Metrics) Stage {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			if store == nil || req.Context.Method != http.MethodGet {
				return next(ctx, req)
			}
			if opts.Condition != nil && !opts.Condition(req) {
				return next(ctx, req)
			}
			key := opts.Key
			if key == "" {
				key = CacheKey(req)
			}
			if v, ok := store.Get(key); ok {
				m.ObserveCache(true)
				return v, nil
			}
			m.ObserveCache(false)

			out, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			store.Set(key, out, ttl)
			return out, nil
		}
	}
}

// Invalidate removes cached entries whose key contains any of patterns after
// a successful call.
func Invalidate(store cache.Store, patterns ...string) Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			out, err := next(ctx, req)
			if err != nil || store == nil {
				return out, err
			}
			for _, p := range patterns {
				store.Invalidate(p)
			}
			return out, nil
		}
	}
}
