package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"apicore/internal/cache"
	"apicore/internal/domain"
	"apicore/internal/failure"
	"apicore/internal/http/response"
	"apicore/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// Pipeline owns the shared stage configuration and adapts Handlers to gin.
type Pipeline struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Cache         cache.Store
	Limiter       *IPRateLimiter
	Auth          *Authenticator
	Timeout       time.Duration
	SlowThreshold time.Duration
	CacheTTL      time.Duration
	MaxBodyBytes  int64
	Production    bool
}

type routeConfig struct {
	cache      *CacheOptions
	invalidate []string
	guards     []Stage
}

// Option customises one route.
type Option func(*routeConfig)

// WithCache caches GET results of the route.
func WithCache(opts CacheOptions) Option {
	return func(rc *routeConfig) { rc.cache = &opts }
}

// Invalidates drops cached entries matching patterns after a successful call.
func Invalidates(patterns ...string) Option {
	return func(rc *routeConfig) { rc.invalidate = append(rc.invalidate, patterns...) }
}

// Authenticated requires a valid bearer token.
func Authenticated() Option {
	return func(rc *routeConfig) { rc.guards = append(rc.guards, RequireAuth()) }
}

// Roles requires a valid bearer token carrying one of roles.
func Roles(roles ...string) Option {
	return func(rc *routeConfig) { rc.guards = append(rc.guards, RequireRole(roles...)) }
}

// Stages returns the ordered chain for one route: logging, rate limit,
// performance, timeout, transform, shape, then the route's guards, cache and
// invalidation.
func (p *Pipeline) Stages(opts ...Option) Stage {
	var rc routeConfig
	for _, o := range opts {
		o(&rc)
	}
	logger := p.logger()

	stages := []Stage{
		Logging(logger),
		RateLimit(p.Limiter, p.Metrics),
		Performance(logger, p.Metrics, p.SlowThreshold),
		Timeout(p.Timeout),
		Transform(),
		Shape(),
	}
	stages = append(stages, rc.guards...)
	if rc.cache != nil {
		co := *rc.cache
		if co.TTL <= 0 {
			co.TTL = p.CacheTTL
		}
		stages = append(stages, Cache(p.Cache, co, p.Metrics))
	}
	if len(rc.invalidate) > 0 {
		stages = append(stages, Invalidate(p.Cache, rc.invalidate...))
	}
	return Chain(stages...)
}

// Handle adapts h to gin. The returned handler writes exactly one body: the
// shaped result with 201 for POST and 200 otherwise, a response.File as a
// download, or the error envelope resolved from the failure.
func (p *Pipeline) Handle(h Handler, opts ...Option) gin.HandlerFunc {
	run := p.Stages(opts...)(recoverPanics(h))

	return func(c *gin.Context) {
		req := p.newRequest(c)
		defer req.close()

		out, err := p.invoke(c.Request.Context(), run, req)
		if c.Writer.Written() {
			return
		}
		if err != nil {
			p.writeError(c, req, err)
			return
		}
		if f, ok := out.(response.File); ok {
			c.Header("Content-Disposition", f.Disposition())
			c.Data(http.StatusOK, f.ContentType, f.Body)
			return
		}
		c.JSON(SuccessStatus(req.Context.Method), out)
	}
}

// invoke runs the chain and converts panics raised by the stages themselves.
func (p *Pipeline) invoke(ctx context.Context, run Handler, req *Request) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, domain.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return run(ctx, req)
}

func (p *Pipeline) writeError(c *gin.Context, req *Request, err error) {
	out := failure.Resolver{Production: p.Production}.Resolve(err)
	env := response.Failed(out, req.Context.Path, p.Production)
	response.LogFailure(c.Request.Context(), p.logger(), out.Status, env, req.Context.RequestID)
	p.Metrics.ObserveError(out.Code.String())
	c.JSON(out.Status, env)
}

func (p *Pipeline) newRequest(c *gin.Context) *Request {
	id := uuid.NewString()
	c.Set(requestIDKey, id)
	c.Header(RequestIDHeader, id)

	req := &Request{
		Context: domain.RequestContext{
			RequestID: id,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			ClientIP:  c.ClientIP(),
			StartedAt: time.Now(),
		},
		Route:  c.FullPath(),
		Query:  c.Request.URL.Query(),
		Params: make(map[string]string, len(c.Params)),
		Header: c.Request.Header,
	}
	for _, prm := range c.Params {
		req.Params[prm.Key] = prm.Value
	}

	if c.Request.Body != nil {
		body := c.Request.Body
		if p.MaxBodyBytes > 0 {
			body = http.MaxBytesReader(c.Writer, body, p.MaxBodyBytes)
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			req.bodyErr = bodyError(err, p.MaxBodyBytes)
		}
		req.Body = raw
	}

	if token := bearer(c.GetHeader("Authorization")); token != "" && p.Auth != nil {
		claims, err := p.Auth.Parse(token)
		if err != nil {
			req.authErr = err
		} else {
			req.Context.UserID = claims.Subject
			req.Role = claims.Role
		}
	}
	return req
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// GetRequestID returns the id assigned to the request by Handle.
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
