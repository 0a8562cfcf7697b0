package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"apicore/internal/cache"
	"apicore/internal/domain"
	"apicore/internal/http/response"
	"apicore/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
	Path      string          `json:"path"`
	Error     *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
		Stack   string         `json:"stack"`
	} `json:"error"`
}

func newPipeline() *Pipeline {
	return &Pipeline{
		Logger:  logging.Discard(),
		Cache:   cache.NewMemoryStore(),
		Auth:    NewAuthenticator("test-secret", time.Hour),
		Timeout: time.Second,
	}
}

// serve sends one request and decodes exactly one JSON body from the reply.
func serve(t *testing.T, r *gin.Engine, method, target string, body io.Reader, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	dec := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	var env envelope
	if err := dec.Decode(&env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Fatalf("expected exactly one body, got trailing data: %s", w.Body.String())
	}
	return w, env
}

func TestHandleShapesSuccess(t *testing.T) {
	p := newPipeline()
	r := gin.New()
	r.GET("/api/things", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return map[string]any{"name": "widget"}, nil
	}))
	r.POST("/api/things", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return map[string]any{"id": "1"}, nil
	}))

	w, env := serve(t, r, http.MethodGet, "/api/things", nil, nil)
	if w.Code != http.StatusOK || !env.Success || env.Message != "Data retrieved successfully" || env.Path != "/api/things" {
		t.Fatalf("unexpected GET reply: %d %+v", w.Code, env)
	}
	if _, err := uuid.Parse(w.Header().Get(RequestIDHeader)); err != nil {
		t.Fatalf("request id header should be a uuid: %q", w.Header().Get(RequestIDHeader))
	}
	if _, err := time.Parse(domain.TimestampLayout, env.Timestamp); err != nil {
		t.Fatalf("timestamp %q not in canonical layout", env.Timestamp)
	}

	w, env = serve(t, r, http.MethodPost, "/api/things", nil, nil)
	if w.Code != http.StatusCreated || env.Message != "Resource created successfully" {
		t.Fatalf("unexpected POST reply: %d %+v", w.Code, env)
	}
}

func TestHandleKeepsPaginatedStructureAndEnvelopes(t *testing.T) {
	p := newPipeline()
	r := gin.New()
	r.GET("/page", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return domain.NewPaginatedResult([]string{"a", "b"}, 3, domain.PaginationQuery{Page: 1, Limit: 2}), nil
	}))
	r.GET("/shaped", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return response.OK("x", "custom", "/elsewhere"), nil
	}))

	_, env := serve(t, r, http.MethodGet, "/page", nil, nil)
	var page struct {
		Data []string        `json:"data"`
		Meta domain.PageMeta `json:"meta"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Data) != 2 || page.Meta.Total != 3 || page.Meta.TotalPages != 2 || !page.Meta.HasNextPage {
		t.Fatalf("unexpected page: %+v", page)
	}

	_, env = serve(t, r, http.MethodGet, "/shaped", nil, nil)
	if env.Message != "custom" || env.Path != "/elsewhere" {
		t.Fatalf("pre-shaped envelope should pass through: %+v", env)
	}
}

func TestHandleTimeout(t *testing.T) {
	p := newPipeline()
	p.Timeout = 20 * time.Millisecond
	released := make(chan struct{})
	r := gin.New()
	r.GET("/slow", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		<-ctx.Done()
		defer close(released)
		return "late", nil
	}))

	w, env := serve(t, r, http.MethodGet, "/slow", nil, nil)
	if w.Code != http.StatusRequestTimeout || env.Error == nil || env.Error.Code != "REQUEST_TIMEOUT" {
		t.Fatalf("expected 408 REQUEST_TIMEOUT, got %d %s", w.Code, w.Body.String())
	}
	if env.Error.Details["timeoutMs"] != float64(20) {
		t.Fatalf("unexpected details: %+v", env.Error.Details)
	}
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("handler context should have been cancelled")
	}
}

func TestHandlePanicAndErrors(t *testing.T) {
	p := newPipeline()
	r := gin.New()
	r.GET("/panic", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		panic("boom")
	}))
	r.GET("/missing", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return nil, domain.NotFound("User", "42")
	}))

	w, env := serve(t, r, http.MethodGet, "/panic", nil, nil)
	if w.Code != http.StatusInternalServerError || env.Error.Code != "INTERNAL_SERVER_ERROR" {
		t.Fatalf("expected 500, got %d %s", w.Code, w.Body.String())
	}
	if env.Error.Details["value"] != "boom" || env.Error.Stack == "" {
		t.Fatalf("development replies carry the panic value and stack: %+v", env.Error)
	}

	p.Production = true
	r2 := gin.New()
	r2.GET("/panic", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		panic("boom")
	}))
	_, env = serve(t, r2, http.MethodGet, "/panic", nil, nil)
	if env.Error.Stack != "" || env.Error.Details["originalError"] != nil {
		t.Fatalf("production replies must hide internals: %+v", env.Error)
	}

	w, env = serve(t, r, http.MethodGet, "/missing", nil, nil)
	if w.Code != http.StatusNotFound || env.Error.Code != "RESOURCE_NOT_FOUND" || env.Error.Message != "User with ID 42 not found" {
		t.Fatalf("unexpected not found reply: %d %s", w.Code, w.Body.String())
	}
	if env.Success || env.Path != "/missing" {
		t.Fatalf("error envelope malformed: %+v", env)
	}
}

func TestHandleSkipsWrittenResponses(t *testing.T) {
	p := newPipeline()
	r := gin.New()
	r.GET("/raw", func(c *gin.Context) {
		c.String(http.StatusTeapot, "{}")
		c.Next()
	}, p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return "ignored", nil
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/raw", nil))
	if w.Code != http.StatusTeapot || w.Body.String() != "{}" {
		t.Fatalf("already written reply must not be written again: %d %q", w.Code, w.Body.String())
	}
}

func TestHandleCacheAndInvalidate(t *testing.T) {
	p := newPipeline()
	var calls atomic.Int32
	r := gin.New()
	r.GET("/api/items", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		calls.Add(1)
		return map[string]any{"n": calls.Load()}, nil
	}, WithCache(CacheOptions{})))
	r.POST("/api/items", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return "ok", nil
	}, Invalidates(":/api/items")))

	serve(t, r, http.MethodGet, "/api/items?b=2&a=1", nil, nil)
	serve(t, r, http.MethodGet, "/api/items?a=1&b=2", nil, nil)
	if calls.Load() != 1 {
		t.Fatalf("same query in another order should hit the cache, calls=%d", calls.Load())
	}
	serve(t, r, http.MethodGet, "/api/items?a=2", nil, nil)
	if calls.Load() != 2 {
		t.Fatalf("different query should miss, calls=%d", calls.Load())
	}
	serve(t, r, http.MethodPost, "/api/items", strings.NewReader(`{}`), nil)
	serve(t, r, http.MethodGet, "/api/items?a=1&b=2", nil, nil)
	if calls.Load() != 3 {
		t.Fatalf("write should invalidate cached listings, calls=%d", calls.Load())
	}
}

func TestHandleCacheKeepsRepeatedParams(t *testing.T) {
	p := newPipeline()
	r := gin.New()
	r.GET("/api/items", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return req.Query["filters[owner_id]"], nil
	}, WithCache(CacheOptions{})))

	_, first := serve(t, r, http.MethodGet, "/api/items?filters[owner_id]=A&filters[owner_id]=B", nil, nil)
	_, second := serve(t, r, http.MethodGet, "/api/items?filters[owner_id]=A&filters[owner_id]=C", nil, nil)
	if string(first.Data) != `["A","B"]` || string(second.Data) != `["A","C"]` {
		t.Fatalf("each filter set needs its own entry: first=%s second=%s", first.Data, second.Data)
	}
}

func TestCacheKey(t *testing.T) {
	req := &Request{
		Context: domain.RequestContext{Path: "/api/users"},
		Query:   map[string][]string{"page": {"2"}, "limit": {"5"}},
	}
	if got := CacheKey(req); got != `anonymous:/api/users:{"limit":["5"],"page":["2"]}` {
		t.Fatalf("unexpected key %q", got)
	}

	first := &Request{Context: req.Context, Query: url.Values{"filters[role]": {"admin", "user"}}}
	second := &Request{Context: req.Context, Query: url.Values{"filters[role]": {"admin", "guest"}}}
	if CacheKey(first) == CacheKey(second) {
		t.Fatalf("repeated parameters must not collapse into one key: %q", CacheKey(first))
	}
	req.Context.UserID = "u1"
	req.Query = nil
	if got := CacheKey(req); got != "user:u1:/api/users:{}" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestHandleTransformsTimes(t *testing.T) {
	type inner struct {
		At time.Time `json:"at"`
	}
	type payload struct {
		domain.Record
		Items []inner        `json:"items"`
		When  *time.Time     `json:"when"`
		Extra map[string]any `json:"extra,omitempty"`
	}
	at := time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.FixedZone("WIB", 7*3600))

	p := newPipeline()
	r := gin.New()
	r.GET("/t", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return payload{
			Record: domain.Record{ID: "1", CreatedAt: at, UpdatedAt: at},
			Items:  []inner{{At: at}},
		}, nil
	}))

	_, env := serve(t, r, http.MethodGet, "/t", nil, nil)
	var got map[string]any
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got["createdAt"] != "2025-01-01T20:04:05.678Z" {
		t.Fatalf("createdAt not normalized: %v", got["createdAt"])
	}
	if got["when"] != nil || got["deletedAt"] != nil {
		t.Fatalf("nil times should stay null: %v", got)
	}
	if _, ok := got["extra"]; ok {
		t.Fatalf("omitempty should be honoured")
	}
	items := got["items"].([]any)
	if items[0].(map[string]any)["at"] != "2025-01-01T20:04:05.678Z" {
		t.Fatalf("nested time not normalized: %v", items)
	}
}

func TestHandleAuthGuards(t *testing.T) {
	p := newPipeline()
	r := gin.New()
	r.GET("/admin", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return req.Context.UserID, nil
	}, Roles("admin")))

	userToken, _, _ := p.Auth.Issue("u1", "user")
	adminToken, _, _ := p.Auth.Issue("a1", "admin")
	expired := NewAuthenticator("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	oldToken, _, _ := expired.Issue("a1", "admin")

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"anonymous", "", http.StatusUnauthorized, "AUTH_TOKEN_INVALID"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "AUTH_TOKEN_INVALID"},
		{"expired", "Bearer " + oldToken, http.StatusUnauthorized, "AUTH_TOKEN_EXPIRED"},
		{"wrong role", "Bearer " + userToken, http.StatusForbidden, "AUTH_INSUFFICIENT_PERMISSIONS"},
		{"admin", "Bearer " + adminToken, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.header != "" {
				h.Set("Authorization", tc.header)
			}
			w, env := serve(t, r, http.MethodGet, "/admin", nil, h)
			if w.Code != tc.status {
				t.Fatalf("got %d want %d: %s", w.Code, tc.status, w.Body.String())
			}
			if tc.code != "" && env.Error.Code != tc.code {
				t.Fatalf("got code %s want %s", env.Error.Code, tc.code)
			}
			if tc.code == "" && string(env.Data) != `"a1"` {
				t.Fatalf("user id should reach the handler, got %s", env.Data)
			}
		})
	}
}

func TestHandleRateLimit(t *testing.T) {
	p := newPipeline()
	p.Limiter = NewIPRateLimiter(1)
	r := gin.New()
	r.GET("/limited", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return "ok", nil
	}))

	if w, _ := serve(t, r, http.MethodGet, "/limited", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", w.Code)
	}
	w, env := serve(t, r, http.MethodGet, "/limited", nil, nil)
	if w.Code != http.StatusTooManyRequests || env.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("expected 429, got %d %s", w.Code, w.Body.String())
	}
}

func TestHandleBodyBinding(t *testing.T) {
	type input struct {
		Email string `json:"email" validate:"required,email"`
	}
	p := newPipeline()
	p.MaxBodyBytes = 32
	r := gin.New()
	r.POST("/bind", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		var in input
		if err := req.Bind(&in); err != nil {
			return nil, err
		}
		return in, nil
	}))

	w, env := serve(t, r, http.MethodPost, "/bind", strings.NewReader(`{"email":"nope"}`), nil)
	if w.Code != http.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected validation failure, got %d %s", w.Code, w.Body.String())
	}
	w, _ = serve(t, r, http.MethodPost, "/bind", strings.NewReader(`{"email":"`+strings.Repeat("a", 64)+`@x.io"}`), nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", w.Code, w.Body.String())
	}
	w, _ = serve(t, r, http.MethodPost, "/bind", strings.NewReader(`{"email":"a@b.io"}`), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
}

func TestLoggingWritesOneEntryAndOneExitLine(t *testing.T) {
	var buf bytes.Buffer
	p := newPipeline()
	p.Logger = logging.NewLoggerTo(&buf, "info", "json")
	r := gin.New()
	r.POST("/login", p.Handle(func(ctx context.Context, req *Request) (any, error) {
		return nil, domain.InvalidCredentials()
	}))

	serve(t, r, http.MethodPost, "/login", strings.NewReader(`{"email":"a@b.io","password":"hunter22"}`), nil)
	out := buf.String()
	if strings.Count(out, `"msg":"incoming request"`) != 1 || strings.Count(out, `"msg":"request errored"`) != 1 {
		t.Fatalf("expected one entry and one exit line:\n%s", out)
	}
	if strings.Contains(out, `"msg":"request completed"`) {
		t.Fatalf("failed request must not log completion:\n%s", out)
	}
	if strings.Contains(out, "hunter22") || !strings.Contains(out, redacted) {
		t.Fatalf("password should be redacted:\n%s", out)
	}
}
