package middleware

import (
	"context"
	"net/http"
	"slices"
	"testing"
	"time"

	"apicore/internal/http/response"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) Stage {
		return func(next Handler) Handler {
			return func(ctx context.Context, req *Request) (any, error) {
				trace = append(trace, name+">")
				out, err := next(ctx, req)
				trace = append(trace, "<"+name)
				return out, err
			}
		}
	}
	h := Chain(mark("a"), nil, mark("b"))(func(context.Context, *Request) (any, error) {
		trace = append(trace, "handler")
		return nil, nil
	})
	if _, err := h(context.Background(), &Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a>", "b>", "handler", "<b", "<a"}
	if !slices.Equal(trace, want) {
		t.Fatalf("got %v want %v", trace, want)
	}
}

func TestResolveTimeout(t *testing.T) {
	cases := []struct {
		header string
		want   time.Duration
	}{
		{"", 30 * time.Second},
		{"abc", 30 * time.Second},
		{"-5", 30 * time.Second},
		{"10", time.Second},
		{"5000", 5 * time.Second},
		{"999999", 300 * time.Second},
	}
	for _, tc := range cases {
		if got := ResolveTimeout(tc.header, 0); got != tc.want {
			t.Fatalf("ResolveTimeout(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestSuccessMessage(t *testing.T) {
	cases := map[string]string{
		"GET":     "Data retrieved successfully",
		"POST":    "Resource created successfully",
		"PUT":     "Resource updated successfully",
		"PATCH":   "Resource updated successfully",
		"DELETE":  "Resource deleted successfully",
		"OPTIONS": "Operation completed successfully",
	}
	for method, want := range cases {
		if got := SuccessMessage(method); got != want {
			t.Fatalf("%s: got %q want %q", method, got, want)
		}
	}
}

func TestShapeResultAndEnvelope(t *testing.T) {
	page := map[string]any{
		"data": []any{1, 2},
		"meta": map[string]any{"total": 2, "page": 1},
	}
	shaped, ok := ShapeResult(page, http.MethodGet, "/api/things").(response.Success)
	if !ok {
		t.Fatalf("paginated result should be wrapped, got %T", ShapeResult(page, http.MethodGet, "/api/things"))
	}
	if inner, ok := shaped.Data.(map[string]any); !ok || inner["meta"] == nil || inner["data"] == nil {
		t.Fatalf("data/meta should stay nested under data: %v", shaped.Data)
	}
	env := response.OK("x", "done", "/")
	if got := ShapeResult(env, http.MethodPost, "/other"); got != any(env) {
		t.Fatalf("envelopes pass through untouched")
	}
	if !IsEnvelope(map[string]any{"success": true, "timestamp": "t", "path": "/"}) {
		t.Fatalf("envelope map not detected")
	}
	if IsEnvelope(page) {
		t.Fatalf("page is not an envelope")
	}
}

func TestRedactBody(t *testing.T) {
	got := RedactBody([]byte(`{"email":"a@b.io","Password":"x","nested":{"refreshToken":"y"},"list":[{"secret":"z"}]}`)).(map[string]any)
	if got["email"] != "a@b.io" || got["Password"] != redacted {
		t.Fatalf("top level not redacted: %v", got)
	}
	if got["nested"].(map[string]any)["refreshToken"] != redacted {
		t.Fatalf("nested not redacted: %v", got)
	}
	if got["list"].([]any)[0].(map[string]any)["secret"] != redacted {
		t.Fatalf("list not redacted: %v", got)
	}
	if RedactBody(nil) != nil {
		t.Fatalf("empty body should log as nil")
	}
	if m := RedactBody([]byte("plain")).(map[string]any); m["nonJsonBytes"] != 5 {
		t.Fatalf("non-JSON body should be summarised: %v", m)
	}
}

func TestNormalizeTimesKeepsScalars(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := NormalizeTimes(map[string]any{"n": 1, "s": "x", "t": at, "b": []byte("hi")}).(map[string]any)
	if got["n"] != 1 || got["s"] != "x" || got["t"] != "2025-06-01T12:00:00.000Z" {
		t.Fatalf("unexpected normalize result: %v", got)
	}
	if string(got["b"].([]byte)) != "hi" {
		t.Fatalf("byte slices stay untouched")
	}
	if NormalizeTimes(nil) != nil {
		t.Fatalf("nil stays nil")
	}
}
