package middleware

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"apicore/internal/domain"
	"apicore/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// recordingHandler keeps every record it is handed, at every level.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestPerformanceStage(t *testing.T) {
	tests := []struct {
		name    string
		slow    time.Duration
		handler Handler
		status  string
		level   slog.Level
		message string
		slowHit float64
	}{
		{
			name: "fast success",
			slow: time.Hour,
			handler: func(context.Context, *Request) (any, error) {
				return "ok", nil
			},
			status:  "200",
			level:   slog.LevelDebug,
			message: "request performance",
		},
		{
			name: "slow success",
			slow: time.Millisecond,
			handler: func(context.Context, *Request) (any, error) {
				time.Sleep(5 * time.Millisecond)
				return "ok", nil
			},
			status:  "200",
			level:   slog.LevelWarn,
			message: "slow request",
			slowHit: 1,
		},
		{
			name: "handler failure",
			slow: time.Hour,
			handler: func(context.Context, *Request) (any, error) {
				return nil, domain.NotFound("Widget", "w1")
			},
			status:  "404",
			level:   slog.LevelDebug,
			message: "request performance",
		},
		{
			name: "timed out",
			slow: time.Hour,
			handler: func(context.Context, *Request) (any, error) {
				return nil, domain.RequestTimeout(20 * time.Millisecond)
			},
			status:  "408",
			level:   slog.LevelDebug,
			message: "request performance",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := metrics.New(prometheus.NewRegistry())
			if err != nil {
				t.Fatalf("failed to initialize metrics: %v", err)
			}
			rec := &recordingHandler{}
			h := Performance(slog.New(rec), m, tc.slow)(tc.handler)

			req := &Request{Context: domain.RequestContext{Method: "GET", RequestID: "r1"}, Route: "/api/widgets/:id"}
			_, _ = h(context.Background(), req)

			if v := counterValue(t, m.RequestsTotal.WithLabelValues("GET", "/api/widgets/:id", tc.status)); v != 1 {
				t.Fatalf("expected one request observed with status %s, got %v", tc.status, v)
			}
			if v := counterValue(t, m.SlowRequests.WithLabelValues("GET", "/api/widgets/:id")); v != tc.slowHit {
				t.Fatalf("expected slow counter %v, got %v", tc.slowHit, v)
			}
			if len(rec.records) != 1 {
				t.Fatalf("expected one log record, got %d", len(rec.records))
			}
			if r := rec.records[0]; r.Level != tc.level || r.Message != tc.message {
				t.Fatalf("unexpected record %s %q", r.Level, r.Message)
			}
		})
	}
}

func TestPerformanceStageUnmatchedRoute(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("failed to initialize metrics: %v", err)
	}
	h := Performance(slog.New(&recordingHandler{}), m, 0)(func(context.Context, *Request) (any, error) {
		return nil, nil
	})
	_, _ = h(context.Background(), &Request{Context: domain.RequestContext{Method: "POST"}})

	if v := counterValue(t, m.RequestsTotal.WithLabelValues("POST", "unmatched", "201")); v != 1 {
		t.Fatalf("expected the request under the unmatched route, got %v", v)
	}
}
