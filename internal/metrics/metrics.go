package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors fed by the request pipeline and the
// repository engine. All methods are safe on a nil *Metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	SlowRequests     *prometheus.CounterVec
	HeapDelta        *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	RepositoryErrors *prometheus.CounterVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	factory := promauto.With(reg)
	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_http_requests_total",
				Help: "Total number of handled requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apicore_http_request_duration_seconds",
				Help:    "Duration of handled requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SlowRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_http_slow_requests_total",
				Help: "Requests slower than the configured threshold",
			},
			[]string{"method", "route"},
		),
		HeapDelta: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apicore_http_heap_delta_bytes",
				Help:    "Heap allocation change observed across a request",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"route"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_errors_total",
				Help: "Error responses by code",
			},
			[]string{"code"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),
		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_rate_limit_exceeded_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		RepositoryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicore_repository_errors_total",
				Help: "Repository failures by entity and operation",
			},
			[]string{"entity", "operation"},
		),
	}
	return m, nil
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration, heapDelta int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	if heapDelta > 0 {
		m.HeapDelta.WithLabelValues(route).Observe(float64(heapDelta))
	}
}

func (m *Metrics) ObserveSlow(method, route string) {
	if m == nil {
		return
	}
	m.SlowRequests.WithLabelValues(method, route).Inc()
}

func (m *Metrics) ObserveError(code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) ObserveRepositoryError(entity, operation string) {
	if m == nil {
		return
	}
	m.RepositoryErrors.WithLabelValues(entity, operation).Inc()
}
