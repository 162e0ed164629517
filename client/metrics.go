package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records requestor activity. Operations are labelled by HTTP method
// so ids in routes never reach label values.
type Metrics interface {
	IncrSuccess(operation string)
	IncrFailure(operation string)
	IncrRetry(operation string)
	ObserveLatency(operation string, d time.Duration)
}

// PrometheusMetrics implements Metrics with Prometheus collectors.
type PrometheusMetrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the requestor collectors and registers them
// with registerer. Collectors already registered by another requestor are reused.
func NewPrometheusMetrics(registerer prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proknow",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of ProKnow API requests by method and outcome",
		}, []string{"method", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proknow",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Total number of retried ProKnow API request attempts",
		}, []string{"method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "proknow",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Latency of ProKnow API requests including retries",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method"}),
	}

	var err error
	if m.requests, err = registerOrReuse(registerer, m.requests); err != nil {
		return nil, err
	}
	if m.retries, err = registerOrReuse(registerer, m.retries); err != nil {
		return nil, err
	}
	if m.latency, err = registerOrReuse(registerer, m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrReuse[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("failed to register client metrics: %w", err)
	}
	return c, nil
}

func (m *PrometheusMetrics) IncrSuccess(operation string) {
	m.requests.WithLabelValues(operation, "success").Inc()
}

func (m *PrometheusMetrics) IncrFailure(operation string) {
	m.requests.WithLabelValues(operation, "failure").Inc()
}

func (m *PrometheusMetrics) IncrRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) ObserveLatency(operation string, d time.Duration) {
	m.latency.WithLabelValues(operation).Observe(d.Seconds())
}

// noOpMetrics discards everything.
type noOpMetrics struct{}

func (noOpMetrics) IncrSuccess(string)                    {}
func (noOpMetrics) IncrFailure(string)                    {}
func (noOpMetrics) IncrRetry(string)                      {}
func (noOpMetrics) ObserveLatency(string, time.Duration) {}
