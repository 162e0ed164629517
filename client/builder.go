package client

import (
	"errors"
	"net/http"
	"time"

	"github.com/jathurchan/proknow/clock"
	"github.com/jathurchan/proknow/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// RequestorBuilder provides a fluent API for constructing a Requestor.
//
// Example:
//
//	r, err := client.NewRequestorBuilder("https://example.proknow.com/api").
//	    WithCredentials(id, secret).
//	    WithTimeout(10 * time.Second).
//	    Build()
type RequestorBuilder struct {
	config     Config
	opts       []Option
	registerer prometheus.Registerer
}

// NewRequestorBuilder returns a builder initialized with the default
// configuration and the given API base URL.
func NewRequestorBuilder(baseURL string) *RequestorBuilder {
	b := &RequestorBuilder{config: DefaultConfig()}
	b.config.BaseURL = baseURL
	return b
}

// WithCredentials sets the API key pair.
func (b *RequestorBuilder) WithCredentials(id, secret string) *RequestorBuilder {
	b.config.Credentials = Credentials{ID: id, Secret: secret}
	return b
}

// WithTimeout sets the per-attempt request timeout.
func (b *RequestorBuilder) WithTimeout(requestTimeout time.Duration) *RequestorBuilder {
	if requestTimeout > 0 {
		b.config.RequestTimeout = requestTimeout
	}
	return b
}

// WithRetryPolicy sets a custom retry policy.
func (b *RequestorBuilder) WithRetryPolicy(policy RetryPolicy) *RequestorBuilder {
	b.config.RetryPolicy = policy
	return b
}

// WithRetryOptions updates the default retry policy parameters.
func (b *RequestorBuilder) WithRetryOptions(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier float64) *RequestorBuilder {
	if maxRetries >= 0 {
		b.config.RetryPolicy.MaxRetries = maxRetries
	}
	if initialBackoff > 0 {
		b.config.RetryPolicy.InitialBackoff = initialBackoff
	}
	if maxBackoff > 0 {
		b.config.RetryPolicy.MaxBackoff = maxBackoff
	}
	if multiplier > 0 {
		b.config.RetryPolicy.BackoffMultiplier = multiplier
	}
	return b
}

// WithRateLimit sets the client-side request rate. A non-positive rate disables limiting.
func (b *RequestorBuilder) WithRateLimit(requestsPerSecond float64, burst int) *RequestorBuilder {
	b.config.RateLimit = requestsPerSecond
	if burst > 0 {
		b.config.RateBurst = burst
	}
	return b
}

// WithMetrics enables or disables metrics collection.
func (b *RequestorBuilder) WithMetrics(enabled bool) *RequestorBuilder {
	b.config.EnableMetrics = enabled
	return b
}

// WithPrometheusRegisterer sets where metrics are registered.
// Defaults to prometheus.DefaultRegisterer.
func (b *RequestorBuilder) WithPrometheusRegisterer(registerer prometheus.Registerer) *RequestorBuilder {
	b.registerer = registerer
	return b
}

// WithUserAgent sets the User-Agent header.
func (b *RequestorBuilder) WithUserAgent(userAgent string) *RequestorBuilder {
	if userAgent != "" {
		b.config.UserAgent = userAgent
	}
	return b
}

// WithHTTPClient sets the underlying HTTP client.
func (b *RequestorBuilder) WithHTTPClient(hc *http.Client) *RequestorBuilder {
	b.opts = append(b.opts, WithHTTPClient(hc))
	return b
}

// WithLogger sets the logger.
func (b *RequestorBuilder) WithLogger(l logger.Logger) *RequestorBuilder {
	b.opts = append(b.opts, WithLogger(l))
	return b
}

// WithClock sets the clock (mainly for testing).
func (b *RequestorBuilder) WithClock(c clock.Clock) *RequestorBuilder {
	b.opts = append(b.opts, WithClock(c))
	return b
}

// validate checks if the builder has valid configuration.
func (b *RequestorBuilder) validate() error {
	if b.config.BaseURL == "" {
		return errors.New("builder: base URL must be set")
	}
	if b.config.Credentials.ID == "" || b.config.Credentials.Secret == "" {
		return errors.New("builder: credentials must be set")
	}
	return nil
}

// Build returns a configured Requestor.
func (b *RequestorBuilder) Build() (Requestor, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	opts := b.opts
	if b.config.EnableMetrics {
		registerer := b.registerer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		m, err := NewPrometheusMetrics(registerer)
		if err != nil {
			return nil, err
		}
		opts = append([]Option{WithMetrics(m)}, opts...)
	}

	return NewRequestor(b.config, opts...)
}
