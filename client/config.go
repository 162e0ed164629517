package client

import (
	"net/http"
	"time"
)

const (
	// Default timeout for a single request attempt.
	defaultRequestTimeout = 30 * time.Second

	// Default client-side request rate, in requests per second.
	defaultRateLimit = 20.0

	// Default burst allowed above the steady rate.
	defaultRateBurst = 10

	// Whether client-side metrics are enabled by default.
	defaultEnableMetrics = true

	// Default number of retry attempts for failed requests.
	defaultMaxRetries = 3

	// Default initial backoff duration between retries.
	defaultInitialBackoff = 100 * time.Millisecond

	// Default maximum backoff duration.
	defaultMaxBackoff = 5 * time.Second

	// Default multiplier for exponential backoff.
	defaultBackoffMultiplier = 2.0

	// Default jitter factor to randomize backoff durations.
	defaultJitterFactor = 0.1

	// Default User-Agent header value.
	defaultUserAgent = "proknow-go"

	// Upper bound on how much of an error response body is kept in HTTPError.
	maxErrorBodyBytes = 64 * 1024
)

// Config holds configuration options for the ProKnow requestor.
type Config struct {
	// BaseURL is the API root every route is appended to,
	// e.g. "https://example.proknow.com/api". Required.
	BaseURL string

	// Credentials authenticate every request with HTTP basic auth. Required.
	Credentials Credentials

	// RequestTimeout bounds a single attempt. A shorter context deadline wins.
	// Defaults to 30 seconds.
	RequestTimeout time.Duration

	// RateLimit is the steady client-side request rate in requests per second.
	// Zero or negative disables limiting. Defaults to 20.
	RateLimit float64

	// RateBurst is the number of requests allowed above the steady rate.
	RateBurst int

	// RetryPolicy controls which failures are retried and how long to wait.
	RetryPolicy RetryPolicy

	// EnableMetrics toggles Prometheus collection. Defaults to true.
	EnableMetrics bool

	// UserAgent is sent on every request.
	UserAgent string
}

// Credentials is a ProKnow API key pair.
type Credentials struct {
	ID     string
	Secret string
}

// RetryPolicy defines the behavior for retrying failed requests.
// Transport errors are always retryable; HTTP errors only when their status
// is listed in RetryableStatusCodes.
type RetryPolicy struct {
	MaxRetries           int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	JitterFactor         float64
	RetryableStatusCodes []int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: defaultRequestTimeout,
		RateLimit:      defaultRateLimit,
		RateBurst:      defaultRateBurst,
		RetryPolicy:    DefaultRetryPolicy(),
		EnableMetrics:  defaultEnableMetrics,
		UserAgent:      defaultUserAgent,
	}
}

// DefaultRetryPolicy retries throttling and transient server failures. POST and
// PATCH requests are only retried when throttled; see WithRetry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        defaultMaxRetries,
		InitialBackoff:    defaultInitialBackoff,
		MaxBackoff:        defaultMaxBackoff,
		BackoffMultiplier: defaultBackoffMultiplier,
		JitterFactor:      defaultJitterFactor,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}
