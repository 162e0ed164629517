package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jathurchan/proknow/clock"
	"github.com/jathurchan/proknow/logger"
)

// Option configures the collaborators of a requestor.
type Option func(*httpRequestor)

// WithHTTPClient replaces the HTTP client, e.g. to install a custom transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *httpRequestor) {
		if hc != nil {
			r.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *httpRequestor) {
		if l != nil {
			r.logger = l.WithComponent("requestor")
		}
	}
}

// WithMetrics replaces the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(r *httpRequestor) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithRateLimiter replaces the token bucket limiter built from Config.
func WithRateLimiter(l RateLimiter) Option {
	return func(r *httpRequestor) {
		if l != nil {
			r.limiter = l
		}
	}
}

// WithClock sets the clock used for latency and retry waits (mainly for testing).
func WithClock(c clock.Clock) Option {
	return func(r *httpRequestor) {
		if c != nil {
			r.clock = c
		}
	}
}

// httpRequestor provides the default implementation of Requestor.
type httpRequestor struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	limiter    RateLimiter
	metrics    Metrics
	logger     logger.Logger
	clock      clock.Clock
	closed     atomic.Bool
}

// NewRequestor creates a Requestor for the given configuration.
func NewRequestor(config Config, opts ...Option) (Requestor, error) {
	return newHTTPRequestor(config, opts...)
}

func newHTTPRequestor(config Config, opts ...Option) (*httpRequestor, error) {
	if config.BaseURL == "" {
		return nil, errors.New("base URL must be provided")
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", config.BaseURL)
	}
	if config.Credentials.ID == "" || config.Credentials.Secret == "" {
		return nil, errors.New("credentials id and secret must be provided")
	}

	r := &httpRequestor{
		config:     config,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{},
		metrics:    noOpMetrics{},
		logger:     logger.NewNoOpLogger(),
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.limiter == nil {
		r.limiter = NewTokenBucketRateLimiter(config.RateLimit, config.RateBurst, r.logger)
	}
	return r, nil
}

func (r *httpRequestor) Get(ctx context.Context, route string, result any, opts ...RequestOption) error {
	return r.do(ctx, http.MethodGet, route, nil, opts, decodeInto(result))
}

func (r *httpRequestor) Post(ctx context.Context, route string, body, result any, opts ...RequestOption) error {
	return r.do(ctx, http.MethodPost, route, body, opts, decodeInto(result))
}

func (r *httpRequestor) Put(ctx context.Context, route string, body, result any, opts ...RequestOption) error {
	return r.do(ctx, http.MethodPut, route, body, opts, decodeInto(result))
}

func (r *httpRequestor) Patch(ctx context.Context, route string, body, result any, opts ...RequestOption) error {
	return r.do(ctx, http.MethodPatch, route, body, opts, decodeInto(result))
}

func (r *httpRequestor) Delete(ctx context.Context, route string, opts ...RequestOption) error {
	return r.do(ctx, http.MethodDelete, route, nil, opts, decodeInto(nil))
}

func (r *httpRequestor) Stream(ctx context.Context, route string, w io.Writer, opts ...RequestOption) (int64, error) {
	var written int64
	opts = append([]RequestOption{WithHeader("Accept", "application/octet-stream"), WithTimeout(0)}, opts...)
	err := r.do(ctx, http.MethodGet, route, nil, opts, func(resp *http.Response) error {
		n, err := io.Copy(w, resp.Body)
		written = n
		if err != nil {
			return fmt.Errorf("failed to stream response body: %w", err)
		}
		return nil
	})
	return written, err
}

// Close marks the requestor as closed and drops idle connections.
func (r *httpRequestor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	r.httpClient.CloseIdleConnections()
	return nil
}

// do runs a request with retry, backoff and metrics. handle is invoked only
// for a successful response and its failure is never retried.
func (r *httpRequestor) do(
	ctx context.Context,
	method, route string,
	body any,
	opts []RequestOption,
	handle func(*http.Response) error,
) error {
	if r.closed.Load() {
		return ErrClientClosed
	}

	o := newRequestOptions(r.config.RequestTimeout, opts)
	uri := r.buildURL(route, o.query)

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode %s %s request body: %w", method, uri, err)
		}
	}

	start := r.clock.Now()
	defer func() { r.metrics.ObserveLatency(method, r.clock.Since(start)) }()

	requestID := uuid.NewString()
	attempts := 0
	operation := func() error {
		attempts++
		retryable, err := r.attempt(ctx, method, uri, payload, o, requestID, handle)
		if retryable && !o.retry && !idempotent(method) {
			// The server may have applied a failed POST; only a throttled one is safe to resend.
			retryable = StatusCode(err) == http.StatusTooManyRequests
		}
		if err != nil && (!retryable || o.noRetry) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.metrics.IncrRetry(method)
		r.logger.Warnw("Retrying ProKnow request",
			"method", method, "uri", uri, "attempt", attempts, "wait", wait,
			"request_id", requestID, "error", err)
	}

	err := backoff.RetryNotifyWithTimer(operation, r.newBackOff(ctx), notify, NewBackoffTimer(r.clock))
	if err != nil {
		r.metrics.IncrFailure(method)
		return err
	}
	r.metrics.IncrSuccess(method)
	return nil
}

// attempt performs one round trip and reports whether a failure may be retried.
func (r *httpRequestor) attempt(
	ctx context.Context,
	method, uri string,
	payload []byte,
	o *requestOptions,
	requestID string,
	handle func(*http.Response) error,
) (retryable bool, err error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, o.timeout)
	}
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, uri, bodyReader)
	if err != nil {
		return false, fmt.Errorf("failed to build %s %s request: %w", method, uri, err)
	}

	req.SetBasicAuth(r.config.Credentials.ID, r.config.Credentials.Secret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if r.config.UserAgent != "" {
		req.Header.Set("User-Agent", r.config.UserAgent)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range o.headers {
		req.Header[k] = v
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Retry transport failures unless the caller gave up.
		return ctx.Err() == nil, fmt.Errorf("%s %s: %w", method, uri, err)
	}
	defer resp.Body.Close()

	r.logger.Debugw("ProKnow request completed",
		"method", method, "uri", uri, "status", resp.StatusCode, "request_id", requestID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		httpErr := &HTTPError{
			Method:     method,
			URI:        uri,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
		return slices.Contains(r.config.RetryPolicy.RetryableStatusCodes, resp.StatusCode), httpErr
	}

	return false, handle(resp)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func (r *httpRequestor) buildURL(route string, query url.Values) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	uri := r.baseURL + route
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	return uri
}

// newBackOff builds the exponential schedule for one request.
func (r *httpRequestor) newBackOff(ctx context.Context) backoff.BackOff {
	policy := r.config.RetryPolicy

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialBackoff
	eb.MaxInterval = policy.MaxBackoff
	eb.Multiplier = policy.BackoffMultiplier
	eb.RandomizationFactor = policy.JitterFactor
	eb.MaxElapsedTime = 0
	eb.Reset()

	maxRetries := uint64(0)
	if policy.MaxRetries > 0 {
		maxRetries = uint64(policy.MaxRetries)
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)
}

// decodeInto returns a response handler that decodes JSON into result.
func decodeInto(result any) func(*http.Response) error {
	return func(resp *http.Response) error {
		if result == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if raw, ok := result.(*[]byte); ok {
			*raw = data
			return nil
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// backoffTimer adapts clock.Timer to backoff.Timer so retry and polling waits
// follow the injected clock.
type backoffTimer struct {
	clock clock.Clock
	timer clock.Timer
}

// NewBackoffTimer returns a backoff.Timer driven by c.
func NewBackoffTimer(c clock.Clock) backoff.Timer {
	return &backoffTimer{clock: c}
}

func (t *backoffTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *backoffTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *backoffTimer) C() <-chan time.Time {
	return t.timer.Chan()
}
