// Package client provides the authenticated HTTP requestor shared by every
// ProKnow service: JSON encoding, retries with backoff, client-side rate
// limiting, metrics and typed HTTP errors.
package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// LockHeader carries the structure set draft lock token on mutating requests.
const LockHeader = "ProKnow-Lock"

// Requestor issues requests against the ProKnow API.
// Routes are relative to the configured base URL, e.g. "/workspaces".
type Requestor interface {
	// Get fetches route and decodes the JSON response into result.
	// A nil result discards the body; a *[]byte result receives it raw.
	Get(ctx context.Context, route string, result any, opts ...RequestOption) error

	// Post sends body as JSON and decodes the response into result.
	Post(ctx context.Context, route string, body, result any, opts ...RequestOption) error

	// Put sends body as JSON and decodes the response into result.
	Put(ctx context.Context, route string, body, result any, opts ...RequestOption) error

	// Patch sends body as JSON and decodes the response into result.
	Patch(ctx context.Context, route string, body, result any, opts ...RequestOption) error

	// Delete removes the resource at route.
	Delete(ctx context.Context, route string, opts ...RequestOption) error

	// Stream copies the response body of a GET to w and returns the number
	// of bytes written. The per-request timeout does not apply; bound the
	// download with ctx instead.
	Stream(ctx context.Context, route string, w io.Writer, opts ...RequestOption) (int64, error)

	// Close releases idle connections. Further calls fail with ErrClientClosed.
	Close() error
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers http.Header
	query   url.Values
	noRetry bool
	retry   bool
	timeout time.Duration
}

func newRequestOptions(defaultTimeout time.Duration, opts []RequestOption) *requestOptions {
	o := &requestOptions{
		headers: make(http.Header),
		query:   make(url.Values),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.headers.Set(key, value)
	}
}

// WithLock attaches a draft lock token.
func WithLock(lockID string) RequestOption {
	return WithHeader(LockHeader, lockID)
}

// WithQuery adds a query parameter. Repeated keys are appended.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.query.Add(key, value)
	}
}

// WithoutRetry makes exactly one attempt regardless of the retry policy.
func WithoutRetry() RequestOption {
	return func(o *requestOptions) {
		o.noRetry = true
	}
}

// WithRetry applies the full retry policy to a POST or PATCH that is safe to
// repeat, such as a search. By default those methods are only retried when
// the server throttled them.
func WithRetry() RequestOption {
	return func(o *requestOptions) {
		o.retry = true
	}
}

// WithTimeout overrides the per-attempt timeout. Zero disables it.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = d
	}
}
