package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://proknow.test/api"

// newTestRequestor builds a requestor over a mock transport with fast retries
// and no rate limit.
func newTestRequestor(t *testing.T, maxRetries int) (*httpRequestor, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	config := DefaultConfig()
	config.BaseURL = testBaseURL
	config.Credentials = Credentials{ID: "key-id", Secret: "key-secret"}
	config.RateLimit = 0
	config.RetryPolicy.MaxRetries = maxRetries
	config.RetryPolicy.InitialBackoff = time.Millisecond
	config.RetryPolicy.MaxBackoff = 2 * time.Millisecond
	config.RetryPolicy.JitterFactor = 0

	r, err := newHTTPRequestor(config, WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r, transport
}

// recordingMetrics counts calls per operation.
type recordingMetrics struct {
	success, failure, retry map[string]int
	observed                int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		success: map[string]int{},
		failure: map[string]int{},
		retry:   map[string]int{},
	}
}

func (m *recordingMetrics) IncrSuccess(op string)                  { m.success[op]++ }
func (m *recordingMetrics) IncrFailure(op string)                  { m.failure[op]++ }
func (m *recordingMetrics) IncrRetry(op string)                    { m.retry[op]++ }
func (m *recordingMetrics) ObserveLatency(string, time.Duration)   { m.observed++ }
