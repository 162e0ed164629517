// Package testutil holds helpers shared by the service tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jathurchan/proknow/client"
	"github.com/stretchr/testify/require"
)

// BaseURL is the API root used by mock requestors.
const BaseURL = "https://proknow.test/api"

// NewMockRequestor returns a requestor whose traffic goes to a mock transport.
// Retries, rate limiting and metrics are off so call counts are exact.
func NewMockRequestor(t testing.TB) (client.Requestor, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	requestor, err := client.NewRequestorBuilder(BaseURL).
		WithCredentials("key-id", "key-secret").
		WithMetrics(false).
		WithRateLimit(0, 0).
		WithRetryOptions(0, time.Millisecond, time.Millisecond, 1).
		WithHTTPClient(&http.Client{Transport: transport}).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = requestor.Close() })

	return requestor, transport
}

// DecodeJSON decodes a request body.
func DecodeJSON(t testing.TB, req *http.Request, v any) {
	t.Helper()
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), "request body: %s", body)
}

// CallCount returns how many times method and route were requested.
func CallCount(transport *httpmock.MockTransport, method, route string) int {
	return transport.GetCallCountInfo()[method+" "+BaseURL+route]
}
