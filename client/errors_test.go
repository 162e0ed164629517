package client

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		code     int
		expected error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusGatewayTimeout, ErrServer},
		{http.StatusTeapot, nil},
		{http.StatusOK, nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorFromStatus(tt.code))
		})
	}
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{Method: "PUT", URI: "https://proknow.test/api/lock", StatusCode: 409, Body: "locked"}

	assert.Equal(t, "HTTP PUT https://proknow.test/api/lock failed with status 409: locked", err.Error())
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("acquire draft: %w", err)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, 409, StatusCode(wrapped))

	noBody := &HTTPError{Method: "GET", URI: "/x", StatusCode: 418}
	assert.Equal(t, "HTTP GET /x failed with status 418", noBody.Error())
	assert.False(t, errors.Is(noBody, ErrServer))
}

func TestStatusCode_NoHTTPError(t *testing.T) {
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
	assert.Equal(t, 0, StatusCode(nil))
}
