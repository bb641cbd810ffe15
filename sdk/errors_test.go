package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "request_failed", KindRequestFailed.String())
	assert.Equal(t, "invalid_argument", KindInvalidArgument.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}

func TestError_Is(t *testing.T) {
	invalid := invalidArgument("Key is required")
	assert.True(t, errors.Is(invalid, ErrInvalidArgument))
	assert.False(t, errors.Is(invalid, ErrRequestFailed))

	failed := requestFailed(errors.New("boom"))
	assert.True(t, errors.Is(failed, ErrRequestFailed))
	assert.False(t, errors.Is(failed, ErrInvalidArgument))

	wrapped := fmt.Errorf("context: %w", failed)
	assert.True(t, IsRequestFailed(wrapped))

	var sdkErr *Error
	require.True(t, errors.As(wrapped, &sdkErr))
	assert.Equal(t, KindRequestFailed, sdkErr.Kind)
}

func TestRequestFailed_Messages(t *testing.T) {
	testCases := []struct {
		name     string
		cause    error
		expected string
	}{
		{"nil cause", nil, "Network request failed"},
		{"empty message", errors.New(""), "Network request failed"},
		{"transport message", errors.New("timeout"), "API request failed: timeout"},
		{"server message", &serverError{statusCode: 404, message: "not found"}, "API request failed: not found"},
		{"status only", &serverError{statusCode: 500}, "API request failed: HTTP error - status: 500"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := requestFailed(tc.cause)
			assert.Equal(t, tc.expected, err.Error())
			assert.Equal(t, tc.cause, errors.Unwrap(err))
		})
	}
}

func TestExecutor_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("server error field", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusNotFound, `{"error":"not found"}`))
		_, err := client.GetValue(ctx, "k")
		require.Error(t, err)
		assert.Equal(t, "API request failed: not found", err.Error())
		assert.True(t, IsRequestFailed(err))
	})

	t.Run("no error field", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusServiceUnavailable, `{"detail":"down"}`))
		_, err := client.GetStatus(ctx)
		require.Error(t, err)
		assert.Equal(t, "API request failed: HTTP error - status: 503", err.Error())
	})

	t.Run("empty error field", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusBadRequest, `{"error":""}`))
		_, err := client.ListKeys(ctx)
		require.Error(t, err)
		assert.Equal(t, "API request failed: HTTP error - status: 400", err.Error())
	})

	t.Run("non-string error field", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusInternalServerError, `{"error":{"code":1}}`))
		_, err := client.ListKeys(ctx)
		require.Error(t, err)
		assert.Equal(t, "API request failed: HTTP error - status: 500", err.Error())
	})

	t.Run("transport error", func(t *testing.T) {
		spy := &spyTransport{err: errors.New("timeout")}
		client := newSpyClient(spy)
		_, err := client.SetValue(ctx, "k", "v")
		require.Error(t, err)
		assert.Equal(t, "API request failed: timeout", err.Error())
		assert.Equal(t, 1, spy.calls())
	})

	t.Run("transport error without message", func(t *testing.T) {
		client := newSpyClient(&spyTransport{err: errors.New("")})
		_, err := client.GetStatus(ctx)
		require.Error(t, err)
		assert.Equal(t, "Network request failed", err.Error())
	})

	t.Run("malformed success body", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, `not json`))
		_, err := client.GetStatus(ctx)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "API request failed: "))
		assert.True(t, IsRequestFailed(err))
	})

	t.Run("trailing data after body", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, `{"status":"OK"} {}`))
		_, err := client.GetStatus(ctx)
		require.Error(t, err)
		assert.True(t, IsRequestFailed(err))
	})

	t.Run("empty body", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, ``))
		_, err := client.GetStatus(ctx)
		require.Error(t, err)
		assert.Equal(t, "API request failed: unexpected EOF", err.Error())
	})

	t.Run("unencodable body", func(t *testing.T) {
		spy := newSpyTransport(http.StatusOK, `{}`)
		client := newSpyClient(spy)
		_, err := client.SetValue(ctx, "k", make(chan int))
		require.Error(t, err)
		assert.True(t, IsRequestFailed(err))
		assert.Contains(t, err.Error(), "failed to marshal request body")
		assert.Equal(t, 0, spy.calls())
	})

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client, err := New(url)
		require.NoError(t, err)
		_, err = client.GetStatus(ctx)
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "API request failed: "))
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := mockServer()
		defer server.Close()

		client, err := New(server.URL)
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = client.GetStatus(cancelled)
		require.Error(t, err)
		assert.True(t, IsRequestFailed(err))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
