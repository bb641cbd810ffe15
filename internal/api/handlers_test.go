package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/birbparty/cooldb/internal/store"
	"github.com/birbparty/cooldb/sdk"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) Publish(ctx context.Context, key string, value json.RawMessage) {
	m.Called(ctx, key, value)
}

// brokenStore fails every operation
type brokenStore struct{ store.Store }

func (brokenStore) Set(context.Context, string, json.RawMessage) error { return errors.New("disk full") }
func (brokenStore) Get(context.Context, string) (json.RawMessage, error) {
	return nil, errors.New("connection reset")
}
func (brokenStore) List(context.Context) ([]string, error) { return nil, errors.New("scan failed") }
func (brokenStore) Count(context.Context) (int, error)     { return 0, errors.New("count failed") }
func (brokenStore) Ping(context.Context) error             { return errors.New("down") }

func newTestServer(s store.Store) *Server {
	return NewServer(&Config{RequestTimeout: 5, MetricsPath: "/metrics"}, s, nil)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func TestSetAndGet(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())

	status, body := doRequest(t, srv, "POST", "/set", `{"key":"user","value":{"name":"ada","age":36}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, MsgSetSuccess, body["message"])
	assert.Equal(t, "user", body["key"])
	assert.Equal(t, map[string]interface{}{"name": "ada", "age": float64(36)}, body["value"])

	status, body = doRequest(t, srv, "GET", "/get/user", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user", body["key"])
	assert.Equal(t, map[string]interface{}{"name": "ada", "age": float64(36)}, body["value"])
}

func TestSet_InvalidRequest(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"key":`},
		{"missing key", `{"value":1}`},
		{"empty key", `{"key":"","value":1}`},
		{"missing value", `{"key":"a"}`},
		{"not an object", `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, srv, "POST", "/set", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, MsgInvalidRequest, body["error"])
		})
	}
}

func TestSet_PublishesEvent(t *testing.T) {
	events := &MockEvents{}
	events.On("Publish", mock.Anything, "k", json.RawMessage(`"v"`)).Once()

	app := newHandlerApp(store.NewMemoryStore(), events)

	resp, err := app.Test(httptest.NewRequest("POST", "/set", strings.NewReader(`{"key":"k","value":"v"}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/set", strings.NewReader(`{"key":""}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	events.AssertExpectations(t)
}

func TestSet_StoreFailureDoesNotPublish(t *testing.T) {
	events := &MockEvents{}
	app := newHandlerApp(brokenStore{}, events)

	resp, err := app.Test(httptest.NewRequest("POST", "/set", strings.NewReader(`{"key":"k","value":1}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_NotFound(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())

	status, body := doRequest(t, srv, "GET", "/get/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, MsgKeyNotFound, body["error"])
}

func TestGet_PercentDecodedKey(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(context.Background(), "a/b c", json.RawMessage(`true`)))
	srv := newTestServer(s)

	status, body := doRequest(t, srv, "GET", "/get/a%2Fb%20c", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a/b c", body["key"])
	assert.Equal(t, true, body["value"])
}

func TestList(t *testing.T) {
	s := store.NewMemoryStore()
	srv := newTestServer(s)

	status, body := doRequest(t, srv, "GET", "/list", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{}, body["keys"])

	for _, k := range []string{"pear", "apple", "fig"} {
		require.NoError(t, s.Set(context.Background(), k, json.RawMessage(`1`)))
	}

	_, body = doRequest(t, srv, "GET", "/list", "")
	assert.Equal(t, []interface{}{"apple", "fig", "pear"}, body["keys"])
}

func TestStatus(t *testing.T) {
	s := store.NewMemoryStore()
	srv := newTestServer(s)

	_, body := doRequest(t, srv, "GET", "/status", "")
	assert.Equal(t, "OK: 0 keys", body["status"])

	require.NoError(t, s.Set(context.Background(), "a", json.RawMessage(`1`)))
	require.NoError(t, s.Set(context.Background(), "b", json.RawMessage(`2`)))

	_, body = doRequest(t, srv, "GET", "/status", "")
	assert.Equal(t, "OK: 2 keys", body["status"])
}

func TestStorageFailures(t *testing.T) {
	srv := newTestServer(brokenStore{})

	tests := []struct {
		method, path, body, message string
	}{
		{"POST", "/set", `{"key":"k","value":1}`, "disk full"},
		{"GET", "/get/k", "", "connection reset"},
		{"GET", "/list", "", "scan failed"},
		{"GET", "/status", "", "count failed"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := doRequest(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusInternalServerError, status)
			assert.Equal(t, tt.message, body["error"])
		})
	}

	status, body := doRequest(t, srv, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())

	status, body := doRequest(t, srv, "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, MsgEndpointNotFound, body["error"])

	status, body = doRequest(t, srv, "DELETE", "/get/k", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, MsgEndpointNotFound, body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())
	doRequest(t, srv, "GET", "/status", "")

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), "cooldb_http_requests_total")
	assert.Contains(t, string(data), "cooldb_store_entries")
}

// appTransport routes sdk exchanges into the fiber app without a listener
func appTransport(srv *Server) sdk.Transport {
	return sdk.TransportFunc(func(ctx context.Context, req *sdk.Request) (*sdk.Response, error) {
		httpReq := httptest.NewRequest(req.Method, req.URL, bytes.NewReader(req.Body))
		httpReq.Header = req.Header.Clone()

		resp, err := srv.App().Test(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &sdk.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	})
}

func TestClientRoundTrip(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())
	client, err := sdk.NewClient(sdk.DefaultConfig().
		WithBaseURL("http://cooldb.test").
		WithTransport(appTransport(srv)))
	require.NoError(t, err)

	ctx := context.Background()

	stored, err := client.SetValue(ctx, "a/b", map[string]interface{}{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"n": json.Number("1")}, stored)

	value, err := client.GetValue(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"n": json.Number("1")}, value)

	keys, err := client.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a/b"}, keys)

	status, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK: 1 keys", status)

	_, err = client.GetValue(ctx, "missing")
	require.Error(t, err)
	assert.True(t, sdk.IsRequestFailed(err))
	assert.Equal(t, "API request failed: Key not found", err.Error())
}

func newHandlerApp(s store.Store, events EventPublisher) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupRoutes(app, NewHandler(s, events), "")
	return app
}
