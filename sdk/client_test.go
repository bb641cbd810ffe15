package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockServer creates a test HTTP server that mimics the CoolDB API
func mockServer() *httptest.Server {
	var mu sync.Mutex
	data := make(map[string]interface{})

	writeJSON := func(w http.ResponseWriter, status int, body interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Key   string      `json:"key"`
			Value interface{} `json:"value"`
		}
		if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&req) != nil || req.Key == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
			return
		}
		mu.Lock()
		data[req.Key] = req.Value
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Key-value pair set successfully",
			"key":     req.Key,
			"value":   req.Value,
		})
	})

	mux.HandleFunc("/get/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/get/")
		mu.Lock()
		value, ok := data[key]
		mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Key not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": value})
	})

	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		mu.Unlock()
		sort.Strings(keys)
		writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})

	return httptest.NewServer(mux)
}

func TestNewClient(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		client, err := NewClient(nil)
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, DefaultBaseURL, client.BaseURL())
		assert.IsType(t, &HTTPTransport{}, client.transport)
	})

	t.Run("empty base URL falls back to default", func(t *testing.T) {
		client, err := New("")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", client.BaseURL())
	})

	t.Run("invalid base URL", func(t *testing.T) {
		_, err := New("localhost")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})

	t.Run("base URL is copied", func(t *testing.T) {
		config := DefaultConfig().WithBaseURL("http://one.test")
		client, err := NewClient(config)
		require.NoError(t, err)

		config.BaseURL = "http://two.test"
		assert.Equal(t, "http://one.test", client.BaseURL())
	})

	t.Run("observer wraps transport", func(t *testing.T) {
		spy := newSpyTransport(http.StatusOK, `{"status":"OK"}`)
		client, err := NewClient(DefaultConfig().WithTransport(spy).WithObserver(NewMetricsCollector()))
		require.NoError(t, err)
		assert.IsType(t, &ObservedTransport{}, client.transport)
	})
}

func TestClient_RoundTrip(t *testing.T) {
	server := mockServer()
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	t.Run("set then get", func(t *testing.T) {
		echoed, err := client.SetValue(ctx, "user:1", map[string]interface{}{"name": "Alice"})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"name": "Alice"}, echoed)

		value, err := client.GetValue(ctx, "user:1")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"name": "Alice"}, value)
	})

	t.Run("scalar values", func(t *testing.T) {
		_, err := client.SetValue(ctx, "n", 42)
		require.NoError(t, err)

		value, err := client.GetValue(ctx, "n")
		require.NoError(t, err)
		assert.Equal(t, json.Number("42"), value)
	})

	t.Run("key with reserved characters", func(t *testing.T) {
		_, err := client.SetValue(ctx, "a/b c", "slashed")
		require.NoError(t, err)

		value, err := client.GetValue(ctx, "a/b c")
		require.NoError(t, err)
		assert.Equal(t, "slashed", value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := client.GetValue(ctx, "missing")
		require.Error(t, err)
		assert.Equal(t, "API request failed: Key not found", err.Error())
		assert.True(t, IsRequestFailed(err))
	})

	t.Run("list keys", func(t *testing.T) {
		keys, err := client.ListKeys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, "user:1")
		assert.Contains(t, keys, "a/b c")
	})

	t.Run("status", func(t *testing.T) {
		status, err := client.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "OK", status)
	})

	t.Run("empty key on set is rejected by the server", func(t *testing.T) {
		_, err := client.SetValue(ctx, "", "v")
		require.Error(t, err)
		assert.Equal(t, "API request failed: Invalid request", err.Error())
	})
}

func TestClient_GetValue_EmptyKey(t *testing.T) {
	spy := newSpyTransport(http.StatusOK, `{}`)
	client := newSpyClient(spy)

	_, err := client.GetValue(context.Background(), "")
	require.Error(t, err)

	assert.Equal(t, "Key is required", err.Error())
	assert.True(t, IsInvalidArgument(err))
	assert.False(t, IsRequestFailed(err))
	assert.Equal(t, 0, spy.calls())
}

func TestClient_Requests(t *testing.T) {
	ctx := context.Background()

	t.Run("set sends key and value", func(t *testing.T) {
		spy := newSpyTransport(http.StatusOK, `{"value":"v"}`)
		client := newSpyClient(spy)

		_, err := client.SetValue(ctx, "k", "v")
		require.NoError(t, err)

		req := spy.last()
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "http://cooldb.test/set", req.URL)
		assert.JSONEq(t, `{"key":"k","value":"v"}`, string(req.Body))
	})

	t.Run("set with nil value sends null", func(t *testing.T) {
		spy := newSpyTransport(http.StatusOK, `{"value":null}`)
		client := newSpyClient(spy)

		value, err := client.SetValue(ctx, "k", nil)
		require.NoError(t, err)
		assert.Nil(t, value)
		assert.JSONEq(t, `{"key":"k","value":null}`, string(spy.last().Body))
	})

	t.Run("get encodes key as one segment", func(t *testing.T) {
		spy := newSpyTransport(http.StatusOK, `{"value":1}`)
		client := newSpyClient(spy)

		_, err := client.GetValue(ctx, "a/b")
		require.NoError(t, err)

		req := spy.last()
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "http://cooldb.test/get/a%2Fb", req.URL)
		assert.Nil(t, req.Body)
	})

	t.Run("list and status send GET without body", func(t *testing.T) {
		spy := newSpyTransport(http.StatusOK, `{"keys":[],"status":"OK"}`)
		client := newSpyClient(spy)

		_, err := client.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, spy.last().Method)
		assert.Equal(t, "http://cooldb.test/list", spy.last().URL)
		assert.Nil(t, spy.last().Body)

		_, err = client.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, spy.last().Method)
		assert.Equal(t, "http://cooldb.test/status", spy.last().URL)
		assert.Nil(t, spy.last().Body)
	})

	t.Run("base URL is used verbatim", func(t *testing.T) {
		spy := newSpyTransport(http.StatusOK, `{"status":"OK"}`)
		client, err := NewClient(DefaultConfig().WithBaseURL("http://cooldb.test/api/").WithTransport(spy))
		require.NoError(t, err)

		_, err = client.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "http://cooldb.test/api//status", spy.last().URL)
	})
}

func TestClient_Headers(t *testing.T) {
	var received http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		_, err := client.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "application/json", received.Get("Accept"))
		assert.Equal(t, "application/json", received.Get("Content-Type"))
	})

	t.Run("caller header overrides default", func(t *testing.T) {
		_, err := client.GetStatus(ctx, WithHeader("content-type", "text/plain"))
		require.NoError(t, err)
		assert.Equal(t, []string{"text/plain"}, received.Values("Content-Type"))
		assert.Equal(t, "application/json", received.Get("Accept"))
	})

	t.Run("extra headers are added", func(t *testing.T) {
		_, err := client.GetStatus(ctx, WithHeaders(http.Header{"X-Request-Id": []string{"abc"}}))
		require.NoError(t, err)
		assert.Equal(t, "abc", received.Get("X-Request-Id"))
		assert.Equal(t, "application/json", received.Get("Accept"))
	})
}

func TestClient_ResponseFields(t *testing.T) {
	ctx := context.Background()

	t.Run("missing value field yields nil", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, `{"key":"k"}`))
		value, err := client.GetValue(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("keys that are not an array yield nil", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, `{"keys":"nope"}`))
		keys, err := client.ListKeys(ctx)
		require.NoError(t, err)
		assert.Nil(t, keys)
	})

	t.Run("keys are passed through", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, `{"keys":["a",1,null]}`))
		keys, err := client.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", json.Number("1"), nil}, keys)
	})

	t.Run("status of any shape", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, `{"status":{"healthy":true}}`))
		status, err := client.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"healthy": true}, status)
	})

	t.Run("non-object body on success", func(t *testing.T) {
		client := newSpyClient(newSpyTransport(http.StatusOK, `[1,2]`))
		value, err := client.GetValue(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, value)
	})
}

func TestClient_Concurrent(t *testing.T) {
	server := mockServer()
	defer server.Close()

	client, err := New(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := client.SetValue(ctx, "k", n)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	value, err := client.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.IsType(t, json.Number(""), value)
}

func TestClient_NumbersKeepPrecision(t *testing.T) {
	client := newSpyClient(newSpyTransport(http.StatusOK, `{"key":"id","value":{"id":9007199254740993,"ratio":0.1}}`))

	value, err := client.GetValue(context.Background(), "id")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"id":    json.Number("9007199254740993"),
		"ratio": json.Number("0.1"),
	}, value)

	encoded, err := json.Marshal(value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9007199254740993,"ratio":0.1}`, string(encoded))
}
