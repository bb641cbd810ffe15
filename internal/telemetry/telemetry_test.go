package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/birbparty/cooldb/sdk"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/get/:key", RouteLabel("/get/a%2Fb"))
	assert.Equal(t, "/set", RouteLabel("/set"))
	assert.Equal(t, "/list", RouteLabel("/list"))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "404", Outcome(&sdk.StatusError{StatusCode: 404}))
	assert.Equal(t, "error", Outcome(errors.New("connection refused")))
}

func TestPrometheusObserver(t *testing.T) {
	o := NewPrometheusObserver()

	before := testutil.ToFloat64(clientRequestsTotal.WithLabelValues("GET", "/get/:key", "ok"))
	o.OnRequestStart("GET", "/get/a")
	o.OnRequestEnd("GET", "/get/a", 5*time.Millisecond, nil)
	o.OnRequestEnd("GET", "/get/b", 5*time.Millisecond, nil)
	assert.Equal(t, before+2, testutil.ToFloat64(clientRequestsTotal.WithLabelValues("GET", "/get/:key", "ok")))

	retries := testutil.ToFloat64(clientRetriesTotal.WithLabelValues("POST", "/set"))
	o.OnRetryAttempt("POST", "/set", 1, time.Millisecond, errors.New("timeout"))
	assert.Equal(t, retries+1, testutil.ToFloat64(clientRetriesTotal.WithLabelValues("POST", "/set")))

	opened := testutil.ToFloat64(clientCircuitTransitions.WithLabelValues("/list", "open"))
	o.OnCircuitBreakerStateChange("/list", sdk.CircuitClosed, sdk.CircuitOpen)
	assert.Equal(t, opened+1, testutil.ToFloat64(clientCircuitTransitions.WithLabelValues("/list", "open")))
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	entry := NewLogger(&Config{LogLevel: "debug", ServiceName: "test"}, &buf)
	o := NewLogObserver(entry)

	o.OnRequestEnd("GET", "/status", 3*time.Millisecond, &sdk.StatusError{StatusCode: 500})
	o.OnCircuitBreakerStateChange("/status", sdk.CircuitClosed, sdk.CircuitOpen)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "Request failed", first["message"])
	assert.Equal(t, "500", first["outcome"])
	assert.Equal(t, "test", first["service.name"])
	assert.Contains(t, first, "@timestamp")

	assert.Contains(t, lines[1], "Circuit breaker state changed")
}

func TestLogObserver_DefaultsToGlobalLogger(t *testing.T) {
	o := NewLogObserver(nil)
	assert.NotNil(t, o.log)
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	entry := NewLogger(&Config{LogLevel: "bogus", LogFormat: "text"}, &buf)

	assert.Equal(t, logrus.InfoLevel, entry.Logger.GetLevel())
	entry.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestInitLogger_FileCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cooldb.json")
	require.NoError(t, InitLogger(&Config{LogLevel: "info", LogsFilePath: path, ServiceName: "cooldb"}))
	defer func() {
		CloseLogger()
		base = nil
	}()

	WithError(errors.New("boom")).Info("written")
	require.NoError(t, CloseLogger())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &line))
	assert.Equal(t, "written", line["message"])
	assert.Equal(t, "boom", line["error"])
}

func TestTracingTransport(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	}()

	var seen http.Header
	inner := sdk.TransportFunc(func(ctx context.Context, req *sdk.Request) (*sdk.Response, error) {
		seen = req.Header.Clone()
		return &sdk.Response{StatusCode: 404, Body: []byte(`{"error":"Key not found"}`)}, nil
	})

	transport := NewTracingTransport(inner)
	resp, err := transport.Do(context.Background(), &sdk.Request{
		Method: "GET",
		URL:    "http://cooldb.test/get/k",
		Path:   "/get/k",
		Header: http.Header{},
	})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.NotEmpty(t, seen.Get("traceparent"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "cooldb GET /get/:key", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
	assert.NoError(t, transport.Close())
}

func TestTracingTransport_TransportError(t *testing.T) {
	inner := sdk.TransportFunc(func(ctx context.Context, req *sdk.Request) (*sdk.Response, error) {
		return nil, errors.New("dial tcp: refused")
	})

	_, err := NewTracingTransport(inner).Do(context.Background(), &sdk.Request{Method: "GET", Path: "/list"})
	assert.EqualError(t, err, "dial tcp: refused")
}

func TestFiberMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(FiberMetricsMiddleware())
	app.Use(FiberLoggingMiddleware())
	app.Get("/get/:key", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Key not found"})
	})
	app.Get("/metrics", PrometheusHandler())

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/get/:key", "404"))

	resp, err := app.Test(httptest.NewRequest("GET", "/get/anything", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/get/:key", "404")))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "cooldb_http_requests_total")
}

func TestTimeOperation(t *testing.T) {
	before := testutil.CollectAndCount(storeOperationDuration)

	_, done := TimeOperation(context.Background(), "test_op")
	done("ok")

	assert.Equal(t, before+1, testutil.CollectAndCount(storeOperationDuration))
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("ENABLE_TRACING", "")
	t.Setenv("METRICS_INTERVAL", "notanumber")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "cooldb", cfg.ServiceName)
	assert.False(t, cfg.EnableTracing)
	assert.Equal(t, 10, cfg.MetricsInterval)

	t.Setenv("ENABLE_TRACING", "true")
	assert.True(t, NewConfigFromEnv().EnableTracing)
}
