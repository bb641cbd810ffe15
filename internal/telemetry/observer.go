package telemetry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/birbparty/cooldb/sdk"
	"github.com/sirupsen/logrus"
)

// PrometheusObserver exports CoolDB client exchanges as Prometheus metrics
type PrometheusObserver struct{}

// NewPrometheusObserver creates a Prometheus-backed sdk.Observer
func NewPrometheusObserver() *PrometheusObserver {
	return &PrometheusObserver{}
}

func (o *PrometheusObserver) OnRequestStart(method, path string) {}

func (o *PrometheusObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	route := RouteLabel(path)
	clientRequestsTotal.WithLabelValues(method, route, Outcome(err)).Inc()
	clientRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (o *PrometheusObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	clientRetriesTotal.WithLabelValues(method, RouteLabel(path)).Inc()
}

func (o *PrometheusObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState sdk.CircuitState) {
	clientCircuitTransitions.WithLabelValues(RouteLabel(endpoint), newState.String()).Inc()
}

// LogObserver logs CoolDB client exchanges
type LogObserver struct {
	log *logrus.Entry
}

// NewLogObserver logs through entry, or the global logger when entry is nil
func NewLogObserver(entry *logrus.Entry) *LogObserver {
	if entry == nil {
		entry = L()
	}
	return &LogObserver{log: entry}
}

func (o *LogObserver) OnRequestStart(method, path string) {
	o.log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("Request started")
}

func (o *LogObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	entry := o.log.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"duration_ms": duration.Milliseconds(),
		"outcome":     Outcome(err),
	})
	if err != nil {
		entry.WithError(err).Debug("Request failed")
		return
	}
	entry.Debug("Request completed")
}

func (o *LogObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	o.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
	}).WithError(err).Debug("Retrying request")
}

func (o *LogObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState sdk.CircuitState) {
	o.log.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"from":     oldState.String(),
		"to":       newState.String(),
	}).Warn("Circuit breaker state changed")
}

// RouteLabel collapses per-key paths so metric labels stay bounded
func RouteLabel(path string) string {
	if strings.HasPrefix(path, "/get/") {
		return "/get/:key"
	}
	return path
}

// Outcome classifies an exchange result for labels: ok, the HTTP status
// code of a non-2xx response, or error.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var statusErr *sdk.StatusError
	if errors.As(err, &statusErr) {
		return strconv.Itoa(statusErr.StatusCode)
	}
	return "error"
}

var (
	_ sdk.Observer = (*PrometheusObserver)(nil)
	_ sdk.Observer = (*LogObserver)(nil)
)
