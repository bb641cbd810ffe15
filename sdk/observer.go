package sdk

import (
	"context"
	"sync"
	"time"
)

// Observer provides hooks for monitoring client exchanges.
// Observer methods should be fast and non-blocking.
//
// Example implementation:
//
//	type LogObserver struct {
//	    logger *log.Logger
//	}
//
//	func (o *LogObserver) OnRequestStart(method, path string) {
//	    o.logger.Printf("[START] %s %s", method, path)
//	}
//
//	func (o *LogObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
//	    if err != nil {
//	        o.logger.Printf("[ERROR] %s %s - %v (took %v)", method, path, err, duration)
//	    } else {
//	        o.logger.Printf("[SUCCESS] %s %s (took %v)", method, path, duration)
//	    }
//	}
type Observer interface {
	// OnRequestStart is called when an exchange starts.
	// path is relative to the base address (e.g. "/get/key123").
	OnRequestStart(method, path string)

	// OnRequestEnd is called when an exchange completes. err is the transport
	// error, a *StatusError for a non-2xx response, or nil.
	OnRequestEnd(method, path string, duration time.Duration, err error)

	// OnRetryAttempt is called by RetryTransport before each retry
	OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error)

	// OnCircuitBreakerStateChange is called by CircuitBreakerTransport on
	// every state change. endpoint is the path of the triggering exchange.
	OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState)
}

// NoopObserver is an observer that does nothing
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(method, path string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {}

// OnRetryAttempt does nothing
func (n *NoopObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
}

// OnCircuitBreakerStateChange does nothing
func (n *NoopObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
}

// ObservedTransport notifies an Observer around every exchange of the wrapped
// transport. NewClient installs one when Config.Observer is set.
type ObservedTransport struct {
	next     Transport
	observer Observer
}

// NewObservedTransport wraps next. A nil observer selects NoopObserver.
func NewObservedTransport(next Transport, observer Observer) *ObservedTransport {
	if observer == nil {
		observer = &NoopObserver{}
	}
	return &ObservedTransport{next: next, observer: observer}
}

// Do forwards the exchange and reports its outcome
func (t *ObservedTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	t.observer.OnRequestStart(req.Method, req.Path)
	start := time.Now()

	resp, err := t.next.Do(ctx, req)

	outcome := err
	if err == nil && !resp.OK() {
		outcome = &StatusError{StatusCode: resp.StatusCode}
	}
	t.observer.OnRequestEnd(req.Method, req.Path, time.Since(start), outcome)

	return resp, err
}

// Close closes the wrapped transport if it holds resources
func (t *ObservedTransport) Close() error {
	return closeTransport(t.next)
}

// MetricsCollector is a simple in-memory Observer. It collects request
// counts, latencies, error counts, retry attempts and circuit state changes
// keyed by "METHOD path".
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	client, _ := sdk.NewClient(sdk.DefaultConfig().WithObserver(metrics))
//
//	// Use client...
//
//	snapshot := metrics.GetMetrics()
//	fmt.Printf("Total requests: %v\n", snapshot["requests"])
type MetricsCollector struct {
	mu                  sync.RWMutex
	requestCount        map[string]int64
	latencies           map[string][]time.Duration
	errorCount          map[string]int64
	retryCount          map[string]int64
	circuitStateChanges map[string]int64
}

// NewMetricsCollector creates a new metrics collector. It is safe for
// concurrent use.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount:        make(map[string]int64),
		latencies:           make(map[string][]time.Duration),
		errorCount:          make(map[string]int64),
		retryCount:          make(map[string]int64),
		circuitStateChanges: make(map[string]int64),
	}
}

// OnRequestStart increments request count
func (m *MetricsCollector) OnRequestStart(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[method+" "+path]++
}

// OnRequestEnd records request duration and errors
func (m *MetricsCollector) OnRequestEnd(method, path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.latencies[key] = append(m.latencies[key], duration)
	if err != nil {
		m.errorCount[key]++
	}
}

// OnRetryAttempt increments retry count
func (m *MetricsCollector) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount[method+" "+path]++
}

// OnCircuitBreakerStateChange tracks state changes
func (m *MetricsCollector) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitStateChanges[endpoint]++
}

// GetMetrics returns a snapshot of current metrics.
// The returned maps are copies and safe to read without locks.
//
// The metrics include:
//   - "requests": map of endpoint to request count
//   - "latencies": map of endpoint to latency measurements
//   - "errors": map of endpoint to error count
//   - "retries": map of endpoint to retry count
//   - "circuit_breaker_state_changes": map of endpoint to state change count
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latenciesCopy := make(map[string][]time.Duration, len(m.latencies))
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}

	return map[string]interface{}{
		"requests":                      copyCounts(m.requestCount),
		"latencies":                     latenciesCopy,
		"errors":                        copyCounts(m.errorCount),
		"retries":                       copyCounts(m.retryCount),
		"circuit_breaker_state_changes": copyCounts(m.circuitStateChanges),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// CompositeObserver fans every notification out to several observers in order
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to observers
func NewCompositeObserver(observers ...Observer) *CompositeObserver {
	return &CompositeObserver{observers: observers}
}

// OnRequestStart notifies all observers
func (c *CompositeObserver) OnRequestStart(method, path string) {
	for _, obs := range c.observers {
		obs.OnRequestStart(method, path)
	}
}

// OnRequestEnd notifies all observers
func (c *CompositeObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	for _, obs := range c.observers {
		obs.OnRequestEnd(method, path, duration, err)
	}
}

// OnRetryAttempt notifies all observers
func (c *CompositeObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	for _, obs := range c.observers {
		obs.OnRetryAttempt(method, path, attempt, delay, err)
	}
}

// OnCircuitBreakerStateChange notifies all observers
func (c *CompositeObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
	for _, obs := range c.observers {
		obs.OnCircuitBreakerStateChange(endpoint, oldState, newState)
	}
}
