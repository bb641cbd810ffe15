package sdk

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
//
// State transitions:
//   - Closed -> Open: When failure threshold is reached
//   - Open -> Half-Open: After timeout period expires
//   - Half-Open -> Closed: When success threshold is reached
//   - Half-Open -> Open: On any failure
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	// All requests pass through and failures are counted.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects all requests immediately
	CircuitOpen
	// CircuitHalfOpen allows a limited number of probe requests
	CircuitHalfOpen
)

// String returns the string representation of the circuit state
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for circuit breaker behavior.
//
// Example:
//
//	config := sdk.CircuitBreakerConfig{
//	    FailureThreshold: 10,
//	    SuccessThreshold: 3,
//	    Timeout:          time.Minute,
//	    HalfOpenRequests: 5,
//	}
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// the circuit opens.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes required
	// in half-open state before the circuit closes.
	// Default: 2
	SuccessThreshold int

	// Timeout is how long the circuit stays open before transitioning
	// to half-open state.
	// Default: 30s
	Timeout time.Duration

	// HalfOpenRequests is the maximum number of requests allowed
	// in half-open state.
	// Default: 3
	HalfOpenRequests int
}

// DefaultCircuitBreakerConfig returns a circuit breaker configuration
// with the defaults listed on CircuitBreakerConfig.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 3,
	}
}

// CircuitBreakerTransport fails fast with ErrCircuitOpen while the wrapped
// transport keeps failing. A transport error or a 5xx response counts as a
// failure; any other response counts as a success.
//
// Example:
//
//	transport := sdk.NewCircuitBreakerTransport(sdk.NewHTTPTransport(nil), sdk.DefaultCircuitBreakerConfig())
//	client, _ := sdk.NewClient(sdk.DefaultConfig().WithTransport(transport))
//
//	_, err := client.GetStatus(ctx)
//	if errors.Is(err, sdk.ErrCircuitOpen) {
//	    // The server is considered down
//	}
type CircuitBreakerTransport struct {
	next     Transport
	config   CircuitBreakerConfig
	observer Observer
	now      func() time.Time

	mu               sync.Mutex
	state            CircuitState
	failures         int
	successes        int
	halfOpenRequests int
	lastFailureTime  time.Time
}

// NewCircuitBreakerTransport wraps next with a breaker starting closed.
// Zero config fields take their defaults.
func NewCircuitBreakerTransport(next Transport, config CircuitBreakerConfig) *CircuitBreakerTransport {
	defaults := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = defaults.HalfOpenRequests
	}

	return &CircuitBreakerTransport{
		next:     next,
		config:   config,
		observer: &NoopObserver{},
		now:      time.Now,
		state:    CircuitClosed,
	}
}

// WithObserver reports state changes to observer
func (t *CircuitBreakerTransport) WithObserver(observer Observer) *CircuitBreakerTransport {
	if observer != nil {
		t.observer = observer
	}
	return t
}

// Do forwards the exchange if the circuit allows it
func (t *CircuitBreakerTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := t.acquire(req.Path); err != nil {
		return nil, err
	}

	resp, err := t.next.Do(ctx, req)
	t.record(req.Path, err != nil || resp.StatusCode >= 500)
	return resp, err
}

// State returns the current state of the circuit
func (t *CircuitBreakerTransport) State() CircuitState {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkStateTransition("")
	return t.state
}

// Reset manually resets the circuit to closed state
func (t *CircuitBreakerTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transitionTo("", CircuitClosed)
	t.failures = 0
	t.successes = 0
	t.halfOpenRequests = 0
}

// Close closes the wrapped transport if it holds resources
func (t *CircuitBreakerTransport) Close() error {
	return closeTransport(t.next)
}

func (t *CircuitBreakerTransport) acquire(endpoint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkStateTransition(endpoint)

	switch t.state {
	case CircuitOpen:
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if t.halfOpenRequests >= t.config.HalfOpenRequests {
			return ErrCircuitOpen
		}
		t.halfOpenRequests++
	}
	return nil
}

func (t *CircuitBreakerTransport) record(endpoint string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if failed {
		t.onFailure(endpoint)
	} else {
		t.onSuccess(endpoint)
	}
}

// checkStateTransition moves an open circuit to half-open once the timeout elapsed
func (t *CircuitBreakerTransport) checkStateTransition(endpoint string) {
	if t.state == CircuitOpen && t.now().Sub(t.lastFailureTime) >= t.config.Timeout {
		t.transitionTo(endpoint, CircuitHalfOpen)
	}
}

func (t *CircuitBreakerTransport) onSuccess(endpoint string) {
	switch t.state {
	case CircuitClosed:
		t.failures = 0
	case CircuitHalfOpen:
		t.successes++
		if t.successes >= t.config.SuccessThreshold {
			t.transitionTo(endpoint, CircuitClosed)
		}
	}
}

func (t *CircuitBreakerTransport) onFailure(endpoint string) {
	t.lastFailureTime = t.now()

	switch t.state {
	case CircuitClosed:
		t.failures++
		if t.failures >= t.config.FailureThreshold {
			t.transitionTo(endpoint, CircuitOpen)
		}
	case CircuitHalfOpen:
		t.transitionTo(endpoint, CircuitOpen)
	}
}

// transitionTo must be called with mu held
func (t *CircuitBreakerTransport) transitionTo(endpoint string, newState CircuitState) {
	if t.state == newState {
		return
	}

	oldState := t.state
	t.state = newState
	t.failures = 0
	t.successes = 0
	t.halfOpenRequests = 0

	t.observer.OnCircuitBreakerStateChange(endpoint, oldState, newState)
}
