package sdk

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryStrategy defines how retries should be performed.
// Different strategies provide different behaviors for retry intervals
// and determine which failures should trigger retries.
//
// The SDK provides several built-in strategies:
//   - ExponentialBackoffStrategy: Exponentially increasing delays
//   - ConstantBackoffStrategy: Fixed delay between retries
//   - NoRetryStrategy: Disables retries entirely
//
// You can also implement custom strategies:
//
//	type CustomStrategy struct{}
//
//	func (s *CustomStrategy) NextInterval(attempt int) time.Duration {
//	    return time.Duration(attempt*attempt) * time.Second
//	}
//
//	func (s *CustomStrategy) ShouldRetry(err error, attempt int) bool {
//	    return sdk.IsRetryable(err) && attempt < 5
//	}
type RetryStrategy interface {
	// NextInterval returns the delay before the next retry attempt.
	// The attempt parameter starts at 1 for the first retry.
	// Return 0 to indicate no more retries should be attempted.
	NextInterval(attempt int) time.Duration

	// ShouldRetry determines if the failure is retryable for the given attempt.
	// A failed exchange is reported as a transport error; a retryable response
	// status is reported as a *StatusError.
	ShouldRetry(err error, attempt int) bool
}

// budgeted is implemented by strategies carrying a RetryBudget
type budgeted interface {
	RetryBudget() RetryBudget
}

// RetryBudget limits retry attempts by count and duration.
//
// Example:
//
//	strategy := &sdk.ExponentialBackoffStrategy{
//	    InitialInterval: 100 * time.Millisecond,
//	    MaxInterval:     5 * time.Second,
//	    Multiplier:      2.0,
//	    Budget: sdk.RetryBudget{
//	        MaxAttempts: 5,
//	        MaxDuration: 30 * time.Second,
//	    },
//	}
type RetryBudget struct {
	// MaxAttempts is the maximum number of retry attempts.
	// Set to 0 for unlimited attempts (not recommended).
	MaxAttempts int

	// MaxDuration is the maximum total time for all retries,
	// including the time spent in retry delays.
	// Set to 0 for no time limit.
	MaxDuration time.Duration
}

// DefaultRetryBudget returns a retry budget of 3 attempts within 30s
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{
		MaxAttempts: 3,
		MaxDuration: 30 * time.Second,
	}
}

// IsExhausted checks if the retry budget is exhausted
func (rb RetryBudget) IsExhausted(attempt int, elapsed time.Duration) bool {
	if rb.MaxAttempts > 0 && attempt > rb.MaxAttempts {
		return true
	}
	if rb.MaxDuration > 0 && elapsed >= rb.MaxDuration {
		return true
	}
	return false
}

// StatusError reports a response whose status code makes it worth retrying.
// It never leaves RetryTransport: once retries stop, the last response is
// handed back as-is so its body can still be decoded.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return (&serverError{statusCode: e.StatusCode}).Error()
}

// IsRetryable reports whether a failure is worth another attempt: any
// transport error except a cancelled or expired context, an open circuit, or
// a 5xx/429 response.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// ExponentialBackoffStrategy implements exponential backoff with jitter.
//
// The delay calculation is:
//
//	base = InitialInterval * (Multiplier ^ (attempt-1))
//	delay = min(base, MaxInterval) ± jitter
type ExponentialBackoffStrategy struct {
	// InitialInterval is the delay before the first retry
	InitialInterval time.Duration

	// MaxInterval caps every delay
	MaxInterval time.Duration

	// Multiplier is the exponential growth factor
	Multiplier float64

	// Jitter is the randomization factor (0.0 to 1.0).
	// 0.3 means ±30% randomization of the calculated interval.
	Jitter float64

	// Budget limits retry attempts by count and duration
	Budget RetryBudget
}

// DefaultExponentialBackoff returns an exponential backoff strategy with sensible defaults:
//   - InitialInterval: 100ms
//   - MaxInterval: 5s
//   - Multiplier: 2.0 (doubles each retry)
//   - Jitter: 0.3 (±30% randomization)
//   - Budget: 3 attempts, 30s max duration
func DefaultExponentialBackoff() *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.3,
		Budget:          DefaultRetryBudget(),
	}
}

// NextInterval calculates the next retry interval
func (s *ExponentialBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := float64(s.InitialInterval) * math.Pow(s.Multiplier, float64(attempt-1))
	if interval > float64(s.MaxInterval) {
		interval = float64(s.MaxInterval)
	}

	if s.Jitter > 0 {
		jitterRange := interval * s.Jitter
		interval += jitterRange * (2*rand.Float64() - 1)
	}

	if interval < 0 {
		interval = 0
	}

	return time.Duration(interval)
}

// ShouldRetry determines if the failure is retryable
func (s *ExponentialBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return IsRetryable(err)
}

// RetryBudget returns the strategy's budget
func (s *ExponentialBackoffStrategy) RetryBudget() RetryBudget {
	return s.Budget
}

// ConstantBackoffStrategy waits the same interval before every retry.
//
// Example:
//
//	strategy := &sdk.ConstantBackoffStrategy{
//	    Interval: 500 * time.Millisecond,
//	    Budget:   sdk.DefaultRetryBudget(),
//	}
type ConstantBackoffStrategy struct {
	// Interval is the fixed interval between retries
	Interval time.Duration

	// Budget limits retry attempts
	Budget RetryBudget
}

// DefaultConstantBackoff returns a 500ms constant strategy with the default budget
func DefaultConstantBackoff() *ConstantBackoffStrategy {
	return &ConstantBackoffStrategy{
		Interval: 500 * time.Millisecond,
		Budget:   DefaultRetryBudget(),
	}
}

// NextInterval returns the next retry interval
func (s *ConstantBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return s.Interval
}

// ShouldRetry determines if the failure is retryable
func (s *ConstantBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return IsRetryable(err)
}

// RetryBudget returns the strategy's budget
func (s *ConstantBackoffStrategy) RetryBudget() RetryBudget {
	return s.Budget
}

// NoRetryStrategy disables retries entirely
type NoRetryStrategy struct{}

// NextInterval always returns 0
func (s *NoRetryStrategy) NextInterval(attempt int) time.Duration {
	return 0
}

// ShouldRetry always returns false
func (s *NoRetryStrategy) ShouldRetry(err error, attempt int) bool {
	return false
}

// RetryTransport retries the wrapped transport on transport errors and on
// retryable response statuses. Each attempt resends the same Request.
//
// Example:
//
//	transport := sdk.NewRetryTransport(sdk.NewHTTPTransport(nil), sdk.DefaultExponentialBackoff())
//	client, err := sdk.NewClient(sdk.DefaultConfig().WithTransport(transport))
type RetryTransport struct {
	next     Transport
	strategy RetryStrategy
	observer Observer
}

// NewRetryTransport wraps next. A nil strategy selects DefaultExponentialBackoff.
func NewRetryTransport(next Transport, strategy RetryStrategy) *RetryTransport {
	if strategy == nil {
		strategy = DefaultExponentialBackoff()
	}
	return &RetryTransport{
		next:     next,
		strategy: strategy,
		observer: &NoopObserver{},
	}
}

// WithObserver reports retry attempts to observer
func (t *RetryTransport) WithObserver(observer Observer) *RetryTransport {
	if observer != nil {
		t.observer = observer
	}
	return t
}

// Do runs the exchange, retrying while the strategy and budget allow.
// When retries stop, the last response or error is returned unchanged.
func (t *RetryTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	for attempt := 1; ; attempt++ {
		resp, err := t.next.Do(ctx, req)

		failure := err
		if err == nil {
			if !retryableStatus(resp.StatusCode) {
				return resp, nil
			}
			failure = &StatusError{StatusCode: resp.StatusCode}
		}

		if !t.strategy.ShouldRetry(failure, attempt) {
			return resp, err
		}
		if ctx.Err() != nil {
			return resp, err
		}
		if b, ok := t.strategy.(budgeted); ok {
			if b.RetryBudget().IsExhausted(attempt, time.Since(startTime)) {
				return resp, err
			}
		}

		interval := t.strategy.NextInterval(attempt)
		if interval <= 0 {
			return resp, err
		}

		t.observer.OnRetryAttempt(req.Method, req.Path, attempt, interval, failure)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Close closes the wrapped transport if it holds resources
func (t *RetryTransport) Close() error {
	return closeTransport(t.next)
}
