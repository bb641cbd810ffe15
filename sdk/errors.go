package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is. Every error returned by a Client
// operation matches exactly one of ErrInvalidArgument and ErrRequestFailed.
//
// Example:
//
//	value, err := client.GetValue(ctx, key)
//	if errors.Is(err, sdk.ErrInvalidArgument) {
//	    // Caller bug, nothing was sent
//	} else if errors.Is(err, sdk.ErrRequestFailed) {
//	    log.Printf("lookup failed: %v", err)
//	}
var (
	// ErrInvalidArgument matches errors raised locally before any network activity
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRequestFailed matches every failure of an exchange with the server
	ErrRequestFailed = errors.New("request failed")

	// ErrInvalidConfig is returned by NewClient for an unusable Config
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCircuitOpen is returned by CircuitBreakerTransport while the circuit rejects calls
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

const (
	requestFailedPrefix  = "API request failed: "
	networkFailedMessage = "Network request failed"
	keyRequiredMessage   = "Key is required"
)

// ErrorKind categorizes an Error. There are only two kinds: a caller can tell
// a local argument problem from a failed request, but cannot tell a transport
// failure from a server-reported one.
type ErrorKind int

const (
	// KindRequestFailed covers non-2xx responses, transport failures and
	// unparseable response bodies
	KindRequestFailed ErrorKind = iota
	// KindInvalidArgument covers caller-supplied arguments rejected locally
	KindInvalidArgument
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindRequestFailed:
		return "request_failed"
	default:
		return "unknown"
	}
}

// Error is the single error shape returned by the client. Its message is the
// whole contract; the wrapped cause is kept for errors.Unwrap only.
//
// Example:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    fmt.Println(sdkErr.Kind, sdkErr.Message)
//	}
type Error struct {
	// Kind categorizes the error
	Kind ErrorKind
	// Message is the human-readable description, returned verbatim by Error()
	Message string

	wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is implements errors.Is against the kind sentinels
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInvalidArgument:
		return target == ErrInvalidArgument
	case KindRequestFailed:
		return target == ErrRequestFailed
	}
	return false
}

// NewError creates an Error of the given kind
func NewError(kind ErrorKind, message string, wrapped error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		wrapped: wrapped,
	}
}

// invalidArgument builds an InvalidArgument error
func invalidArgument(message string) *Error {
	return NewError(KindInvalidArgument, message, nil)
}

// requestFailed normalizes any failure into a RequestFailed error. The message
// is taken from the cause when it has one, otherwise a fixed network message
// is used.
func requestFailed(cause error) *Error {
	if cause == nil || cause.Error() == "" {
		return NewError(KindRequestFailed, networkFailedMessage, cause)
	}
	return NewError(KindRequestFailed, requestFailedPrefix+cause.Error(), cause)
}

// serverError is the cause recorded for a non-2xx response
type serverError struct {
	statusCode int
	message    string
}

func (e *serverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("HTTP error - status: %d", e.statusCode)
}

// IsInvalidArgument reports whether err is a locally raised argument error
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsRequestFailed reports whether err is a failed request
func IsRequestFailed(err error) bool {
	return errors.Is(err, ErrRequestFailed)
}
