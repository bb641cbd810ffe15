package sdk

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Transport performs exactly one HTTP exchange. It is the only way the client
// reaches the network, so tests can substitute a spy and deployments can
// substitute a retrying, circuit-breaking or traced implementation without
// touching the Client operations.
//
// A Transport returns an error only when no response was obtained. Any
// response, including non-2xx ones, is returned as a *Response so the caller
// can decode its body.
//
// Implementations provided by this package:
//   - HTTPTransport: net/http (default)
//   - FastHTTPTransport: valyala/fasthttp
//   - RetryTransport, CircuitBreakerTransport, ObservedTransport: decorators
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts an ordinary function to the Transport interface
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req)
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request describes one outbound exchange. It is built by the executor for a
// single call and discarded afterwards.
type Request struct {
	// Method is the HTTP verb
	Method string
	// URL is the full target: base address plus path
	URL string
	// Path is the path relative to the base address, kept for observers
	Path string
	// Header holds the final merged headers
	Header http.Header
	// Body is the encoded payload, nil when the request has none
	Body []byte
}

// Response is what a Transport hands back for a completed exchange
type Response struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Header holds the response headers, may be nil
	Header http.Header
	// Body is the complete response body
	Body []byte
}

// OK reports whether the status code is in the 2xx range
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// escapeSegment encodes s as a single path segment. Every reserved character,
// including '/', is percent-encoded, and spaces become %20 rather than '+'.
//
// Example:
//
//	escapeSegment("my key/with=special&chars")
//	// Result: "my%20key%2Fwith%3Dspecial%26chars"
func escapeSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// closeTransport closes t if it holds resources
func closeTransport(t Transport) error {
	if closer, ok := t.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
