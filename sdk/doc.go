// Package sdk is the Go client library for CoolDB, a small JSON key-value
// server. It exposes four operations over HTTP and normalizes every failure
// into a single error shape.
//
// # Basic Usage
//
//	client, err := sdk.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//
//	// Store a value; the server echoes it back
//	echoed, err := client.SetValue(ctx, "user:123", map[string]string{
//	    "name": "Alice",
//	})
//
//	// Retrieve a value
//	value, err := client.GetValue(ctx, "user:123")
//
//	// List keys and check status
//	keys, err := client.ListKeys(ctx)
//	status, err := client.GetStatus(ctx)
//
// Values are decoded JSON (map[string]interface{}, []interface{}, string,
// json.Number, bool or nil). Numbers keep their exact text. Use GetValueAs or TypedClient to convert them into
// Go types.
//
// # Error Handling
//
// Every error returned by an operation is an *Error of one of two kinds:
//
//	value, err := client.GetValue(ctx, key)
//	switch {
//	case errors.Is(err, sdk.ErrInvalidArgument):
//	    // Rejected locally, nothing was sent (empty key)
//	case errors.Is(err, sdk.ErrRequestFailed):
//	    // "API request failed: Key not found" and the like
//	}
//
// A server-reported {"error": "..."} body becomes "API request failed: ...";
// a non-2xx response without one becomes
// "API request failed: HTTP error - status: <code>"; a transport failure
// carries its own message.
//
// # Transports
//
// The network is reached only through a Transport. HTTPTransport (net/http)
// is the default; FastHTTPTransport uses valyala/fasthttp. Decorators add
// behavior without touching the operations:
//
//	var transport sdk.Transport = sdk.NewHTTPTransport(nil)
//	transport = sdk.NewCircuitBreakerTransport(transport, sdk.DefaultCircuitBreakerConfig())
//	transport = sdk.NewRetryTransport(transport, sdk.DefaultExponentialBackoff())
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().
//	    WithTransport(transport).
//	    WithObserver(sdk.NewMetricsCollector()))
//
// Tests can inject a TransportFunc to observe or fake exchanges.
//
// # Headers
//
// Every request carries Accept and Content-Type set to application/json.
// Per-call headers replace defaults of the same name:
//
//	client.GetValue(ctx, "k", sdk.WithHeader("Authorization", "Bearer token"))
//
// # WASM Support
//
// When built for GOOS=js GOARCH=wasm, HTTPTransport uses the host's fetch API.
package sdk
