//go:build wasm

package sdk

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"
	"time"
)

// HTTPTransport carries exchanges over the host's fetch API when the client
// runs as WebAssembly in a browser or Node.js.
type HTTPTransport struct {
	timeout time.Duration
}

// NewHTTPTransport creates a fetch-backed transport.
// If config is nil, DefaultConfig is used.
func NewHTTPTransport(config *Config) *HTTPTransport {
	if config == nil {
		config = DefaultConfig()
	}
	return &HTTPTransport{timeout: config.Timeout}
}

type fetchResult struct {
	status int
	body   string
}

// Do performs a single exchange with fetch and reads the body as text
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	fetchFunc := js.Global().Get("fetch")
	if !fetchFunc.Truthy() {
		return nil, errors.New("fetch API not available")
	}

	headers := js.Global().Get("Object").New()
	for name := range req.Header {
		headers.Set(name, req.Header.Get(name))
	}

	opts := js.Global().Get("Object").New()
	opts.Set("method", req.Method)
	opts.Set("headers", headers)
	if req.Body != nil {
		opts.Set("body", string(req.Body))
	}

	resultChan := make(chan fetchResult, 1)
	errChan := make(chan error, 1)

	var onResponse, onText, onError js.Func
	defer func() {
		onResponse.Release()
		onText.Release()
		onError.Release()
	}()

	var status int
	onText = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resultChan <- fetchResult{status: status, body: args[0].String()}
		return nil
	})
	onResponse = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		status = args[0].Get("status").Int()
		args[0].Call("text").Call("then", onText).Call("catch", onError)
		return nil
	})
	onError = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		msg := ""
		if len(args) > 0 && args[0].Get("message").Truthy() {
			msg = args[0].Get("message").String()
		}
		errChan <- errors.New(msg)
		return nil
	})

	fetchFunc.Invoke(req.URL, opts).Call("then", onResponse).Call("catch", onError)

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return &Response{StatusCode: res.status, Body: []byte(res.body)}, nil
	case err := <-errChan:
		return nil, err
	case <-timer.C:
		return nil, fmt.Errorf("fetch %s: timeout", req.URL)
	}
}
