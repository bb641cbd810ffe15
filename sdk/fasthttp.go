//go:build !wasm

package sdk

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// FastHTTPTransport carries exchanges over valyala/fasthttp. It trades the
// net/http API for fewer allocations on hot paths such as bulk exports.
//
// The exchange deadline is the earlier of the context deadline and
// Config.Timeout.
type FastHTTPTransport struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewFastHTTPTransport creates a fasthttp transport configured from config.
// If config is nil, DefaultConfig is used.
func NewFastHTTPTransport(config *Config) *FastHTTPTransport {
	if config == nil {
		config = DefaultConfig()
	}

	return &FastHTTPTransport{
		client: &fasthttp.Client{
			Name:                   "cooldb-sdk",
			MaxConnsPerHost:        config.TransportConfig.MaxConnsPerHost,
			MaxIdleConnDuration:    config.TransportConfig.IdleConnTimeout,
			DisablePathNormalizing: true, // keys are sent exactly as escaped
		},
		timeout: config.Timeout,
	}
}

// Do performs a single exchange
func (t *FastHTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.SetRequestURI(req.URL)
	freq.Header.SetMethod(req.Method)
	for name, values := range req.Header {
		for i, v := range values {
			if i == 0 {
				freq.Header.Set(name, v)
			} else {
				freq.Header.Add(name, v)
			}
		}
	}
	if req.Body != nil {
		freq.SetBody(req.Body)
	}

	deadline := time.Now().Add(t.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if err := t.client.DoDeadline(freq, fresp, deadline); err != nil {
		return nil, err
	}

	header := make(http.Header)
	fresp.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})

	// fresp is released on return, so the body must be copied
	body := append([]byte(nil), fresp.Body()...)

	return &Response{
		StatusCode: fresp.StatusCode(),
		Header:     header,
		Body:       body,
	}, nil
}

// Close closes idle connections
func (t *FastHTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
