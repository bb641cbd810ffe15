//go:build !wasm

package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTransport carries exchanges over net/http. It is the default transport
// of NewClient.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a net/http transport configured from config.
// If config is nil, DefaultConfig is used.
func NewHTTPTransport(config *Config) *HTTPTransport {
	if config == nil {
		config = DefaultConfig()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.TransportConfig.MaxIdleConns,
		MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

// NewHTTPTransportWithClient wraps an existing http.Client
func NewHTTPTransportWithClient(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

// Do performs a single HTTP exchange and reads the whole response body
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// Close closes idle connections
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
