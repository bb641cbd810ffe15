package sdk

import (
	"context"
	"fmt"
	"net/http"
)

// Client is a CoolDB client. It holds nothing but the base address it was
// built with and the transport used to reach it, so it is safe for concurrent
// use by multiple goroutines.
//
// Example:
//
//	client, err := sdk.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//
//	if _, err := client.SetValue(ctx, "greeting", "hello"); err != nil {
//	    log.Fatal(err)
//	}
//
//	value, err := client.GetValue(ctx, "greeting")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(value) // hello
type Client struct {
	baseURL   string
	transport Transport
}

// NewClient creates a new CoolDB client with the provided configuration.
// If config is nil, DefaultConfig is used. The base address is copied, so
// later changes to config do not affect the client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport := config.Transport
	if transport == nil {
		transport = NewHTTPTransport(config)
	}
	if config.Observer != nil {
		transport = NewObservedTransport(transport, config.Observer)
	}

	return &Client{
		baseURL:   config.BaseURL,
		transport: transport,
	}, nil
}

// New creates a client for baseURL with default settings.
// An empty baseURL selects DefaultBaseURL.
func New(baseURL string) (*Client, error) {
	return NewClient(DefaultConfig().WithBaseURL(baseURL))
}

// BaseURL returns the base address the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases resources held by the transport, if it holds any.
// Close is safe to call multiple times.
func (c *Client) Close() error {
	return closeTransport(c.transport)
}

// CallOption customizes a single operation
type CallOption func(*callOptions)

type callOptions struct {
	headers http.Header
}

// WithHeader overrides or adds one request header for a single call.
// A header named like a default (Accept, Content-Type) replaces the default.
//
// Example:
//
//	value, err := client.GetValue(ctx, "k", sdk.WithHeader("Accept", "application/vnd.cooldb+json"))
func WithHeader(name, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Set(name, value)
	}
}

// WithHeaders merges h into the request headers of a single call
func WithHeaders(h http.Header) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		for name, values := range h {
			o.headers.Del(name)
			for _, v := range values {
				o.headers.Add(name, v)
			}
		}
	}
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// setRequest is the body of a set exchange
type setRequest struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// SetValue stores value under key and returns the value echoed by the server.
// The key is not validated locally; the server rejects invalid keys and that
// surfaces as a RequestFailed error.
func (c *Client) SetValue(ctx context.Context, key string, value interface{}, opts ...CallOption) (interface{}, error) {
	o := applyCallOptions(opts)
	decoded, err := c.do(ctx, "/set", &RequestOptions{
		Method:  http.MethodPost,
		Body:    setRequest{Key: key, Value: value},
		Headers: o.headers,
	})
	if err != nil {
		return nil, err
	}
	return field(decoded, "value"), nil
}

// GetValue returns the value stored under key.
// An empty key fails with an InvalidArgument error without any exchange.
func (c *Client) GetValue(ctx context.Context, key string, opts ...CallOption) (interface{}, error) {
	if key == "" {
		return nil, invalidArgument(keyRequiredMessage)
	}

	o := applyCallOptions(opts)
	decoded, err := c.do(ctx, fmt.Sprintf("/get/%s", escapeSegment(key)), &RequestOptions{
		Headers: o.headers,
	})
	if err != nil {
		return nil, err
	}
	return field(decoded, "value"), nil
}

// ListKeys returns the keys known to the server. The elements are whatever
// the server sent; a "keys" member that is not an array yields nil.
func (c *Client) ListKeys(ctx context.Context, opts ...CallOption) ([]interface{}, error) {
	o := applyCallOptions(opts)
	decoded, err := c.do(ctx, "/list", &RequestOptions{Headers: o.headers})
	if err != nil {
		return nil, err
	}
	keys, _ := field(decoded, "keys").([]interface{})
	return keys, nil
}

// GetStatus returns the status reported by the server
func (c *Client) GetStatus(ctx context.Context, opts ...CallOption) (interface{}, error) {
	o := applyCallOptions(opts)
	decoded, err := c.do(ctx, "/status", &RequestOptions{Headers: o.headers})
	if err != nil {
		return nil, err
	}
	return field(decoded, "status"), nil
}
