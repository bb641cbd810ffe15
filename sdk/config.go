package sdk

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the conventional local development address of a CoolDB server
const DefaultBaseURL = "http://localhost:8080"

// Config holds the configuration for the CoolDB client.
// Only BaseURL matters to the wire protocol; everything else selects how the
// exchange is carried.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://cooldb.internal:8080").
//	    WithTimeout(5 * time.Second)
//
//	client, err := sdk.NewClient(config)
type Config struct {
	// BaseURL is prepended verbatim to every request path.
	// Default: "http://localhost:8080"
	BaseURL string

	// Transport performs the HTTP exchanges.
	// If nil, an HTTPTransport built from Timeout and TransportConfig is used.
	Transport Transport

	// Timeout bounds each exchange of the default HTTPTransport.
	// Default: 30s
	Timeout time.Duration

	// TransportConfig holds connection pool settings for the default HTTPTransport
	TransportConfig TransportConfig

	// Observer is notified of every exchange when set.
	// The configured Transport is wrapped in an ObservedTransport.
	Observer Observer
}

// TransportConfig holds HTTP transport configuration for connection pooling.
//
// Example:
//
//	config.TransportConfig = sdk.TransportConfig{
//	    MaxIdleConns:    200,
//	    MaxConnsPerHost: 50,
//	    IdleConnTimeout: 120 * time.Second,
//	}
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 10
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum time an idle connection will remain idle
	// before closing itself. Zero means no limit.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// DefaultConfig returns a Config pointing at the local development server.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig())
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}

// WithBaseURL sets the base address of the server.
// The address is used as given, so it should not end with a slash.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the per-exchange timeout of the default transport
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithTransport injects the transport used for every exchange.
//
// Example:
//
//	retrying := sdk.NewRetryTransport(sdk.NewHTTPTransport(nil), sdk.DefaultExponentialBackoff())
//	config := sdk.DefaultConfig().WithTransport(retrying)
func (c *Config) WithTransport(transport Transport) *Config {
	c.Transport = transport
	return c
}

// WithObserver sets an observer notified of every exchange
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// It is called by NewClient.
//
// Returns an error wrapping ErrInvalidConfig if BaseURL is not an absolute
// URL with a scheme and host.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL: %v", ErrInvalidConfig, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: base URL must have a scheme and host", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.TransportConfig.MaxIdleConns < 0 {
		c.TransportConfig.MaxIdleConns = 0
	}
	if c.TransportConfig.MaxConnsPerHost < 0 {
		c.TransportConfig.MaxConnsPerHost = 0
	}
	return nil
}
