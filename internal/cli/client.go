package cli

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/birbparty/cooldb/sdk"
)

// newClient builds an sdk client from the global flags. Exchanges are traced,
// optionally retried, and logged when verbose.
func newClient(opts *GlobalOptions) (*sdk.Client, error) {
	config := sdk.DefaultConfig().
		WithBaseURL(opts.Server).
		WithTimeout(opts.Timeout)

	var transport sdk.Transport
	switch opts.Transport {
	case "http", "":
		transport = sdk.NewHTTPTransport(config)
	case "fasthttp":
		transport = sdk.NewFastHTTPTransport(config)
	default:
		return nil, fmt.Errorf("unknown transport %q: must be http or fasthttp", opts.Transport)
	}

	transport = telemetry.NewTracingTransport(transport)

	var observer sdk.Observer
	if opts.Verbose {
		observer = telemetry.NewLogObserver(opts.log)
	}

	if opts.Retries > 0 {
		strategy := sdk.DefaultExponentialBackoff()
		strategy.Budget.MaxAttempts = opts.Retries
		retrying := sdk.NewRetryTransport(transport, strategy)
		if observer != nil {
			retrying.WithObserver(observer)
		}
		transport = retrying
	}

	config.WithTransport(transport)
	if observer != nil {
		config.WithObserver(observer)
	}

	return sdk.NewClient(config)
}

// callOptions turns --header values into per-call header overrides
func callOptions(opts *GlobalOptions) ([]sdk.CallOption, error) {
	if len(opts.Headers) == 0 {
		return nil, nil
	}

	headers := http.Header{}
	for _, h := range opts.Headers {
		name, value, ok := strings.Cut(h, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected Name=Value", h)
		}
		headers.Add(name, value)
	}

	return []sdk.CallOption{sdk.WithHeaders(headers)}, nil
}
