package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// RequestOptions configures one call to the executor. The zero value is a GET
// with no body and only the default headers.
type RequestOptions struct {
	// Method is the HTTP verb; empty means GET
	Method string
	// Body is JSON-encoded as the payload when non-nil
	Body interface{}
	// Headers are merged over the defaults; a caller value wins over a
	// default of the same name
	Headers http.Header
}

// defaultHeaders returns the headers attached to every request
func defaultHeaders() http.Header {
	h := make(http.Header, 2)
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	return h
}

// do executes exactly one exchange against baseURL+path and returns the
// decoded JSON body. Every failure path returns a RequestFailed *Error.
func (c *Client) do(ctx context.Context, path string, opts *RequestOptions) (interface{}, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	req, err := c.buildRequest(path, opts)
	if err != nil {
		return nil, requestFailed(err)
	}

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, requestFailed(err)
	}

	// The server always answers with JSON, error responses included
	decoded, err := decodeBody(resp.Body)
	if err != nil {
		return nil, requestFailed(err)
	}

	if resp.OK() {
		return decoded, nil
	}

	return nil, requestFailed(&serverError{
		statusCode: resp.StatusCode,
		message:    errorField(decoded),
	})
}

// buildRequest merges headers and encodes the body
func (c *Client) buildRequest(path string, opts *RequestOptions) (*Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	header := defaultHeaders()
	for name, values := range opts.Headers {
		header.Del(name)
		for _, v := range values {
			header.Add(name, v)
		}
	}

	var body []byte
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = data
	}

	return &Request{
		Method: method,
		URL:    c.baseURL + path,
		Path:   path,
		Header: header,
		Body:   body,
	}, nil
}

// decodeBody parses a whole JSON document. Numbers come back as json.Number
// so integers beyond float64 precision survive a re-encode.
func decodeBody(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid character after top-level value")
	}
	return decoded, nil
}

// errorField returns the server-reported "error" string of a decoded body, or
// "" when the body is not an object or carries no usable error.
func errorField(decoded interface{}) string {
	msg, _ := field(decoded, "error").(string)
	return msg
}

// field extracts a named member of a decoded JSON object. Anything that is
// not an object yields nil.
func field(decoded interface{}, name string) interface{} {
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil
	}
	return obj[name]
}
