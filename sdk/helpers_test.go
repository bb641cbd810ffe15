package sdk

import (
	"context"
	"net/http"
	"sync"
)

// spyTransport records every request and answers from a fixed response or
// error, or from handle when set.
type spyTransport struct {
	mu       sync.Mutex
	requests []*Request

	status int
	body   string
	err    error
	handle func(call int, req *Request) (*Response, error)
}

func newSpyTransport(status int, body string) *spyTransport {
	return &spyTransport{status: status, body: body}
}

func (s *spyTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	s.mu.Unlock()

	if s.handle != nil {
		return s.handle(call, req)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Response{
		StatusCode: s.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(s.body),
	}, nil
}

func (s *spyTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *spyTransport) last() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func jsonResponse(status int, body string) *Response {
	return &Response{StatusCode: status, Body: []byte(body)}
}

// newSpyClient builds a client whose transport is spy
func newSpyClient(spy Transport) *Client {
	client, err := NewClient(DefaultConfig().WithBaseURL("http://cooldb.test").WithTransport(spy))
	if err != nil {
		panic(err)
	}
	return client
}
