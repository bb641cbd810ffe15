package api

import "encoding/json"

// SetRequest is the body of POST /set
type SetRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// SetResponse echoes the stored pair
type SetResponse struct {
	Message string          `json:"message"`
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
}

// GetResponse is the body of a successful GET /get/:key
type GetResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ListResponse is the body of GET /list
type ListResponse struct {
	Keys []string `json:"keys"`
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Response messages
const (
	MsgSetSuccess       = "Key-value pair set successfully"
	MsgInvalidRequest   = "Invalid request"
	MsgKeyNotFound      = "Key not found"
	MsgEndpointNotFound = "Endpoint not found"
)

// NewErrorResponse creates a new error response
func NewErrorResponse(err string) *ErrorResponse {
	return &ErrorResponse{Error: err}
}
