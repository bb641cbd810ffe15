package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Subject names
const (
	SubjectSet = "cooldb.set"
	SubjectDLQ = "cooldb.dlq"
)

// Header names carried on published messages
const (
	HeaderRetries         = "X-Retries"
	HeaderOriginalSubject = "X-Original-Subject"
	HeaderFailedAt        = "X-Failed-At"
	HeaderDLQRetry        = "X-DLQ-Retry"
)

// SetEvent announces that a key was written
type SetEvent struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// DLQMessage represents a dead letter queue message
type DLQMessage struct {
	OriginalMessage json.RawMessage `json:"original_message"`
	OriginalSubject string          `json:"original_subject"`
	Error           string          `json:"error"`
	FailedAt        time.Time       `json:"failed_at"`
	Retries         int             `json:"retries"`
	MaxRetries      int             `json:"max_retries"`
}

// NewSetEvent creates a set event with a fresh ID
func NewSetEvent(key string, value json.RawMessage) *SetEvent {
	return &SetEvent{
		ID:        uuid.NewString(),
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
}

// Marshal converts the event to JSON bytes
func (e *SetEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Marshal converts the message to JSON bytes
func (m *DLQMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalSetEvent unmarshals a set event from JSON
func UnmarshalSetEvent(data []byte) (*SetEvent, error) {
	var event SetEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// UnmarshalDLQMessage unmarshals a DLQ message from JSON
func UnmarshalDLQMessage(data []byte) (*DLQMessage, error) {
	var msg DLQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
