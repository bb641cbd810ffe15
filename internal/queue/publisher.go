package queue

import (
	"context"
	"encoding/json"
)

// Publisher announces writes to interested consumers
type Publisher interface {
	PublishSet(ctx context.Context, key string, value json.RawMessage) error
	Close() error
}

// NoopPublisher drops every event. It is used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishSet(context.Context, string, json.RawMessage) error { return nil }
func (NoopPublisher) Close() error                                             { return nil }

// NewPublisher connects to NATS when configured, otherwise returns a NoopPublisher
func NewPublisher(config *Config) (Publisher, error) {
	if !config.Enabled() {
		return NoopPublisher{}, nil
	}
	return NewClient(config)
}

var (
	_ Publisher = (*Client)(nil)
	_ Publisher = NoopPublisher{}
)
