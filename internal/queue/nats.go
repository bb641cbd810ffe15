package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Client represents a NATS JetStream client
type Client struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config *Config
}

// NewClient creates a new NATS JetStream client
func NewClient(config *Config) (*Client, error) {
	if !config.Enabled() {
		return nil, fmt.Errorf("NATS_URL is not configured")
	}

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				telemetry.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			telemetry.WithFields(logrus.Fields{"url": nc.ConnectedUrl()}).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			telemetry.WithError(err).Error("NATS error")
		}),
	}

	if config.User != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.User, config.Password))
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &Client{
		nc:     nc,
		js:     js,
		config: config,
	}

	if err := client.initializeStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	return client, nil
}

// initializeStreams creates the event and DLQ streams
func (c *Client) initializeStreams() error {
	mainStreamConfig := &nats.StreamConfig{
		Name:        c.config.StreamName,
		Description: "CoolDB write events",
		Subjects:    []string{SubjectSet},
		Retention:   nats.LimitsPolicy,
		MaxAge:      c.config.StreamMaxAge,
		MaxBytes:    c.config.StreamMaxBytes,
		MaxMsgs:     c.config.StreamMaxMsgs,
		MaxMsgSize:  c.config.StreamMaxMsgSize,
		Replicas:    c.config.StreamReplicas,
		Duplicates:  5 * time.Minute,
		Storage:     nats.FileStorage,
	}

	if _, err := c.js.AddStream(mainStreamConfig); err != nil {
		if _, err = c.js.UpdateStream(mainStreamConfig); err != nil {
			return fmt.Errorf("failed to create/update main stream: %w", err)
		}
	}

	dlqStreamConfig := &nats.StreamConfig{
		Name:        c.config.DLQStreamName,
		Description: "CoolDB write events DLQ",
		Subjects:    []string{SubjectDLQ},
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    c.config.StreamMaxBytes / 10,
		MaxMsgs:     c.config.StreamMaxMsgs / 10,
		MaxMsgSize:  c.config.StreamMaxMsgSize,
		Replicas:    c.config.StreamReplicas,
		Storage:     nats.FileStorage,
	}

	if _, err := c.js.AddStream(dlqStreamConfig); err != nil {
		if _, err = c.js.UpdateStream(dlqStreamConfig); err != nil {
			return fmt.Errorf("failed to create/update DLQ stream: %w", err)
		}
	}

	return nil
}

// PublishSet announces a write of key
func (c *Client) PublishSet(ctx context.Context, key string, value json.RawMessage) error {
	return c.PublishEvent(ctx, NewSetEvent(key, value))
}

// PublishEvent publishes a set event and waits for the stream acknowledgement.
// The current trace context travels in the message headers.
func (c *Client) PublishEvent(ctx context.Context, event *SetEvent) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal set event: %w", err)
	}

	span, ctx := tracer.StartSpanFromContext(ctx, "nats.publish",
		tracer.ServiceName("cooldb-events"),
		tracer.ResourceName("publish "+SubjectSet),
		tracer.SpanType("queue"),
		tracer.Tag("messaging.system", "nats"),
		tracer.Tag("messaging.destination", SubjectSet),
		tracer.Tag("messaging.operation", "send"),
	)
	defer span.Finish()

	msg := nats.NewMsg(SubjectSet)
	msg.Data = data
	if err := tracer.Inject(span.Context(), tracer.HTTPHeadersCarrier(msg.Header)); err != nil {
		telemetry.WithContext(ctx).WithError(err).Debug("Failed to inject trace context")
	}

	if err := c.publishMsg(ctx, msg, nats.MsgId(event.ID)); err != nil {
		span.SetTag("error", err)
		return fmt.Errorf("set event publish failed: %w", err)
	}
	return nil
}

// publishMsg publishes asynchronously and waits for the ack or ctx
func (c *Client) publishMsg(ctx context.Context, msg *nats.Msg, opts ...nats.PubOpt) error {
	pubAck, err := c.js.PublishMsgAsync(msg, opts...)
	if err != nil {
		return err
	}

	select {
	case <-pubAck.Ok():
		return nil
	case err := <-pubAck.Err():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateConsumer creates a durable consumer for processing messages
func (c *Client) CreateConsumer(streamName, consumerName, filterSubject string) (*nats.ConsumerInfo, error) {
	consumerConfig := &nats.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       c.config.ConsumerAckWait,
		MaxDeliver:    c.config.ConsumerMaxDeliver,
		MaxAckPending: c.config.ConsumerMaxAckPending,
		ReplayPolicy:  nats.ReplayInstantPolicy,
		DeliverPolicy: nats.DeliverAllPolicy,
		FilterSubject: filterSubject,
	}

	info, err := c.js.AddConsumer(streamName, consumerConfig)
	if err != nil {
		info, err = c.js.UpdateConsumer(streamName, consumerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create/update consumer: %w", err)
		}
	}

	return info, nil
}

// Subscribe binds a pull subscription to a durable consumer and feeds fetched
// messages to handler until ctx is done.
func (c *Client) Subscribe(ctx context.Context, streamName, consumerName string, handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := c.js.PullSubscribe(
		"",
		consumerName,
		nats.ManualAck(),
		nats.Bind(streamName, consumerName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	go func() {
		for ctx.Err() == nil {
			msgs, err := sub.Fetch(c.config.BatchSize, nats.MaxWait(c.config.BatchTimeout))
			if err != nil {
				if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
					return
				}
				if !errors.Is(err, nats.ErrTimeout) {
					telemetry.WithError(err).Warn("Error fetching messages")
				}
				continue
			}

			for _, msg := range msgs {
				handler(msg)
			}
		}
	}()

	return sub, nil
}

// Health checks the NATS connection health
func (c *Client) Health() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}

	if _, err := c.js.AccountInfo(); err != nil {
		return fmt.Errorf("JetStream health check failed: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}

// StreamInfo returns information about a stream
func (c *Client) StreamInfo(streamName string) (*nats.StreamInfo, error) {
	return c.js.StreamInfo(streamName)
}

// ConsumerInfo returns information about a consumer
func (c *Client) ConsumerInfo(streamName, consumerName string) (*nats.ConsumerInfo, error) {
	return c.js.ConsumerInfo(streamName, consumerName)
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() *Config {
	return c.config
}
