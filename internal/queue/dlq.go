package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// DLQHandler handles dead letter queue operations
type DLQHandler struct {
	client *Client
	config *Config
	now    func() time.Time
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(client *Client) *DLQHandler {
	return &DLQHandler{
		client: client,
		config: client.config,
		now:    time.Now,
	}
}

// SendToDLQ parks a message the worker could not apply
func (h *DLQHandler) SendToDLQ(ctx context.Context, originalMsg *nats.Msg, cause error) error {
	retries := RetryCount(originalMsg)

	dlqMsg := &DLQMessage{
		OriginalMessage: originalMsg.Data,
		OriginalSubject: originalMsg.Subject,
		Error:           cause.Error(),
		FailedAt:        h.now().UTC(),
		Retries:         retries,
		MaxRetries:      h.config.DLQMaxRetries,
	}

	data, err := dlqMsg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	msg := nats.NewMsg(SubjectDLQ)
	msg.Data = data
	msg.Header.Set(HeaderOriginalSubject, originalMsg.Subject)
	msg.Header.Set(HeaderFailedAt, dlqMsg.FailedAt.Format(time.RFC3339))
	msg.Header.Set(HeaderRetries, strconv.Itoa(retries))

	if err := h.client.publishMsg(ctx, msg); err != nil {
		return fmt.Errorf("DLQ publish failed: %w", err)
	}
	return nil
}

// ProcessDLQ republishes parked messages once their retry interval elapses
func (h *DLQHandler) ProcessDLQ(ctx context.Context) error {
	consumerName := fmt.Sprintf("%s-dlq", h.config.ConsumerName)
	if _, err := h.client.CreateConsumer(h.config.DLQStreamName, consumerName, SubjectDLQ); err != nil {
		return fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	sub, err := h.client.js.PullSubscribe(
		SubjectDLQ,
		consumerName,
		nats.ManualAck(),
		nats.Bind(h.config.DLQStreamName, consumerName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to DLQ: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			return fmt.Errorf("failed to fetch DLQ messages: %w", err)
		}

		for _, msg := range msgs {
			if err := h.processDLQMessage(ctx, msg); err != nil {
				telemetry.WithError(err).Debug("DLQ message not retried")
				msg.Nak()
			} else {
				msg.Ack()
			}
		}
	}
}

// processDLQMessage handles a single DLQ message
func (h *DLQHandler) processDLQMessage(ctx context.Context, msg *nats.Msg) error {
	dlqMsg, err := UnmarshalDLQMessage(msg.Data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal DLQ message: %w", err)
	}

	retry, err := h.shouldRetry(dlqMsg)
	if err != nil {
		return err
	}
	if !retry {
		telemetry.WithFields(logrus.Fields{
			"subject":     dlqMsg.OriginalSubject,
			"max_retries": dlqMsg.MaxRetries,
			"error":       dlqMsg.Error,
		}).Error("Message exceeded max retries")
		return nil
	}

	return h.retryOriginalMessage(ctx, dlqMsg)
}

// shouldRetry reports whether a parked message is due for another attempt.
// false with a nil error means the message is abandoned.
func (h *DLQHandler) shouldRetry(dlqMsg *DLQMessage) (bool, error) {
	if dlqMsg.Retries >= dlqMsg.MaxRetries {
		return false, nil
	}

	nextRetryTime := dlqMsg.FailedAt.Add(h.config.DLQRetryInterval * time.Duration(dlqMsg.Retries+1))
	if h.now().Before(nextRetryTime) {
		return false, fmt.Errorf("not ready for retry, next retry at %v", nextRetryTime)
	}

	if dlqMsg.OriginalSubject != SubjectSet {
		return false, fmt.Errorf("unknown original subject: %s", dlqMsg.OriginalSubject)
	}
	return true, nil
}

// retryOriginalMessage republishes the original event with a bumped retry count
func (h *DLQHandler) retryOriginalMessage(ctx context.Context, dlqMsg *DLQMessage) error {
	msg := nats.NewMsg(dlqMsg.OriginalSubject)
	msg.Data = dlqMsg.OriginalMessage
	msg.Header.Set(HeaderRetries, strconv.Itoa(dlqMsg.Retries+1))
	msg.Header.Set(HeaderDLQRetry, "true")

	if err := h.client.publishMsg(ctx, msg); err != nil {
		return fmt.Errorf("retry publish failed: %w", err)
	}

	telemetry.WithFields(logrus.Fields{"attempt": dlqMsg.Retries + 1}).Info("Retried set event from DLQ")
	return nil
}

// GetDLQStats returns statistics about the DLQ
func (h *DLQHandler) GetDLQStats() (*DLQStats, error) {
	streamInfo, err := h.client.StreamInfo(h.config.DLQStreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ stream info: %w", err)
	}

	return &DLQStats{
		TotalMessages: streamInfo.State.Msgs,
		StreamBytes:   streamInfo.State.Bytes,
		OldestMessage: streamInfo.State.FirstTime,
		NewestMessage: streamInfo.State.LastTime,
	}, nil
}

// DLQStats represents statistics about the DLQ
type DLQStats struct {
	TotalMessages uint64    `json:"total_messages"`
	StreamBytes   uint64    `json:"stream_bytes"`
	OldestMessage time.Time `json:"oldest_message"`
	NewestMessage time.Time `json:"newest_message"`
}

// RetryCount reads the retry header of a message, zero when absent
func RetryCount(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	retries, err := strconv.Atoi(msg.Header.Get(HeaderRetries))
	if err != nil {
		return 0
	}
	return retries
}
