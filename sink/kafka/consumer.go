package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/MrEthical07/authcore"
)

// Reader is the subset of kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (skafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Handler processes one decoded event. A non-nil error retries the message.
type Handler func(ctx context.Context, event authcore.ActivityEvent) error

// Consumer reads activity events for a consumer group.
type Consumer struct {
	reader     Reader
	logger     *slog.Logger
	retryDelay time.Duration
	maxDelay   time.Duration
}

// NewConsumer joins groupID on topic. Members of one group split the partitions.
func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger) *Consumer {
	r := skafka.NewReader(skafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return NewConsumerWithReader(r, logger)
}

// NewConsumerWithReader wraps an existing reader. A nil logger uses slog.Default.
func NewConsumerWithReader(r Reader, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: r, logger: logger, retryDelay: time.Second, maxDelay: 30 * time.Second}
}

// Run fetches, handles and commits messages until ctx is cancelled. A
// message is committed only after handle succeeds; undecodable messages are
// logged and committed so they cannot stall the partition.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.logger.Info("kafka: consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("kafka: fetch failed", "error", err)
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		var event authcore.ActivityEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			c.logger.Error("kafka: dropping malformed activity message", "offset", m.Offset, "partition", m.Partition, "error", err)
		} else if !c.handleWithRetry(ctx, handle, event, m.Offset) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Warn("kafka: commit failed", "offset", m.Offset, "error", err)
		}
	}
}

// handleWithRetry reports false if ctx ended before handle succeeded.
func (c *Consumer) handleWithRetry(ctx context.Context, handle Handler, event authcore.ActivityEvent, offset int64) bool {
	delay := c.retryDelay
	for {
		hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := handle(hctx, event)
		cancel()
		if err == nil {
			return true
		}
		c.logger.Warn("kafka: handler failed, retrying", "offset", offset, "id", event.ID, "delay", delay, "error", err)
		if !sleep(ctx, delay) {
			return false
		}
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
