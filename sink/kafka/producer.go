// Package kafka streams activity events through Kafka. Producer is an
// authcore.ActivitySink; Consumer drives the worker that persists them.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/MrEthical07/authcore"
)

// Writer is the subset of kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Producer publishes activity events as JSON messages keyed by account.
type Producer struct {
	writer  Writer
	logger  *slog.Logger
	timeout time.Duration
}

// NewProducer returns a Producer writing to topic on brokers.
func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: skafka.RequireOne,
	}
	return NewProducerWithWriter(w, logger)
}

// NewProducerWithWriter wraps an existing writer. A nil logger uses slog.Default.
func NewProducerWithWriter(w Writer, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{writer: w, logger: logger, timeout: 5 * time.Second}
}

// Emit writes event. Failures are logged, never returned.
func (p *Producer) Emit(ctx context.Context, event authcore.ActivityEvent) {
	if err := p.Publish(ctx, event); err != nil {
		p.logger.Warn("kafka: activity publish failed", "action", event.Action, "id", event.ID, "error", err)
	}
}

// Publish writes event and reports the outcome.
func (p *Producer) Publish(ctx context.Context, event authcore.ActivityEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, skafka.Message{
		Key:   []byte(messageKey(event)),
		Value: value,
		Time:  event.Timestamp,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageKey keeps one account's events on one partition.
func messageKey(event authcore.ActivityEvent) string {
	switch {
	case event.AccountID != "":
		return event.AccountID
	case event.TargetAccountID != "":
		return event.TargetAccountID
	default:
		return event.ID
	}
}
