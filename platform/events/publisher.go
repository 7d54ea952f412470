package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LogSavedEvent is emitted after a new reading-log entry commits.
type LogSavedEvent struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	Title     string    `json:"title"`
	URL       *string   `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher emits saved-log events to Kafka, keyed by token so one reader's
// entries stay ordered within a partition.
type Publisher struct {
	writer    *kafka.Writer
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewPublisher builds an asynchronous Kafka writer for the given brokers and
// topic. Publish only enqueues; delivery failures are logged from the writer's
// completion callback.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   p.onCompletion,
	}
	return p
}

// Publish enqueues one event. It does not wait for the broker.
func (p *Publisher) Publish(ctx context.Context, event LogSavedEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish log saved event: %w", err)
	}
	return nil
}

func (p *Publisher) onCompletion(messages []kafka.Message, err error) {
	if err == nil {
		p.logger.Debug("published log saved events",
			zap.Int("count", len(messages)),
			zap.String("topic", p.writer.Topic))
		return
	}
	p.logger.Error("failed to publish log saved events",
		zap.Int("count", len(messages)),
		zap.String("topic", p.writer.Topic),
		zap.Error(err))
}

// Close flushes pending writes. Repeated calls return the first result.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.writer.Close()
	})
	return p.closeErr
}

func buildMessage(event LogSavedEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal log saved event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Token),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("reading_log.saved")},
		},
	}, nil
}

// NopPublisher discards events. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LogSavedEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
