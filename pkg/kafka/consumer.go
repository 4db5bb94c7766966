// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Rank jobs arrive through the consumer and completion
// events leave through the producer, both as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/resilience"
)

// MessageHandler is a callback invoked for each Kafka message. A returned
// error is retried in place; wrap it with resilience.Permanent to skip the
// retries. A message that still fails is dead-lettered and committed.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// DeadLetterWriter receives messages the handler gave up on. *Producer
// satisfies it.
type DeadLetterWriter interface {
	Publish(ctx context.Context, event Event) error
}

// DeadLetter is the value published for a failed message.
type DeadLetter struct {
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failedAt"`
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler, one at a time. Offsets are committed in order, so a message
// is only committed once it was handled, dead-lettered or given up on.
type Consumer struct {
	reader     messageReader
	topic      string
	logger     *slog.Logger
	handler    MessageHandler
	retry      resilience.RetryConfig
	deadLetter DeadLetterWriter
}

type ConsumerOption func(*Consumer)

// WithRetry sets how a failing message is retried before it is given up on.
func WithRetry(cfg resilience.RetryConfig) ConsumerOption {
	return func(c *Consumer) { c.retry = cfg }
}

// WithDeadLetter publishes messages that exhaust their retries to w.
func WithDeadLetter(w DeadLetterWriter) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = w }
}

// NewConsumer creates a group Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler, opts...)
}

func newConsumer(r messageReader, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:  r,
		topic:   topic,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. A message interrupted by cancellation is left uncommitted,
// and nothing after it is fetched, so the group redelivers it.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.process(ctx, msg); err != nil {
			c.logger.Info("consumer stopping, message left uncommitted",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"reason", err,
			)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process handles msg with retries. It returns an error only when ctx ended
// first; every other outcome lets the caller commit.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	err := resilience.Retry(ctx, "handle-message", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
	if c.deadLetter == nil {
		log.Error("giving up on message, no dead-letter topic configured", "error", err)
		return nil
	}
	dl := DeadLetter{
		Topic:     c.topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Value:     msg.Value,
		Error:     err.Error(),
		FailedAt:  time.Now().UTC(),
	}
	dlErr := resilience.Retry(ctx, "dead-letter", c.retry, func() error {
		return c.deadLetter.Publish(ctx, Event{Key: dl.Key, Value: dl})
	})
	if dlErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("giving up on message, dead-lettering failed", "error", err, "dead_letter_error", dlErr)
		return nil
	}
	log.Warn("message dead-lettered", "error", err)
	return nil
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
