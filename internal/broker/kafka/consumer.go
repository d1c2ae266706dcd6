package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// FromOldest makes a group without committed offsets replay the topic
	// instead of starting at its tail.
	FromOldest bool
}

// Message is one fetched record together with its position.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
	Time      time.Time
}

type Handler func(ctx context.Context, msg Message) error

type Consumer struct {
	r       messageReader
	handled atomic.Int64
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	start := kafka.LastOffset
	if cfg.FromOldest {
		start = kafka.FirstOffset
	}
	rc := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		StartOffset:       start,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if cfg.GroupID != "" {
		rc.GroupTopics = []string{cfg.Topic}
	} else {
		rc.Topic = cfg.Topic
	}
	return &Consumer{r: kafka.NewReader(rc)}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Handled reports how many messages were handled and committed.
func (c *Consumer) Handled() int64 {
	return c.handled.Load()
}

// Consume passes every message to handler and commits it once handler returns
// nil. A handler error stops consumption and leaves that message uncommitted.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		km, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "fetch message")
		}

		msg := Message{
			Key:       km.Key,
			Value:     km.Value,
			Partition: km.Partition,
			Offset:    km.Offset,
			Time:      km.Time,
		}
		if err := handler(ctx, msg); err != nil {
			return errors.Wrapf(err, "handle partition %d offset %d", km.Partition, km.Offset)
		}
		if err := c.r.CommitMessages(ctx, km); err != nil {
			return errors.Wrap(err, "commit message")
		}
		c.handled.Add(1)
	}
}
