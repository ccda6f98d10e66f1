package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafkago.Reader
	log    *zap.SugaredLogger
}

func NewConsumer(brokers []string, topic, groupID string, log *zap.SugaredLogger) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, log: log}
}

// Start reads until ctx is cancelled. Handler errors are logged and the
// message is committed anyway.
func (c *Consumer) Start(ctx context.Context, handle Handler) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.log.Warnw("kafka read failed", "topic", c.reader.Config().Topic, "err", err)
			time.Sleep(time.Second)
			continue
		}
		if err := handle(ctx, m.Key, m.Value); err != nil {
			c.log.Errorw("kafka handler failed", "topic", m.Topic, "offset", m.Offset, "err", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
