package kafka

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafkago.Writer
	topic  string
}

// NewProducer builds a writer for topic. Async writers return as soon as
// the message is buffered.
func NewProducer(brokers []string, topic string, async bool) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Async:        async,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) Topic() string { return p.topic }

// Publish writes value keyed by key, so one key always lands on one partition.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
