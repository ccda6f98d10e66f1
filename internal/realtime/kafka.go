package realtime

import (
	"context"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/kafka"
)

// KafkaSink appends every event to a topic keyed by conversation.
type KafkaSink struct {
	prod *kafka.Producer
}

func NewKafkaSink(prod *kafka.Producer) *KafkaSink {
	return &KafkaSink{prod: prod}
}

func (s *KafkaSink) Forward(ctx context.Context, ev domain.Event, frame []byte) error {
	return s.prod.Publish(ctx, domain.ConversationKey(ev.From, ev.To), frame)
}
