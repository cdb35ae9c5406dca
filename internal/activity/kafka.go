package activity

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink writes events to a topic, keyed by room id so one room's events
// stay on one partition.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	b, err := ev.Marshal()
	if err != nil {
		return err
	}
	msg := kafkago.Message{
		Key:   []byte(ev.RoomID),
		Value: b,
		Time:  ev.At,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
