package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wonny/tradecycle/internal/contracts"
)

// MessageWriter is the part of kafka.Writer the sink uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON keyed by symbol (or event type)
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter builds a kafka-go writer for the event topic
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// NewKafkaSink creates a Kafka sink
func NewKafkaSink(w MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

// Name returns the sink name
func (s *KafkaSink) Name() string { return "kafka" }

// Send implements Sink
func (s *KafkaSink) Send(ctx context.Context, ev contracts.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := ev.Symbol
	if key == "" {
		key = string(ev.Type)
	}

	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", describe(ev), err)
	}
	return nil
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
