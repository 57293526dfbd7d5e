package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes engagement events to a Kafka topic keyed by post ID,
// so every event for one post lands on the same partition in order.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

// RequiredAcks maps the KAFKA_REQUIRED_ACKS setting ("none", "one", "all")
// onto the producer setting. Unknown values fall back to one.
func RequiredAcks(s string) kafka.RequiredAcks {
	switch s {
	case "none", "0":
		return kafka.RequireNone
	case "all", "-1":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}

// NewKafkaPublisher creates a synchronous producer for topic.
func NewKafkaPublisher(brokers []string, topic string, acks kafka.RequiredAcks) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: acks,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{w: w, topic: topic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.PostID), 10)),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and releases the connection.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
