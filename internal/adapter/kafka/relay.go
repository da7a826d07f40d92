// Package kafka relays bus events to a Kafka topic for the external
// notification system.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	skafka "github.com/segmentio/kafka-go"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Writer is the subset of segmentio kafka.Writer the relay needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// NewWriter creates a writer for the given brokers and topic. Messages with
// the same key (the tenant ID) land on the same partition.
func NewWriter(brokers []string, topic string) *skafka.Writer {
	return &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireOne,
	}
}

// Relay publishes flattened events to Kafka.
type Relay struct {
	writer Writer
}

func NewRelay(w Writer) *Relay {
	return &Relay{writer: w}
}

// Handle publishes ev. It satisfies domain.Handler.
func (r *Relay) Handle(ctx context.Context, ev domain.Event) error {
	return r.Notify(ctx, domain.Summarize(ev))
}

// Notify publishes an already flattened event. It lets the relay serve as the
// sink of the River notification worker.
func (r *Relay) Notify(ctx context.Context, s domain.EventSummary) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.Event, err)
	}

	msg := skafka.Message{
		Key:     []byte(s.TenantID),
		Value:   value,
		Headers: []skafka.Header{{Key: "event", Value: []byte(s.Event)}},
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s to kafka: %w", s.Event, err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *Relay) Close() error {
	return r.writer.Close()
}
