package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"fleet_tracker/internal/models"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes alerts keyed by device id, so one device's alerts
// stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, deviceID string, list []models.Alert) error {
	msgs := make([]kafka.Message, 0, len(list))
	for _, a := range list {
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(deviceID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "alert_type", Value: []byte(a.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
