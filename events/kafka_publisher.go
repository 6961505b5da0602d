package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fulfillment-service/models"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaOrderPublisher struct {
	writer MessageWriter
	log    *zap.Logger
}

func NewKafkaOrderPublisher(brokers []string, topic string, log *zap.Logger) *KafkaOrderPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	log.Info("kafka order publisher initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &KafkaOrderPublisher{writer: w, log: log}
}

// NewKafkaOrderPublisherWithWriter wraps an existing writer.
func NewKafkaOrderPublisherWithWriter(w MessageWriter, log *zap.Logger) *KafkaOrderPublisher {
	return &KafkaOrderPublisher{writer: w, log: log}
}

// PublishOrderCreated keys messages by order id so one order's events stay on
// one partition.
func (p *KafkaOrderPublisher) PublishOrderCreated(ctx context.Context, evt models.OrderCreatedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Event)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	p.log.Debug("order event published to kafka", zap.String("order_number", evt.OrderNumber))
	return nil
}

func (p *KafkaOrderPublisher) Close() error {
	return p.writer.Close()
}
