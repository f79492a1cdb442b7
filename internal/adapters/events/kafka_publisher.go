package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// DefaultTopics routes every event this service emits. Events missing from the map are
// published to a topic named after the event type.
func DefaultTopics() map[string]string {
	return map[string]string{
		domain.EventCollectionCompleted:   "payments.collections",
		domain.EventCollectionFailed:      "payments.collections",
		domain.EventRegistrationFeePaid:   "users.registration",
		domain.EventEscrowHeld:            "escrow.lifecycle",
		domain.EventEscrowReleased:        "escrow.lifecycle",
		domain.EventEscrowRefunded:        "escrow.lifecycle",
		domain.EventDisbursementCompleted: "payments.disbursements",
		domain.EventDisbursementFailed:    "payments.disbursements",
	}
}

type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
}

func NewKafkaPublisher(brokers []string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
		},
		topicByEvent: topicByEvent,
	}, nil
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		return mapped
	}
	return eventType
}

// Publish keys messages by partition key so all events for one escrow or transaction
// land on the same partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topicFor(eventType),
		Key:     []byte(partitionKey),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
		Time:    time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
