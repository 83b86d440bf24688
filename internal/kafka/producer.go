package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer is a thin wrapper over a topic-less kafka writer; the topic is
// chosen per message.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// PublishJSON marshals payload and publishes it keyed by key.
func (p *Producer) PublishJSON(topic, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Publish(topic, key, value)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// Nop drops every message. Used when Kafka is disabled.
type Nop struct{}

func (Nop) Publish(topic, key string, value []byte) error            { return nil }
func (Nop) PublishJSON(topic, key string, payload interface{}) error { return nil }

// DomainEvent is the envelope published on every tickethub topic.
type DomainEvent struct {
	Type      string      `json:"type"`
	EventID   string      `json:"event_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewDomainEvent(eventType, eventID, userID string, payload interface{}) DomainEvent {
	return DomainEvent{
		Type:      eventType,
		EventID:   eventID,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
