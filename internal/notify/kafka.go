package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// KafkaMessage is the JSON value published for every alert.
type KafkaMessage struct {
	ID      string    `json:"id"`
	Title   string    `json:"title,omitempty"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// KafkaSender publishes alerts to a Kafka topic and waits for the broker ack.
type KafkaSender struct {
	topic    string
	producer sarama.SyncProducer
	now      func() time.Time
}

// NewKafkaSender dials brokers (comma separated) and returns a sender that
// writes to topic.
func NewKafkaSender(brokersCSV, topic string) (*KafkaSender, error) {
	if topic == "" {
		return nil, errors.New("kafka: topic empty")
	}
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers")
	}

	cfg := sarama.NewConfig()
	cfg.ClientID = "solwatch"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	// SyncProducer requires both.
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: new producer: %w", err)
	}
	return NewKafkaSenderWithProducer(sp, topic), nil
}

// NewKafkaSenderWithProducer wraps an existing producer.
func NewKafkaSenderWithProducer(producer sarama.SyncProducer, topic string) *KafkaSender {
	return &KafkaSender{topic: topic, producer: producer, now: time.Now}
}

// Send publishes one alert keyed by a fresh UUID.
func (k *KafkaSender) Send(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}

	id := uuid.NewString()
	payload, err := json.Marshal(KafkaMessage{
		ID:      id,
		Title:   title,
		Message: message,
		SentAt:  k.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka: marshal: %w", err)
	}

	// SyncProducer has no context; only the pre-send check applies.
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(id),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("kafka: send to %s: %w", k.topic, err)
	}
	return nil
}

// Name returns the sender identifier.
func (k *KafkaSender) Name() string {
	return "kafka"
}

// Close flushes and closes the producer.
func (k *KafkaSender) Close() error {
	if k.producer == nil {
		return nil
	}
	return k.producer.Close()
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
