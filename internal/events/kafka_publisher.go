package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// batchTimeout caps how long a message waits for a batch to fill.
const batchTimeout = 50 * time.Millisecond

// KafkaPublisher writes events to a single topic, keyed for per-target ordering.
// Publish returns once the message is queued; delivery errors are logged when
// its batch completes.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func logger() *slog.Logger {
	return slog.Default().With("module", "events")
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           batchTimeout,
			WriteTimeout:           5 * time.Second,
			Async:                  true,
			Completion:             logCompletion(topic),
		},
	}, nil
}

func logCompletion(topic string) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, 0, len(messages))
		for _, m := range messages {
			keys = append(keys, string(m.Key))
		}
		logger().Warn("kafka delivery failed",
			"topic", topic, "messages", len(messages), "keys", keys, "error", err.Error())
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

// Close flushes pending batches.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
