package capabilities

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes every engine event as JSON to one topic, keyed by workspace id
// so a workspace's events stay ordered within a partition.
type KafkaSink struct {
	Topic  string
	writer messageWriter
}

// NewKafkaSink returns a sink producing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		Topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (k *KafkaSink) Name() string { return "kafka" }

// Notify produces message as a plain value with no key.
func (k *KafkaSink) Notify(ctx context.Context, message string) error {
	return k.writer.WriteMessages(ctx, kafka.Message{Value: []byte(message), Time: time.Now()})
}

func (k *KafkaSink) Publish(ctx context.Context, ev workflow.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.WorkspaceID),
		Value:   body,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(ev.Type)}},
		Time:    ev.At,
	})
}

func (k *KafkaSink) Close() error { return k.writer.Close() }
