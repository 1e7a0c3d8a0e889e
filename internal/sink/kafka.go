package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vxkit/vxh/internal/report"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each report as JSON, keyed by manager host.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink creates a sink producing to topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
		topic: topic,
	}
}

// Name implements Sink.
func (k *KafkaSink) Name() string { return "kafka" }

// Write implements Sink.
func (k *KafkaSink) Write(ctx context.Context, r *report.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.Host),
		Value: payload,
		Time:  r.GeneratedAt,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "verdict", Value: []byte(r.Verdict)},
		},
	})
}

// Close flushes and closes the producer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
