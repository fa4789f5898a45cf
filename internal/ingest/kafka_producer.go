package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/bikerides/internal/models"
	"github.com/example/bikerides/internal/observability"
)

const (
	DefaultTopic = "ride-activity"
	// DefaultBatchTimeout bounds how long a single event waits for a batch
	// to fill. kafka-go's own default is one second.
	DefaultBatchTimeout = 10 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes ride activity events keyed by ride id, so all
// events of one ride land on the same partition in order.
type KafkaProducer struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
}

func NewKafkaProducer(brokers []string, topic string, logger *slog.Logger) *KafkaProducer {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: DefaultBatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaProducer(w, logger)
}

func newKafkaProducer(w messageWriter, logger *slog.Logger) *KafkaProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaProducer{writer: w, timeout: 2 * time.Second, logger: logger}
}

// Publish implements directory.Sink. Broker failures are logged and
// counted, never returned.
func (k *KafkaProducer) Publish(ctx context.Context, ev models.Event) {
	if err := k.PublishEvent(ctx, ev); err != nil {
		observability.EventsPublished.WithLabelValues("kafka", "error").Inc()
		k.logger.Warn("publish ride event failed", "kind", ev.Kind, "ride_id", ev.RideID, "error", err)
		return
	}
	observability.EventsPublished.WithLabelValues("kafka", "ok").Inc()
}

func (k *KafkaProducer) PublishEvent(ctx context.Context, ev models.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RideID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
