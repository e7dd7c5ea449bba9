// Package kafka publishes metrics events to a Kafka topic using
// github.com/segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/difyvoice/pkg/eventstream"
	"github.com/papercomputeco/difyvoice/pkg/logger"
)

const (
	// DefaultTopic is used when Config.Topic is empty.
	DefaultTopic = "difyvoice.metrics"

	headerEventType     = "event_type"
	headerSchemaVersion = "schema_version"

	defaultBatchTimeout = 10 * time.Millisecond
)

// ErrNoBrokers is returned when no broker address is configured.
var ErrNoBrokers = errors.New("kafka publisher requires at least one broker")

// Config configures a Kafka Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// Logger is the provided slog logger. Defaults to a no-op logger.
	Logger *slog.Logger
}

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes each event as one JSON message keyed by request ID, so all
// records for a request land on the same partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher for c.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           defaultBatchTimeout,
	}

	return newPublisher(w, c.Topic, c.Logger), nil
}

func newPublisher(w messageWriter, topic string, l *slog.Logger) *Publisher {
	if l == nil {
		l = logger.Nop()
	}
	return &Publisher{
		writer: w,
		topic:  topic,
		logger: l,
	}
}

// PublishMetrics encodes event and writes it synchronously.
func (p *Publisher) PublishMetrics(ctx context.Context, event *eventstream.MetricsCollectedEvent) error {
	if event == nil {
		return eventstream.ErrNilMetricsEvent
	}

	msg, err := encodeMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing metrics event to kafka topic %s: %w", p.topic, err)
	}

	p.logger.Debug("published metrics event",
		"topic", p.topic,
		"event_id", event.EventID,
		"request_id", event.Metrics.RequestID,
	)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encodeMessage(event *eventstream.MetricsCollectedEvent) (kafkago.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encoding metrics event: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(event.Metrics.RequestID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(event.EventType)},
			{Key: headerSchemaVersion, Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}, nil
}
