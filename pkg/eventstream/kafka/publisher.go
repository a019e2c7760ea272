package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/eventstream"
)

// Config holds Kafka publisher construction options.
type Config struct {
	Brokers []string
	Topic   string
	Logger  *zap.Logger
}

// Publisher publishes entity change events to a Kafka topic. Messages are
// keyed by entity id so per-entity ordering survives partitioning.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{writer: w, logger: cfg.Logger}, nil
}

// PublishEntityChange encodes and writes one event.
func (p *Publisher) PublishEntityChange(ctx context.Context, event *eventstream.EntityChangedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding entity event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EntityID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing entity event: %w", err)
	}

	p.logger.Debug("published entity change",
		zap.String("entity_id", event.EntityID),
		zap.Strings("circle_ids", event.CircleIDs),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
