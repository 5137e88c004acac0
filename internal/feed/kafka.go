package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig selects the brokers and topic ledger events are exported to.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaSink implements domain.EventPublisher by exporting committed ledger
// events to a Kafka topic for downstream consumers. Messages are keyed by
// game id, so each game's events stay ordered within one partition.
type KafkaSink struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaSink creates an asynchronous sink. Delivery failures are logged
// rather than returned, so a slow broker never holds up a bet.
func NewKafkaSink(cfg KafkaConfig, logger *slog.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("feed: kafka sink needs brokers and a topic")
	}
	logger = logger.With(slog.String("component", "kafka_sink"))
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("feed: kafka delivery failed",
					slog.Int("count", len(msgs)),
					slog.String("error", err.Error()),
				)
			}
		},
	}
	return &KafkaSink{writer: w, logger: logger}, nil
}

// Publish hands the events to the writer in commit order.
func (k *KafkaSink) Publish(ctx context.Context, events ...domain.LedgerEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := Encode(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.GameID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(ev.Kind)},
			},
			Time: ev.CreatedAt,
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("feed: kafka write: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []domain.EventPublisher

// Publish implements domain.EventPublisher.
func (f Fanout) Publish(ctx context.Context, events ...domain.LedgerEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ domain.EventPublisher = (*KafkaSink)(nil)
	_ domain.EventPublisher = Fanout(nil)
)
