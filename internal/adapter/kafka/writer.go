package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-apps/internal/config"
	"github.com/couchcryptid/weather-apps/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces weather observations to a Kafka topic.
// It implements watch.Sink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured observation topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string { return "kafka" }

// LoadBatch serializes and publishes observations in a single WriteMessages call.
func (p *Publisher) LoadBatch(ctx context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(observations))
	for i := range observations {
		msg, err := serializeToMessage(observations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish observations: %w", err)
	}
	p.logger.Debug("published observations", "topic", p.writer.Topic, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Observation into a Kafka message keyed by
// the normalized city so that readings for one city stay on one partition.
func serializeToMessage(o domain.Observation) (kafkago.Message, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.NormalizeCity(o.Query)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "observation_id", Value: []byte(o.ID)},
			{Key: "units", Value: []byte(o.Units)},
			{Key: "observed_at", Value: []byte(o.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}
