package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher writes alert events to the alert topic.
// It implements listener.Publisher and runner.EventPublisher.
type Publisher struct {
	writer     *kafkago.Writer
	routingKey string
	logger     *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured alert topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.AlertTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, routingKey: cfg.AlertRoutingKey, logger: logger}
}

// Publish sends one envelope for the alert and returns it.
func (p *Publisher) Publish(ctx context.Context, alert domain.Alert) (domain.AlertEvent, error) {
	evt, err := domain.NewAlertEvent(alert)
	if err != nil {
		return domain.AlertEvent{}, err
	}
	msg, err := serializeToMessage(evt, p.routingKey)
	if err != nil {
		return domain.AlertEvent{}, err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return domain.AlertEvent{}, fmt.Errorf("publish alert %s: %w", alert.ID, err)
	}
	p.logger.Debug("alert event published", "alert_id", alert.ID, "topic", p.writer.Topic, "type", evt.Type)
	return evt, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an AlertEvent into a Kafka message keyed by alert id.
func serializeToMessage(evt domain.AlertEvent, routingKey string) (kafkago.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(evt.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: domain.HeaderRoutingKey, Value: []byte(routingKey)},
			{Key: domain.HeaderEventType, Value: []byte(evt.Type)},
		},
	}, nil
}
