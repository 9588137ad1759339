package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Consumer reads alert events as one member of the subscriber consumer group.
// It implements pipeline.Extractor.
type Consumer struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewConsumer creates a group reader on the alert topic. Offsets are only
// committed through RawEvent.Commit.
func NewConsumer(cfg *config.Config, logger *slog.Logger) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.SubscriberGroupID,
		Topic:       cfg.AlertTopic,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{reader: r, logger: logger}
}

// Extract blocks until the next message is available or ctx is done.
func (c *Consumer) Extract(ctx context.Context) (domain.RawEvent, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("fetch message: %w", err)
	}
	raw := mapMessageToRawEvent(msg)
	raw.Commit = func(ctx context.Context) error {
		return c.reader.CommitMessages(ctx, msg)
	}
	return raw, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
