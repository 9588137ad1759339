package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
)

// ObjectWriter stores catalog documents.
type ObjectWriter interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Publisher writes STAC items to the catalog bucket.
type Publisher struct {
	store         ObjectWriter
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewPublisher creates a Publisher for bucket. Links use publicBaseURL when
// it is set, storage URIs otherwise.
func NewPublisher(store ObjectWriter, bucket, publicBaseURL string, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		store:         store,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		logger:        logger,
		metrics:       metrics,
	}
}

// Publish builds the item for output and writes it to items/{id}.json.
func (p *Publisher) Publish(ctx context.Context, alert domain.Alert, output domain.ConversionOutput) (Item, error) {
	ctx, span := observability.StartStep(ctx, "catalog", alert.ID)
	item, err := p.publish(ctx, alert, output)
	observability.EndStep(span, err)
	p.metrics.CatalogItems.WithLabelValues(observability.Outcome(err)).Inc()
	return item, err
}

func (p *Publisher) publish(ctx context.Context, alert domain.Alert, output domain.ConversionOutput) (Item, error) {
	item, err := BuildItem(alert, output, p.bucket, p.publicBaseURL)
	if err != nil {
		return Item{}, err
	}
	body, err := json.Marshal(item)
	if err != nil {
		return Item{}, fmt.Errorf("encode item %s: %w", item.ID, err)
	}
	key := ItemKey(item.ID)
	if err := p.store.Put(ctx, p.bucket, key, body, "application/json"); err != nil {
		return Item{}, fmt.Errorf("write item %s: %w", item.ID, err)
	}
	p.logger.Info("catalog item written", "alert_id", alert.ID, "item_id", item.ID, "key", key)
	return item, nil
}
