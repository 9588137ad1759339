package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/alertzarr/internal/domain"
)

// recordKeys are the envelope keys feeds use to wrap their record lists.
var recordKeys = []string{"alerts", "features", "items", "data"}

// Client fetches and normalizes alerts from one HTTP JSON feed.
type Client struct {
	name       string
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client for the named feed URL.
func NewClient(name, url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Name identifies the feed in logs and metrics.
func (c *Client) Name() string { return c.name }

// FetchAlerts downloads the feed and returns every record that normalizes.
// Transport, status, and decode failures are returned as errors.
func (c *Client) FetchAlerts(ctx context.Context) ([]domain.Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("feed %s: status %d: %s", c.name, resp.StatusCode, body)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", c.name, err)
	}

	records := ExtractRecords(payload)
	alerts := make([]domain.Alert, 0, len(records))
	for i, record := range records {
		alert, err := domain.ParseAlertPayload(record)
		if err != nil {
			c.logger.Warn("skipping feed record", "feed", c.name, "index", i, "error", err)
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// ExtractRecords finds the record list in a feed document: a top-level
// array, the first array under one of the envelope keys, or the document
// itself as a single record.
func ExtractRecords(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range recordKeys {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
		return []any{v}
	default:
		return nil
	}
}
