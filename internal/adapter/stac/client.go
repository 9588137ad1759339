package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
)

const searchTimeLayout = "2006-01-02T15:04:05Z"

var (
	previewAssetKeys = []string{"thumbnail", "overview", "preview"}
	dataAssetKeys    = []string{"visual", "true_color", "B04"}
)

// Client searches a STAC API for scenes overlapping an alert.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	collection   string
	cloudCover   int
	defaultLimit int
	lookback     time.Duration
	assetKeys    []string
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a scene catalog client from the scene search settings.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.STACTimeout},
		baseURL:      strings.TrimRight(cfg.STACAPIURL, "/"),
		collection:   cfg.STACCollection,
		cloudCover:   cfg.STACCloudCover,
		defaultLimit: cfg.STACResultsLimit,
		lookback:     time.Duration(cfg.STACDaysLookback) * 24 * time.Hour,
		assetKeys:    cfg.ZarrAssetKeys,
		metrics:      metrics,
		logger:       logger,
	}
}

// FindScenes returns scenes carrying a raster asset, best first. Search
// failures are logged and yield an empty result so callers fall back to a
// placeholder instead of aborting.
func (c *Client) FindScenes(ctx context.Context, alert domain.Alert, limit int) []domain.SceneCandidate {
	scenes, err := c.search(ctx, alert, limit)
	c.metrics.SceneSearches.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		c.logger.Warn("scene search failed", "alert_id", alert.ID, "error", err)
		return nil
	}
	c.logger.Debug("scene search complete", "alert_id", alert.ID, "scenes", len(scenes))
	return domain.RankScenes(scenes)
}

func (c *Client) search(ctx context.Context, alert domain.Alert, limit int) ([]domain.SceneCandidate, error) {
	body, err := json.Marshal(c.buildSearch(alert, limit))
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("stac API error: status %d: %s", resp.StatusCode, msg)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scenes := make([]domain.SceneCandidate, 0, len(fc.Features))
	for i, rawFeature := range fc.Features {
		var f feature
		if err := json.Unmarshal(rawFeature, &f); err != nil {
			c.logger.Warn("dropping undecodable scene", "alert_id", alert.ID, "index", i, "error", err)
			continue
		}
		if s, ok := c.toScene(f, alert); ok {
			scenes = append(scenes, s)
		}
	}
	return scenes, nil
}

func (c *Client) buildSearch(alert domain.Alert, limit int) searchRequest {
	if limit <= 0 {
		limit = c.defaultLimit
	}

	issued, err := domain.ParseTimestamp(alert.Issued)
	if err != nil {
		c.logger.Warn("alert issue time unparseable, anchoring search on now",
			"alert_id", alert.ID, "issued", alert.Issued)
		issued = domain.Now().UTC()
	}
	start := issued.Add(-c.lookback).Truncate(time.Second)
	end := issued.Add(24 * time.Hour).Truncate(time.Second)

	req := searchRequest{
		Collections: []string{c.collection},
		Limit:       limit,
		Datetime:    start.Format(searchTimeLayout) + "/" + end.Format(searchTimeLayout),
		Query:       map[string]map[string]any{"eo:cloud_cover": {"lt": c.cloudCover}},
		SortBy:      []sortField{{Field: "properties.datetime", Direction: "desc"}},
	}
	if alert.HasGeometry() {
		req.Intersects = alert.AreaOfInterest
	}
	return req
}

func (c *Client) toScene(f feature, alert domain.Alert) (domain.SceneCandidate, bool) {
	raster := selectRasterAsset(f.Assets, c.assetKeys)
	if raster == "" {
		return domain.SceneCandidate{}, false
	}

	id := f.ID
	if id == "" {
		id = "unknown"
	}
	collection := f.Collection
	if collection == "" {
		collection = c.collection
	}
	datetime := propertyString(f.Properties["datetime"])
	if datetime == "" {
		datetime = alert.Issued
	}
	cloud := propertyFloat(f.Properties["eo:cloud_cover"])
	if cloud == nil {
		cloud = propertyFloat(f.Properties["cloud_cover"])
	}

	itemHref := selfHref(f.Links)
	if itemHref == "" {
		itemHref = fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, collection, id)
	}

	return domain.SceneCandidate{
		ID:              id,
		Collection:      collection,
		Datetime:        datetime,
		CloudCover:      cloud,
		PreviewHref:     firstAssetHref(f.Assets, previewAssetKeys),
		DataHref:        firstAssetHref(f.Assets, dataAssetKeys),
		CatalogItemHref: itemHref,
		RasterHref:      raster,
	}, true
}

// selectRasterAsset tries the priority keys first, accepting only hrefs that
// end in .zarr, then any asset whose href mentions .zarr.
func selectRasterAsset(assets map[string]asset, priorities []string) string {
	for _, key := range priorities {
		if a, ok := assets[key]; ok && strings.HasSuffix(strings.TrimRight(a.Href, "/"), domain.ZarrSuffix) {
			return a.Href
		}
	}
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if href := assets[k].Href; strings.Contains(href, domain.ZarrSuffix) {
			return href
		}
	}
	return ""
}

func firstAssetHref(assets map[string]asset, keys []string) string {
	for _, k := range keys {
		if a, ok := assets[k]; ok && a.Href != "" {
			return a.Href
		}
	}
	return ""
}

// propertyString renders non-string values as text so they rank as
// malformed datetimes instead of being lost.
func propertyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func propertyFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func selfHref(links []link) string {
	for _, l := range links {
		if l.Rel == "self" && l.Href != "" {
			return l.Href
		}
	}
	return ""
}

// STAC API request and response types.

type searchRequest struct {
	Collections []string                  `json:"collections"`
	Intersects  map[string]any            `json:"intersects,omitempty"`
	Limit       int                       `json:"limit"`
	Datetime    string                    `json:"datetime"`
	Query       map[string]map[string]any `json:"query"`
	SortBy      []sortField               `json:"sortby"`
}

type sortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Features are decoded one at a time so a single bad record does not
// discard the rest of the page.
type featureCollection struct {
	Features []json.RawMessage `json:"features"`
}

type feature struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection"`
	Properties map[string]any   `json:"properties"`
	Assets     map[string]asset `json:"assets"`
	Links      []link           `json:"links"`
}

type asset struct {
	Href string `json:"href"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}
