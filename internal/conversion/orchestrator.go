// Package conversion decides, per alert, whether to run the raster conversion
// engine against a catalog scene or to write a placeholder artifact.
package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/alertzarr/internal/adapter/geozarr"
	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ErrRealConversionDisabled is returned when real mode is requested but the
// engine is switched off by configuration.
var ErrRealConversionDisabled = errors.New("real conversion requested but REAL_CONVERSION_ENABLED is false")

const (
	placeholderName   = "geozarr-placeholder.json"
	placeholderNotes  = "Placeholder dataset produced by the local AlertZarr pipeline."
	placeholderScenes = 2
)

// SceneFinder searches the scene catalog for an alert.
type SceneFinder interface {
	FindScenes(ctx context.Context, alert domain.Alert, limit int) []domain.SceneCandidate
}

// Engine runs the raster conversion.
type Engine interface {
	Convert(ctx context.Context, req geozarr.Request) error
}

// ObjectStore is the subset of object storage the orchestrator writes and measures.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PrefixSize(ctx context.Context, bucket, prefix string) (int64, error)
}

// Options tune a single conversion attempt.
type Options struct {
	// IncludeSceneSearch embeds the top scenes in simulated placeholders.
	IncludeSceneSearch bool
}

// Orchestrator produces a ConversionOutput for an alert in one of the
// auto, real or simulate modes.
type Orchestrator struct {
	cfg     *config.Config
	scenes  SceneFinder
	engine  Engine
	store   ObjectStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Orchestrator.
func New(cfg *config.Config, scenes SceneFinder, engine Engine, store ObjectStore, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		scenes:  scenes,
		engine:  engine,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Convert runs the decision function for mode.
func (o *Orchestrator) Convert(ctx context.Context, alert domain.Alert, mode domain.ConversionMode, opts Options) (domain.ConversionOutput, error) {
	ctx, span := observability.StartStep(ctx, "convert", alert.ID, attribute.String("alertzarr.mode", string(mode)))
	out, err := o.convert(ctx, alert, mode, opts)
	observability.EndStep(span, err)
	return out, err
}

func (o *Orchestrator) convert(ctx context.Context, alert domain.Alert, mode domain.ConversionMode, opts Options) (domain.ConversionOutput, error) {
	switch mode {
	case domain.ModeSimulate:
		return o.simulate(ctx, alert, opts)
	case domain.ModeReal:
		return o.realOnly(ctx, alert)
	case domain.ModeAuto:
		return o.auto(ctx, alert, opts)
	}
	return domain.ConversionOutput{}, fmt.Errorf("unsupported conversion mode %q", mode)
}

func (o *Orchestrator) realOnly(ctx context.Context, alert domain.Alert) (domain.ConversionOutput, error) {
	if !o.cfg.RealConversionEnabled {
		return domain.ConversionOutput{}, ErrRealConversionDisabled
	}
	return o.real(ctx, alert)
}

func (o *Orchestrator) auto(ctx context.Context, alert domain.Alert, opts Options) (domain.ConversionOutput, error) {
	if !o.cfg.RealConversionEnabled {
		return o.simulate(ctx, alert, opts)
	}
	out, err := o.real(ctx, alert)
	if errors.Is(err, domain.ErrNoUsableScene) {
		o.logger.Warn("no usable scene, falling back to placeholder conversion", "alert_id", alert.ID)
		return o.simulate(ctx, alert, opts)
	}
	return out, err
}

func (o *Orchestrator) real(ctx context.Context, alert domain.Alert) (domain.ConversionOutput, error) {
	scene, err := domain.SelectScene(o.scenes.FindScenes(ctx, alert, 0))
	if err != nil {
		return domain.ConversionOutput{}, fmt.Errorf("alert %s: %w", alert.ID, err)
	}

	collectionID, artifactID, key := o.outputLayout(alert, scene)
	bucket := o.cfg.GeoZarrBucket
	uri := fmt.Sprintf("s3://%s/%s", bucket, key)

	start := domain.Now()
	err = o.engine.Convert(ctx, geozarr.Request{SourceHref: scene.RasterHref, OutputURI: uri})
	var size int64
	if err == nil {
		size, err = o.store.PrefixSize(ctx, bucket, key+"/")
	}
	duration := domain.Since(start)
	o.observe(domain.ModeReal, duration, size, err)
	if err != nil {
		return domain.ConversionOutput{}, fmt.Errorf("real conversion of %s: %w", alert.ID, err)
	}

	out := domain.ConversionOutput{
		AlertID:      alert.ID,
		Bucket:       bucket,
		Key:          key,
		URI:          uri,
		BytesWritten: size,
		Duration:     duration,
		CollectionID: collectionID,
		ArtifactID:   artifactID,
		Scenes:       []domain.SceneCandidate{scene},
	}
	if o.cfg.TiTilerBaseURL != "" {
		out.Viewer = domain.NewViewerLinks(o.cfg.TiTilerBaseURL, o.cfg.TiTilerTileMatrixSet, collectionID, artifactID)
	}
	o.logger.Info("geozarr written", "alert_id", alert.ID, "scene_id", scene.ID, "uri", uri, "bytes", size)
	return out, nil
}

// outputLayout returns the collection id, artifact id and object key for a
// converted scene.
func (o *Orchestrator) outputLayout(alert domain.Alert, scene domain.SceneCandidate) (string, string, string) {
	collection := alert.HazardType
	if collection == "" || collection == domain.DefaultHazardType {
		collection = o.cfg.ConverterCollection
	}
	collectionID := domain.Slugify(collection)
	artifactID := domain.Slugify(alert.ID + "-" + scene.ID)

	var parts []string
	if prefix := strings.Trim(o.cfg.ConverterOutputPrefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, collectionID, artifactID+domain.ZarrSuffix)
	return collectionID, artifactID, strings.Join(parts, "/")
}

type placeholder struct {
	AlertID      string                  `json:"alert_id"`
	Hazard       string                  `json:"hazard"`
	Description  string                  `json:"description"`
	AOI          map[string]any          `json:"aoi"`
	Notes        string                  `json:"notes"`
	SourceScenes []domain.SceneCandidate `json:"source_scenes,omitempty"`
}

func (o *Orchestrator) simulate(ctx context.Context, alert domain.Alert, opts Options) (domain.ConversionOutput, error) {
	start := domain.Now()

	var scenes []domain.SceneCandidate
	if opts.IncludeSceneSearch {
		scenes = o.scenes.FindScenes(ctx, alert, placeholderScenes)
		if len(scenes) > placeholderScenes {
			scenes = scenes[:placeholderScenes]
		}
	}

	payload, err := json.Marshal(placeholder{
		AlertID:      alert.ID,
		Hazard:       alert.HazardType,
		Description:  alert.Description,
		AOI:          alert.AreaOfInterest,
		Notes:        placeholderNotes,
		SourceScenes: scenes,
	})
	if err != nil {
		return domain.ConversionOutput{}, fmt.Errorf("encode placeholder: %w", err)
	}

	bucket := o.cfg.GeoZarrBucket
	key := strings.Join([]string{"alerts", domain.Slugify(alert.HazardType), domain.Slugify(alert.ID), placeholderName}, "/")
	err = o.store.Put(ctx, bucket, key, payload, "application/json")
	duration := domain.Since(start)
	o.observe(domain.ModeSimulate, duration, int64(len(payload)), err)
	if err != nil {
		return domain.ConversionOutput{}, fmt.Errorf("write placeholder for %s: %w", alert.ID, err)
	}

	o.logger.Info("placeholder written", "alert_id", alert.ID, "key", key, "scenes", len(scenes))
	return domain.ConversionOutput{
		AlertID:      alert.ID,
		Bucket:       bucket,
		Key:          key,
		URI:          fmt.Sprintf("s3://%s/%s", bucket, key),
		BytesWritten: int64(len(payload)),
		Duration:     duration,
		Scenes:       scenes,
	}, nil
}

func (o *Orchestrator) observe(mode domain.ConversionMode, d time.Duration, bytes int64, err error) {
	outcome := observability.Outcome(err)
	o.metrics.Conversions.WithLabelValues(string(mode), outcome).Inc()
	o.metrics.ConversionDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if err == nil {
		o.metrics.ConversionBytes.Add(float64(bytes))
	}
}
