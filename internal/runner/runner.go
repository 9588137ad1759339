// Package runner drives one alert file through publish, conversion and
// cataloging, recording each step in a run report.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"strings"

	"github.com/couchcryptid/alertzarr/internal/catalog"
	"github.com/couchcryptid/alertzarr/internal/conversion"
	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/report"
)

// EventPublisher announces the alert on the alert topic.
type EventPublisher interface {
	Publish(ctx context.Context, alert domain.Alert) (domain.AlertEvent, error)
}

// Converter produces the GeoZarr artifact or placeholder for an alert.
type Converter interface {
	Convert(ctx context.Context, alert domain.Alert, mode domain.ConversionMode, opts conversion.Options) (domain.ConversionOutput, error)
}

// CatalogPublisher writes the catalog item for a conversion.
type CatalogPublisher interface {
	Publish(ctx context.Context, alert domain.Alert, output domain.ConversionOutput) (catalog.Item, error)
}

// Options are the per-run inputs of the autopilot command.
type Options struct {
	AlertPath     string
	Hazard        string
	RunID         string
	NoSceneSearch bool
	ReportDir     string
	Mode          domain.ConversionMode
}

// Result is what a run produced. Summary is set even when Run fails.
type Result struct {
	Summary    report.Summary
	ReportPath string
	Output     domain.ConversionOutput
	Item       catalog.Item
}

// Runner executes single-alert runs.
type Runner struct {
	events    EventPublisher
	converter Converter
	catalog   CatalogPublisher
	out       io.Writer
	logger    *slog.Logger
}

// New creates a Runner. Progress lines are written to out.
func New(events EventPublisher, converter Converter, catalog CatalogPublisher, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{
		events:    events,
		converter: converter,
		catalog:   catalog,
		out:       out,
		logger:    logger,
	}
}

// Run processes the alert at opts.AlertPath. The report is finished and,
// when ReportDir is set, persisted whether or not the run succeeded.
func (r *Runner) Run(ctx context.Context, opts Options) (res Result, err error) {
	rep := report.New(opts.RunID)
	rep.StartRun()
	defer func() {
		rep.FinishRun(err)
		res.Summary = rep.Summary()
		if opts.ReportDir == "" {
			return
		}
		path, perr := rep.Persist(opts.ReportDir)
		if perr != nil {
			r.logger.Warn("persist run summary failed", "run_id", rep.RunID(), "error", perr)
			return
		}
		res.ReportPath = path
	}()

	alert, err := LoadAlert(opts.AlertPath, opts.Hazard)
	if err != nil {
		return res, err
	}
	rep.RecordAlert(alert)
	r.printf("Loaded alert %s for hazard %s", alert.ID, alert.HazardType)

	evt, err := r.events.Publish(ctx, alert)
	if err != nil {
		return res, fmt.Errorf("publish alert event: %w", err)
	}
	rep.RecordEventPublish(evt.ID)
	r.printf("Published alert event %s", evt.Type)

	out, err := r.converter.Convert(ctx, alert, opts.Mode, conversion.Options{IncludeSceneSearch: !opts.NoSceneSearch})
	if err != nil {
		return res, err
	}
	res.Output = out
	rep.RecordConversion(out)
	artifact := "placeholder JSON"
	if out.IsZarr() {
		artifact = "GeoZarr"
	}
	r.printf("Wrote %s artifact to %s", artifact, out.URI)
	if len(out.Scenes) > 0 {
		ids := make([]string, len(out.Scenes))
		for i, s := range out.Scenes {
			ids[i] = s.ID
		}
		r.printf("Found %d scene(s) intersecting the AOI: %s", len(out.Scenes), strings.Join(ids, ", "))
	} else {
		r.printf("No scenes matched the search criteria")
	}

	item, err := r.catalog.Publish(ctx, alert, out)
	if err != nil {
		return res, err
	}
	res.Item = item
	rep.RecordCatalogItem(item)
	r.printf("Created STAC item %s", item.ID)

	return res, nil
}

// LoadAlert reads and normalizes an alert file. hazard replaces the hazard
// type only when the file does not name one.
func LoadAlert(path, hazard string) (domain.Alert, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("read alert file: %w", err)
	}
	alert, err := domain.DecodeAlert(data)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("load alert %s: %w", path, err)
	}
	if hazard != "" && alert.HazardType == domain.DefaultHazardType {
		alert.HazardType = hazard
		alert.Raw = maps.Clone(alert.Raw)
		alert.Raw["hazardType"] = hazard
	}
	return alert, nil
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}
