// Command autopilot runs one alert file through the full pipeline: publish
// the alert event, convert to GeoZarr (or a placeholder), write the STAC
// item, and print a run summary.
//
// Usage:
//
//	go run ./cmd/autopilot -alert data/sample_alerts/flood.json -conversion-mode simulate
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/alertzarr/internal/adapter/geozarr"
	kafkaadapter "github.com/couchcryptid/alertzarr/internal/adapter/kafka"
	"github.com/couchcryptid/alertzarr/internal/adapter/s3"
	"github.com/couchcryptid/alertzarr/internal/adapter/stac"
	"github.com/couchcryptid/alertzarr/internal/catalog"
	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/conversion"
	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
	"github.com/couchcryptid/alertzarr/internal/report"
	"github.com/couchcryptid/alertzarr/internal/runner"
)

func main() {
	alertPath := flag.String("alert", "", "path to the alert JSON file (required)")
	hazard := flag.String("hazard", "", "hazard type used when the alert does not name one")
	runID := flag.String("run-id", "", "run id override (default: random UUID)")
	noSceneSearch := flag.Bool("no-scene-search", false, "do not search for overlapping scenes in simulate mode")
	reportDir := flag.String("report-dir", "local/run_reports", "directory for persisted run summaries")
	modeFlag := flag.String("conversion-mode", "auto", "auto, real or simulate")
	flag.Parse()

	if *alertPath == "" {
		fmt.Fprintln(os.Stderr, "-alert is required")
		flag.Usage()
		os.Exit(2)
	}
	mode, err := domain.ParseConversionMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, "alertzarr-autopilot")
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	store, err := s3.NewStore(cfg)
	if err != nil {
		logger.Error("failed to create object store", "error", err)
		os.Exit(1)
	}
	events := kafkaadapter.NewPublisher(cfg, logger)
	orch := conversion.New(cfg,
		stac.NewClient(cfg, metrics, logger),
		geozarr.NewConverter(cfg, nil, logger),
		store, logger, metrics)
	items := catalog.NewPublisher(store, cfg.STACBucket, cfg.STACPublicBaseURL, logger, metrics)

	r := runner.New(events, orch, items, os.Stdout, logger)
	res, runErr := r.Run(ctx, runner.Options{
		AlertPath:     *alertPath,
		Hazard:        *hazard,
		RunID:         *runID,
		NoSceneSearch: *noSceneSearch,
		ReportDir:     *reportDir,
		Mode:          mode,
	})

	if err := events.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	fmt.Println(report.RenderTable(res.Summary))
	if res.ReportPath != "" {
		fmt.Printf("Saved run summary to %s\n", res.ReportPath)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
	fmt.Println("Pipeline completed successfully")
}
