// Command bootstrap creates the alerts, GeoZarr and STAC buckets on the
// configured object store if they do not exist yet.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/alertzarr/internal/adapter/s3"
	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := s3.NewStore(cfg)
	if err != nil {
		logger.Error("failed to create object store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, bucket := range []string{cfg.AlertsBucket, cfg.GeoZarrBucket, cfg.STACBucket} {
		created, err := store.EnsureBucket(ctx, bucket)
		if err != nil {
			logger.Error("failed to ensure bucket", "bucket", bucket, "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("bucket created", "bucket", bucket)
		} else {
			logger.Info("bucket exists", "bucket", bucket)
		}
	}
}
