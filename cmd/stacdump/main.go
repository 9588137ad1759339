// Command stacdump copies the STAC item documents under a bucket prefix to
// a local directory.
//
// Usage:
//
//	go run ./cmd/stacdump -prefix items/ -dest local/stac_items
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/alertzarr/internal/adapter/s3"
	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/observability"
)

func main() {
	prefix := flag.String("prefix", "items/", "key prefix to download from the STAC bucket")
	dest := flag.String("dest", "local/stac_items", "destination directory")
	flag.Parse()

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := dump(ctx, store, cfg.STACBucket, *prefix, *dest)
	if err != nil {
		logger.Error("download failed", "bucket", cfg.STACBucket, "prefix", *prefix, "error", err)
		os.Exit(1)
	}
	logger.Info("download complete", "bucket", cfg.STACBucket, "items", n, "dest", *dest)
}

type objectReader interface {
	List(ctx context.Context, bucket, prefix string) ([]s3.Object, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// dump writes every *.json object under prefix to dest, flattened to its
// base name, and returns how many were written.
func dump(ctx context.Context, store objectReader, bucket, prefix, dest string) (int, error) {
	objects, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, err
	}

	n := 0
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		data, err := store.Get(ctx, bucket, obj.Key)
		if err != nil {
			return n, err
		}
		if err := os.WriteFile(filepath.Join(dest, filepath.Base(obj.Key)), data, 0o644); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
