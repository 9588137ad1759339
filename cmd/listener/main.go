// Command listener polls the configured alert feeds and publishes every
// alert it has not seen before to the alert topic.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/alertzarr/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/alertzarr/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/alertzarr/internal/adapter/kafka"
	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/listener"
	"github.com/couchcryptid/alertzarr/internal/observability"
	"github.com/couchcryptid/alertzarr/internal/state"
)

func main() {
	once := flag.Bool("once", false, "run a single polling cycle then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateListener(); err != nil {
		slog.Error("invalid listener config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	specs, err := listener.ResolveFeeds(cfg)
	if err != nil {
		logger.Error("failed to resolve feeds", "error", err)
		os.Exit(1)
	}
	feeds := make([]listener.Fetcher, 0, len(specs))
	for _, s := range specs {
		feeds = append(feeds, feed.NewClient(s.Name, s.URL, cfg.FeedTimeout, logger))
		logger.Info("feed configured", "feed", s.Name, "url", s.URL)
	}

	store, err := state.Open(cfg.StateBackend, cfg.ListenerStatePath)
	if err != nil {
		logger.Error("failed to open listener state", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, "alertzarr-listener")
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	writer := kafkaadapter.NewPublisher(cfg, logger)
	l := listener.New(feeds, writer, store, cfg.ListenerSchedule, logger, metrics)

	if *once {
		published := l.RunOnce(ctx)
		logger.Info("single cycle complete", "published", published)
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
		_ = shutdownTracing(context.Background())
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, l, metrics.Gatherer, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := l.Run(ctx); err != nil {
			logger.Error("listener error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
