// Command subscriber consumes alert events and submits one workflow per new
// alert. Events are acknowledged only after the workflow was created and the
// alert recorded as processed.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/alertzarr/internal/adapter/argo"
	httpadapter "github.com/couchcryptid/alertzarr/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/alertzarr/internal/adapter/kafka"
	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/observability"
	"github.com/couchcryptid/alertzarr/internal/pipeline"
	"github.com/couchcryptid/alertzarr/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateSubscriber(); err != nil {
		slog.Error("invalid subscriber config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := state.Open(cfg.StateBackend, cfg.WorkflowStatePath)
	if err != nil {
		logger.Error("failed to open workflow state", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	submitter, err := argo.NewClient(cfg)
	if err != nil {
		logger.Error("failed to create workflow client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, "alertzarr-subscriber")
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	consumer := kafkaadapter.NewConsumer(cfg, logger)
	handler := pipeline.NewWorkflowHandler(submitter, store, cfg.AlertRoutingKey, logger, metrics)
	p := pipeline.New(consumer, handler, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, metrics.Gatherer, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// The in-flight event must finish before the reader and state store close.
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := consumer.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
