// Package listener polls alert feeds on a schedule, drops alerts that were
// already seen, and publishes the rest as alert events.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
	"github.com/couchcryptid/alertzarr/internal/state"
	"github.com/robfig/cron/v3"
)

// Fetcher downloads the current alerts from one feed.
type Fetcher interface {
	Name() string
	FetchAlerts(ctx context.Context) ([]domain.Alert, error)
}

// Publisher emits an alert event downstream.
type Publisher interface {
	Publish(ctx context.Context, alert domain.Alert) (domain.AlertEvent, error)
}

// Listener runs poll cycles over its feeds.
type Listener struct {
	feeds     []Fetcher
	publisher Publisher
	store     state.Store
	schedule  string
	logger    *slog.Logger
	metrics   *observability.Metrics
	cycles    atomic.Int64
}

// New creates a Listener. schedule is a robfig/cron spec such as "@every 5m".
func New(feeds []Fetcher, publisher Publisher, store state.Store, schedule string, logger *slog.Logger, metrics *observability.Metrics) *Listener {
	return &Listener{
		feeds:     feeds,
		publisher: publisher,
		store:     store,
		schedule:  schedule,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil after the first completed poll cycle.
func (l *Listener) CheckReadiness(_ context.Context) error {
	if l.cycles.Load() == 0 {
		return errors.New("listener has not completed a poll cycle yet")
	}
	return nil
}

// Run polls once immediately, then on the schedule until ctx is cancelled.
// A cycle still running when the next one is due is not overlapped.
func (l *Listener) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{l.logger})))
	if _, err := c.AddFunc(l.schedule, func() { l.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("parse listener schedule %q: %w", l.schedule, err)
	}

	l.logger.Info("listener started", "feeds", len(l.feeds), "schedule", l.schedule)
	l.RunOnce(ctx)
	c.Start()

	<-ctx.Done()
	l.logger.Info("listener stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

// RunOnce processes every feed in order and returns how many alerts were
// published. Failures are logged; an alert whose publish or state update
// failed stays new and is retried next cycle.
func (l *Listener) RunOnce(ctx context.Context) int {
	start := domain.Now()
	published := 0
	for _, feed := range l.feeds {
		if ctx.Err() != nil {
			break
		}
		published += l.pollFeed(ctx, feed)
	}
	l.metrics.ListenerCycleDuration.Observe(domain.Since(start).Seconds())
	l.cycles.Add(1)
	l.logger.Info("poll cycle complete", "published", published)
	return published
}

func (l *Listener) pollFeed(ctx context.Context, feed Fetcher) int {
	alerts, err := feed.FetchAlerts(ctx)
	l.metrics.FeedFetches.WithLabelValues(feed.Name(), observability.Outcome(err)).Inc()
	if err != nil {
		l.logger.Error("feed fetch failed", "feed", feed.Name(), "error", err)
		return 0
	}

	published := 0
	for _, alert := range alerts {
		if l.handleAlert(ctx, feed.Name(), alert) {
			published++
		}
	}
	return published
}

func (l *Listener) handleAlert(ctx context.Context, feedName string, alert domain.Alert) bool {
	isNew, err := l.store.IsNew(ctx, alert.ID)
	if err != nil {
		l.logger.Error("state lookup failed", "feed", feedName, "alert_id", alert.ID, "error", err)
		return false
	}
	if !isNew {
		l.metrics.AlertsSeen.WithLabelValues("duplicate").Inc()
		return false
	}
	l.metrics.AlertsSeen.WithLabelValues("new").Inc()

	spanCtx, span := observability.StartStep(ctx, "publish", alert.ID)
	_, err = l.publisher.Publish(spanCtx, alert)
	observability.EndStep(span, err)
	l.metrics.EventsPublished.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		l.logger.Error("publish alert failed", "feed", feedName, "alert_id", alert.ID, "error", err)
		return false
	}

	if err := l.store.MarkProcessed(ctx, alert.ID); err != nil {
		l.logger.Error("mark alert processed failed", "feed", feedName, "alert_id", alert.ID, "error", err)
		return false
	}
	l.logger.Info("alert published", "feed", feedName, "alert_id", alert.ID, "hazard", alert.HazardType)
	return true
}

// cronLogger routes robfig/cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error(msg, append(keysAndValues, "error", err)...)
}
