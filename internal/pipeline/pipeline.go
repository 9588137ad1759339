package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Extractor reads the next raw event from the alert topic.
type Extractor interface {
	Extract(ctx context.Context) (domain.RawEvent, error)
}

// Handler processes one raw event to completion. A nil return means the
// event may be acknowledged.
type Handler interface {
	Handle(ctx context.Context, raw domain.RawEvent) error
}

// Pipeline consumes events one at a time and commits each only after its
// handler succeeded or rejected it as malformed.
type Pipeline struct {
	extractor Extractor
	handler   Handler
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, h Handler, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		handler:   h,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil while the loop is running and the last
// extract succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("subscriber is not consuming")
	}
	return nil
}

// Run executes the consume loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	p.metrics.PipelineRunning.Set(1)
	p.ready.Store(true)
	defer func() {
		p.ready.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		raw, err := p.extractor.Extract(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.ready.Store(false)
			p.logger.Error("extract failed", "error", err)
			p.backoffOrStop(ctx, &backoff)
			continue
		}
		p.ready.Store(true)
		backoff = initialBackoff
		p.metrics.MessagesConsumed.Inc()

		p.process(ctx, raw)
	}
}

// process retries the handler in place until it succeeds, rejects the
// event as malformed, or ctx is cancelled. A cancelled event is left
// uncommitted for redelivery.
func (p *Pipeline) process(ctx context.Context, raw domain.RawEvent) {
	backoff := initialBackoff
	for {
		err := p.handler.Handle(ctx, raw)
		switch {
		case err == nil:
			p.commitOffset(ctx, raw)
			return
		case errors.Is(err, ErrMalformedMessage):
			p.logger.Warn("discarding malformed message", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
			p.metrics.MessagesSkipped.WithLabelValues("malformed").Inc()
			p.commitOffset(ctx, raw)
			return
		}

		if ctx.Err() != nil {
			return
		}
		p.logger.Error("handle message failed, retrying", "error", err,
			"key", string(raw.Key), "offset", raw.Offset, "backoff", backoff)
		if !p.backoffOrStop(ctx, &backoff) {
			return
		}
	}
}

// backoffOrStop sleeps with the current backoff and advances it. Returns false
// if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
