package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/alertzarr/internal/adapter/argo"
	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
	"github.com/couchcryptid/alertzarr/internal/state"
)

// ErrMalformedMessage marks an event that can never be processed. The
// pipeline acknowledges such events instead of retrying them.
var ErrMalformedMessage = errors.New("malformed alert event")

// WorkflowSubmitter triggers the downstream workflow for an alert.
type WorkflowSubmitter interface {
	Submit(ctx context.Context, alert domain.Alert) (argo.Submission, error)
}

// WorkflowHandler submits one workflow per new alert event bound to its
// routing key.
type WorkflowHandler struct {
	submitter  WorkflowSubmitter
	store      state.Store
	routingKey string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewWorkflowHandler creates a handler that only accepts events whose
// routing_key header equals routingKey.
func NewWorkflowHandler(submitter WorkflowSubmitter, store state.Store, routingKey string, logger *slog.Logger, metrics *observability.Metrics) *WorkflowHandler {
	return &WorkflowHandler{
		submitter:  submitter,
		store:      store,
		routingKey: routingKey,
		logger:     logger,
		metrics:    metrics,
	}
}

// Handle returns nil for events that were submitted or deliberately
// skipped, ErrMalformedMessage for undecodable events, and any other error
// when the event must be retried. State is marked only after a successful
// submission.
func (h *WorkflowHandler) Handle(ctx context.Context, raw domain.RawEvent) error {
	if key := raw.Headers[domain.HeaderRoutingKey]; key != h.routingKey {
		h.logger.Debug("skipping event for another routing key", "routing_key", key, "offset", raw.Offset)
		h.metrics.MessagesSkipped.WithLabelValues("routing_key").Inc()
		return nil
	}

	evt, alert, err := domain.DecodeAlertEvent(raw.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	isNew, err := h.store.IsNew(ctx, alert.ID)
	if err != nil {
		return fmt.Errorf("check state for %s: %w", alert.ID, err)
	}
	if !isNew {
		h.logger.Info("alert already processed, skipping", "alert_id", alert.ID, "event_type", evt.Type)
		h.metrics.MessagesSkipped.WithLabelValues("duplicate").Inc()
		return nil
	}

	spanCtx, span := observability.StartStep(ctx, "submit", alert.ID)
	sub, err := h.submitter.Submit(spanCtx, alert)
	observability.EndStep(span, err)
	h.metrics.WorkflowSubmissions.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("submit workflow for %s: %w", alert.ID, err)
	}

	// The workflow exists now; record it even if shutdown began mid-submit.
	if err := h.store.MarkProcessed(context.WithoutCancel(ctx), alert.ID); err != nil {
		return fmt.Errorf("mark %s processed: %w", alert.ID, err)
	}
	h.logger.Info("workflow submitted", "alert_id", alert.ID, "workflow", sub.Name, "namespace", sub.Namespace)
	return nil
}
