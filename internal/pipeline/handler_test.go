package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/alertzarr/internal/adapter/argo"
	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/couchcryptid/alertzarr/internal/observability"
	"github.com/couchcryptid/alertzarr/internal/pipeline"
	"github.com/couchcryptid/alertzarr/internal/state"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routingKey = "alerts.disaster.flood"

type mockSubmitter struct {
	submitted []domain.Alert
	err       error
}

func (m *mockSubmitter) Submit(_ context.Context, alert domain.Alert) (argo.Submission, error) {
	if m.err != nil {
		return argo.Submission{}, m.err
	}
	m.submitted = append(m.submitted, alert)
	return argo.Submission{Name: "alertzarr-pipeline-abc12", Namespace: "argo"}, nil
}

type handlerFixture struct {
	handler   *pipeline.WorkflowHandler
	submitter *mockSubmitter
	store     state.Store
	metrics   *observability.Metrics
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	store, err := state.OpenFile(filepath.Join(t.TempDir(), "workflow_state.json"))
	require.NoError(t, err)
	sub := &mockSubmitter{}
	metrics := observability.NewMetricsForTesting()
	return &handlerFixture{
		handler:   pipeline.NewWorkflowHandler(sub, store, routingKey, slog.Default(), metrics),
		submitter: sub,
		store:     store,
		metrics:   metrics,
	}
}

func (f *handlerFixture) isNew(t *testing.T, id string) bool {
	t.Helper()
	isNew, err := f.store.IsNew(context.Background(), id)
	require.NoError(t, err)
	return isNew
}

func TestWorkflowHandler_SubmitsAndMarks(t *testing.T) {
	fx := newHandlerFixture(t)

	err := fx.handler.Handle(context.Background(), makeRawEvent(t, "A1", "flood", routingKey))
	require.NoError(t, err)

	require.Len(t, fx.submitter.submitted, 1)
	assert.Equal(t, "A1", fx.submitter.submitted[0].ID)
	assert.Equal(t, "flood", fx.submitter.submitted[0].HazardType)
	assert.False(t, fx.isNew(t, "A1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.WorkflowSubmissions.WithLabelValues("success")))
}

func TestWorkflowHandler_SkipsDuplicates(t *testing.T) {
	fx := newHandlerFixture(t)
	raw := makeRawEvent(t, "A1", "flood", routingKey)

	require.NoError(t, fx.handler.Handle(context.Background(), raw))
	require.NoError(t, fx.handler.Handle(context.Background(), raw))

	assert.Len(t, fx.submitter.submitted, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.MessagesSkipped.WithLabelValues("duplicate")))
}

func TestWorkflowHandler_FiltersRoutingKey(t *testing.T) {
	fx := newHandlerFixture(t)

	require.NoError(t, fx.handler.Handle(context.Background(), makeRawEvent(t, "A1", "wildfire", "alerts.disaster.wildfire")))

	noHeader := makeRawEvent(t, "A2", "flood", routingKey)
	noHeader.Headers = nil
	require.NoError(t, fx.handler.Handle(context.Background(), noHeader))

	assert.Empty(t, fx.submitter.submitted)
	assert.True(t, fx.isNew(t, "A1"))
	assert.Equal(t, 2.0, testutil.ToFloat64(fx.metrics.MessagesSkipped.WithLabelValues("routing_key")))
}

func TestWorkflowHandler_Malformed(t *testing.T) {
	fx := newHandlerFixture(t)
	headers := map[string]string{domain.HeaderRoutingKey: routingKey}

	for name, value := range map[string]string{
		"not json":    "not json",
		"no data":     `{"specversion":"1.0","id":"A1","type":"alert.flood"}`,
		"scalar data": `{"specversion":"1.0","id":"A1","data":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			err := fx.handler.Handle(context.Background(), domain.RawEvent{Value: []byte(value), Headers: headers})
			require.ErrorIs(t, err, pipeline.ErrMalformedMessage)
		})
	}
	assert.Empty(t, fx.submitter.submitted)
}

func TestWorkflowHandler_SubmitFailureLeavesAlertNew(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.submitter.err = errors.New("argo: status 503")

	err := fx.handler.Handle(context.Background(), makeRawEvent(t, "A1", "flood", routingKey))
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrMalformedMessage)
	assert.True(t, fx.isNew(t, "A1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.WorkflowSubmissions.WithLabelValues("error")))
}

// cancellingSubmitter succeeds and then cancels the handler context, as a
// shutdown signal arriving mid-submit would.
type cancellingSubmitter struct {
	cancel context.CancelFunc
}

func (c *cancellingSubmitter) Submit(_ context.Context, _ domain.Alert) (argo.Submission, error) {
	c.cancel()
	return argo.Submission{Name: "alertzarr-pipeline-z1", Namespace: "argo"}, nil
}

func TestWorkflowHandler_MarksAfterCancelDuringSubmit(t *testing.T) {
	store, err := state.OpenSQLite(filepath.Join(t.TempDir(), "workflow_state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := pipeline.NewWorkflowHandler(&cancellingSubmitter{cancel: cancel}, store, routingKey,
		slog.Default(), observability.NewMetricsForTesting())

	require.NoError(t, h.Handle(ctx, makeRawEvent(t, "A1", "flood", routingKey)))
	require.Error(t, ctx.Err())

	isNew, err := store.IsNew(context.Background(), "A1")
	require.NoError(t, err)
	assert.False(t, isNew, "a submitted workflow must be recorded despite cancellation")
}

func TestWorkflowHandler_WithPipeline(t *testing.T) {
	fx := newHandlerFixture(t)
	var commits commitCounter

	good := makeRawEvent(t, "A1", "flood", routingKey)
	good.Commit = commits.commit
	bad := domain.RawEvent{Key: []byte("bad"), Value: []byte("{"), Headers: map[string]string{domain.HeaderRoutingKey: routingKey}, Commit: commits.commit}
	dup := makeRawEvent(t, "A1", "flood", routingKey)
	dup.Commit = commits.commit

	ext := &mockExtractor{events: []domain.RawEvent{good, bad, dup}}
	p := pipeline.New(ext, fx.handler, slog.Default(), fx.metrics)

	runUntil(t, p, func() bool { return commits.n.Load() == 3 })

	assert.Len(t, fx.submitter.submitted, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.MessagesSkipped.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.MessagesSkipped.WithLabelValues("duplicate")))
}
