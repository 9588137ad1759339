// Package report accumulates what happened during one autopilot run and
// persists it as a JSON summary keyed by run id.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/alertzarr/internal/catalog"
	"github.com/couchcryptid/alertzarr/internal/domain"
	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Summary is the point-in-time snapshot written to {run_id}.json.
type Summary struct {
	RunID           string  `json:"run_id"`
	AlertID         string  `json:"alert_id,omitempty"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
	StartedAt       string  `json:"started_at,omitempty"`
	FinishedAt      string  `json:"finished_at,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Steps           Steps   `json:"steps"`
}

type Steps struct {
	Alert       *AlertStep      `json:"alert,omitempty"`
	Event       *EventStep      `json:"event,omitempty"`
	Conversion  *ConversionStep `json:"conversion,omitempty"`
	CatalogItem *CatalogStep    `json:"stac_item,omitempty"`
}

type AlertStep struct {
	ID       string   `json:"id"`
	Issued   string   `json:"issued"`
	Hazard   string   `json:"hazard"`
	Severity string   `json:"severity"`
	AreaKm2  *float64 `json:"area_km2,omitempty"`
}

type EventStep struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}

type ConversionStep struct {
	URI              string              `json:"s3_uri"`
	DurationSeconds  float64             `json:"duration_seconds"`
	BytesWritten     int64               `json:"bytes_written"`
	SourceSceneIDs   []string            `json:"source_scene_ids,omitempty"`
	SourceSceneCount int                 `json:"source_scene_count,omitempty"`
	PreviewHref      string              `json:"preview_href,omitempty"`
	Viewer           *domain.ViewerLinks `json:"viewer,omitempty"`
}

type CatalogStep struct {
	ID   string `json:"id"`
	Href string `json:"href"`
}

// Reporter records the steps of one run. It is safe for concurrent use.
type Reporter struct {
	mu         sync.Mutex
	runID      string
	status     string
	errText    string
	startedAt  time.Time
	finishedAt time.Time
	alertID    string
	steps      Steps
}

// New creates a Reporter. An empty runID is replaced with a fresh UUID.
func New(runID string) *Reporter {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Reporter{runID: runID, status: StatusRunning}
}

func (r *Reporter) RunID() string {
	return r.runID
}

// StartRun stamps the start time.
func (r *Reporter) StartRun() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startedAt = domain.Now()
	r.status = StatusRunning
}

// RecordAlert stores the alert summary. The area is omitted when the
// alert has no valid geometry.
func (r *Reporter) RecordAlert(alert domain.Alert) {
	step := &AlertStep{
		ID:       alert.ID,
		Issued:   alert.Issued,
		Hazard:   alert.HazardType,
		Severity: alert.Severity,
	}
	if area, err := domain.AreaKm2(alert.AreaOfInterest); err == nil {
		step.AreaKm2 = &area
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.alertID = alert.ID
	r.steps.Alert = step
}

func (r *Reporter) RecordEventPublish(eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps.Event = &EventStep{Status: "published", EventID: eventID}
}

func (r *Reporter) RecordConversion(out domain.ConversionOutput) {
	step := &ConversionStep{
		URI:             out.URI,
		DurationSeconds: roundSeconds(out.Duration),
		BytesWritten:    out.BytesWritten,
		Viewer:          out.Viewer,
	}
	if len(out.Scenes) > 0 {
		for _, s := range out.Scenes {
			step.SourceSceneIDs = append(step.SourceSceneIDs, s.ID)
		}
		step.SourceSceneCount = len(out.Scenes)
		step.PreviewHref = out.Scenes[0].PreviewHref
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps.Conversion = step
}

func (r *Reporter) RecordCatalogItem(item catalog.Item) {
	step := &CatalogStep{ID: item.ID}
	if len(item.Links) > 0 {
		step.Href = item.Links[0].Href
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps.CatalogItem = step
}

// FinishRun stamps the end time and marks the run failed when err is non-nil.
func (r *Reporter) FinishRun(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishedAt = domain.Now()
	if err != nil {
		r.status = StatusFailed
		r.errText = err.Error()
		return
	}
	r.status = StatusSucceeded
}

// Summary returns a snapshot of the run so far.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		RunID:   r.runID,
		AlertID: r.alertID,
		Status:  r.status,
		Error:   r.errText,
		Steps:   r.steps,
	}
	if !r.startedAt.IsZero() {
		s.StartedAt = r.startedAt.UTC().Format(time.RFC3339)
	}
	if !r.finishedAt.IsZero() {
		s.FinishedAt = r.finishedAt.UTC().Format(time.RFC3339)
		if !r.startedAt.IsZero() {
			s.DurationSeconds = roundSeconds(r.finishedAt.Sub(r.startedAt))
		}
	}
	return s
}

// Persist writes the summary to {dir}/{run_id}.json and returns the path.
func (r *Reporter) Persist(dir string) (string, error) {
	data, err := json.MarshalIndent(r.Summary(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run summary: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, r.runID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write run summary: %w", err)
	}
	return path, nil
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
