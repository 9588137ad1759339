package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultEventSource identifies alerts that carry no source URL of their own.
const DefaultEventSource = "urn:alertzarr:alerts"

// Message header keys carried on every alert event.
const (
	HeaderRoutingKey = "routing_key"
	HeaderEventType  = "event_type"
)

// RawEvent represents an unprocessed message from the alert topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// AlertEvent is the CloudEvents 1.0 envelope published for every new alert.
type AlertEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Time            string          `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// NewAlertEvent wraps the alert's raw record in an event envelope stamped with the pipeline clock.
func NewAlertEvent(a Alert) (AlertEvent, error) {
	data, err := json.Marshal(a.Raw)
	if err != nil {
		return AlertEvent{}, fmt.Errorf("encode alert data: %w", err)
	}
	source := a.SourceURL
	if source == "" {
		source = DefaultEventSource
	}
	return AlertEvent{
		SpecVersion:     "1.0",
		ID:              a.ID,
		Type:            "alert." + a.HazardType,
		Source:          source,
		Time:            Now().UTC().Format(time.RFC3339Nano),
		DataContentType: "application/json",
		Data:            data,
	}, nil
}

// DecodeAlertEvent parses an envelope and normalizes its data into an Alert.
// Either step failing means the message can never be processed.
func DecodeAlertEvent(payload []byte) (AlertEvent, Alert, error) {
	var evt AlertEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return AlertEvent{}, Alert{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(evt.Data) == 0 {
		return evt, Alert{}, fmt.Errorf("decode envelope: %w (no data)", ErrInvalidPayload)
	}
	alert, err := DecodeAlert(evt.Data)
	if err != nil {
		return evt, Alert{}, err
	}
	return evt, alert, nil
}
