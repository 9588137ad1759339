package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
)

// Defaults applied when a payload carries no usable value for a field.
const (
	DefaultAlertID    = "alert"
	DefaultHazardType = "unknown"
	DefaultSeverity   = "unknown"
	DefaultSourceName = "unknown"
)

// ErrInvalidPayload is returned when an alert payload is not a JSON object.
var ErrInvalidPayload = errors.New("alert payload must be a mapping")

// Alert is the canonical, normalized form of a hazard notification.
// Treat it as immutable once returned by ParseAlertPayload.
type Alert struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Issued         string         `json:"issued"`
	Severity       string         `json:"severity"`
	HazardType     string         `json:"hazard_type"`
	SourceName     string         `json:"source_name"`
	SourceURL      string         `json:"source_url"`
	AreaOfInterest map[string]any `json:"area_of_interest"`
	Parameters     map[string]any `json:"parameters"`

	// Raw is the record the alert was normalized from, after feature flattening.
	Raw map[string]any `json:"-"`
}

// HasGeometry reports whether the alert carries a non-empty area of interest.
func (a Alert) HasGeometry() bool {
	return len(a.AreaOfInterest) > 0
}

// ParseAlertPayload normalizes an arbitrarily shaped payload into an Alert.
// Only a non-object payload is an error; every missing field degrades to its default.
func ParseAlertPayload(payload any) (Alert, error) {
	record, ok := payload.(map[string]any)
	if !ok {
		return Alert{}, fmt.Errorf("parse alert: %w (got %T)", ErrInvalidPayload, payload)
	}
	record = FlattenFeature(record)

	params := nestedMap(record, "parameters")
	source := nestedMap(record, "source")

	id := firstString(DefaultAlertID,
		record["id"], record["alertId"], record["identifier"], params["id"], params["alertId"])

	aoi := firstMap(record["areaOfInterest"], record["geometry"], params["geometry"])
	if aoi == nil {
		aoi = map[string]any{}
	}

	return Alert{
		ID:          id,
		Title:       firstString(id, record["title"], params["title"]),
		Description: firstString("", record["description"], params["description"]),
		Issued:      firstString("", record["issued"], record["time"], record["sent"], record["updated"]),
		Severity: firstString(DefaultSeverity,
			record["severity"], params["severity"], record["severityLevel"]),
		HazardType: firstString(DefaultHazardType,
			record["hazardType"], record["hazard_type"], params["hazard"], params["hazardType"]),
		SourceName:     firstString(DefaultSourceName, source["name"], params["source_name"]),
		SourceURL:      firstString("", source["url"], params["source_url"]),
		AreaOfInterest: aoi,
		Parameters:     maps.Clone(params),
		Raw:            maps.Clone(record),
	}, nil
}

// DecodeAlert unmarshals JSON and normalizes it with ParseAlertPayload.
func DecodeAlert(data []byte) (Alert, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return Alert{}, fmt.Errorf("decode alert: %w", err)
	}
	return ParseAlertPayload(payload)
}

// FlattenFeature turns a GeoJSON Feature into its properties, injecting the
// feature geometry as areaOfInterest when the properties carry none.
// Records without a properties object are returned unchanged.
func FlattenFeature(record map[string]any) map[string]any {
	props, ok := record["properties"].(map[string]any)
	if !ok {
		return record
	}
	merged := maps.Clone(props)
	if geom, ok := record["geometry"]; ok && present(geom) {
		if _, exists := merged["areaOfInterest"]; !exists {
			merged["areaOfInterest"] = geom
		}
	}
	return merged
}

func nestedMap(record map[string]any, key string) map[string]any {
	if m, ok := record[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// firstString returns the first present candidate rendered as a string.
func firstString(fallback string, candidates ...any) string {
	for _, c := range candidates {
		if present(c) {
			return stringify(c)
		}
	}
	return fallback
}

// firstMap returns the first candidate that is a non-empty object.
func firstMap(candidates ...any) map[string]any {
	for _, c := range candidates {
		if m, ok := c.(map[string]any); ok && len(m) > 0 {
			return maps.Clone(m)
		}
	}
	return nil
}

// present mirrors loose truthiness: nil, "", false, 0 and empty collections
// are treated as absent so the lookup moves on to the next synonym.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		return t.String() != "" && t.String() != "0"
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
