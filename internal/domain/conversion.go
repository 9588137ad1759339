package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConversionMode controls whether the orchestrator runs the conversion engine.
type ConversionMode string

const (
	ModeAuto     ConversionMode = "auto"
	ModeReal     ConversionMode = "real"
	ModeSimulate ConversionMode = "simulate"
)

// ParseConversionMode accepts auto, real or simulate in any case.
func ParseConversionMode(s string) (ConversionMode, error) {
	switch m := ConversionMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeReal, ModeSimulate:
		return m, nil
	}
	return "", fmt.Errorf("unsupported conversion mode %q (want auto, real or simulate)", s)
}

// ZarrSuffix marks object keys that hold a Zarr store rather than a single object.
const ZarrSuffix = ".zarr"

// ConversionOutput describes the artifact produced for one alert.
type ConversionOutput struct {
	AlertID      string           `json:"alert_id"`
	Bucket       string           `json:"bucket"`
	Key          string           `json:"key"`
	URI          string           `json:"uri"`
	BytesWritten int64            `json:"bytes_written"`
	Duration     time.Duration    `json:"duration"`
	CollectionID string           `json:"collection_id,omitempty"`
	ArtifactID   string           `json:"artifact_id,omitempty"`
	Scenes       []SceneCandidate `json:"scenes,omitempty"`
	Viewer       *ViewerLinks     `json:"viewer,omitempty"`
}

// IsZarr reports whether the output key names a Zarr store.
func (o ConversionOutput) IsZarr() bool {
	return strings.HasSuffix(o.Key, ZarrSuffix)
}

// ViewerLinks are the tile-server endpoints for a converted artifact.
type ViewerLinks struct {
	CollectionID  string `json:"collection_id"`
	ArtifactID    string `json:"artifact_id"`
	BaseURL       string `json:"base_url"`
	TileMatrixSet string `json:"tile_matrix_set"`
	ItemURL       string `json:"item_url"`
	ViewerURL     string `json:"viewer_url"`
	TileJSONURL   string `json:"tilejson_url"`
	InfoURL       string `json:"info_url"`
}

// NewViewerLinks derives the tile-server URLs for an artifact under base.
func NewViewerLinks(base, tileMatrixSet, collectionID, artifactID string) *ViewerLinks {
	root := fmt.Sprintf("%s/collections/%s/items/%s", strings.TrimRight(base, "/"), collectionID, artifactID)
	return &ViewerLinks{
		CollectionID:  collectionID,
		ArtifactID:    artifactID,
		BaseURL:       base,
		TileMatrixSet: tileMatrixSet,
		ItemURL:       root,
		ViewerURL:     root + "/viewer",
		TileJSONURL:   fmt.Sprintf("%s/%s/tilejson.json", root, tileMatrixSet),
		InfoURL:       root + "/info",
	}
}
