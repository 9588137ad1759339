package domain

import (
	"errors"
	"slices"
	"time"
)

// cloudCoverUnknown ranks scenes that report no cloud cover as fully clouded.
const cloudCoverUnknown = 100.0

// ErrNoUsableScene is returned when no candidate scene carries a raster asset.
var ErrNoUsableScene = errors.New("no scene with a usable raster asset")

// SceneCandidate is a satellite scene returned by the scene catalog.
type SceneCandidate struct {
	ID              string   `json:"id"`
	Collection      string   `json:"collection"`
	Datetime        string   `json:"datetime"`
	CloudCover      *float64 `json:"cloud_cover,omitempty"`
	PreviewHref     string   `json:"preview_href,omitempty"`
	DataHref        string   `json:"data_href,omitempty"`
	CatalogItemHref string   `json:"catalog_item_href,omitempty"`
	RasterHref      string   `json:"raster_href,omitempty"`
}

// HasRaster reports whether the scene can be fed to the conversion engine.
func (s SceneCandidate) HasRaster() bool {
	return s.RasterHref != ""
}

// SourceHref is the best link to the scene's data, falling back to its catalog item.
func (s SceneCandidate) SourceHref() string {
	if s.DataHref != "" {
		return s.DataHref
	}
	return s.CatalogItemHref
}

type rankKey struct {
	valid bool
	at    time.Time
	cloud float64
}

func (s SceneCandidate) rankKey(now time.Time) rankKey {
	cloud := cloudCoverUnknown
	if s.CloudCover != nil {
		cloud = *s.CloudCover
	}
	at, err := ParseTimestamp(s.Datetime)
	if err != nil {
		return rankKey{at: now, cloud: cloudCoverUnknown}
	}
	return rankKey{valid: true, at: at, cloud: cloud}
}

// RankScenes returns a copy of scenes ordered best first: valid capture times
// before invalid ones, then newest, then lowest cloud cover. Ties keep their
// input order.
func RankScenes(scenes []SceneCandidate) []SceneCandidate {
	now := Now().UTC()
	keys := make([]rankKey, len(scenes))
	idx := make([]int, len(scenes))
	for i, s := range scenes {
		idx[i] = i
		keys[i] = s.rankKey(now)
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		ka, kb := keys[a], keys[b]
		switch {
		case ka.valid != kb.valid:
			if ka.valid {
				return -1
			}
			return 1
		case !ka.at.Equal(kb.at):
			if ka.at.After(kb.at) {
				return -1
			}
			return 1
		case ka.cloud < kb.cloud:
			return -1
		case ka.cloud > kb.cloud:
			return 1
		}
		return 0
	})

	ranked := make([]SceneCandidate, len(scenes))
	for i, j := range idx {
		ranked[i] = scenes[j]
	}
	return ranked
}

// SelectScene picks the best-ranked scene that carries a raster asset.
func SelectScene(scenes []SceneCandidate) (SceneCandidate, error) {
	for _, s := range RankScenes(scenes) {
		if s.HasRaster() {
			return s, nil
		}
	}
	return SceneCandidate{}, ErrNoUsableScene
}
