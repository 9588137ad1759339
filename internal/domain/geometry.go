package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// ErrGeometry is returned when an area of interest is absent or not valid GeoJSON.
var ErrGeometry = errors.New("invalid area of interest")

// BoundingBox returns [minX, minY, maxX, maxY] for a GeoJSON geometry mapping.
func BoundingBox(aoi map[string]any) ([]float64, error) {
	g, err := decodeGeometry(aoi)
	if err != nil {
		return nil, err
	}
	b := g.Bound()
	return []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}, nil
}

// AreaKm2 returns the geodesic area of the geometry in square kilometres,
// rounded to two decimals.
func AreaKm2(aoi map[string]any) (float64, error) {
	g, err := decodeGeometry(aoi)
	if err != nil {
		return 0, err
	}
	km2 := geo.Area(g) / 1e6
	return math.Round(km2*100) / 100, nil
}

func decodeGeometry(aoi map[string]any) (orb.Geometry, error) {
	if len(aoi) == 0 {
		return nil, fmt.Errorf("%w: missing", ErrGeometry)
	}
	if t, _ := aoi["type"].(string); t == "Feature" {
		inner, ok := aoi["geometry"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: feature has no geometry", ErrGeometry)
		}
		aoi = inner
	}
	if _, ok := aoi["type"].(string); !ok {
		return nil, fmt.Errorf("%w: missing type", ErrGeometry)
	}

	data, err := json.Marshal(aoi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	parsed, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	g := parsed.Geometry()
	if g == nil || g.Bound().IsEmpty() {
		return nil, fmt.Errorf("%w: no coordinates", ErrGeometry)
	}
	return g, nil
}
