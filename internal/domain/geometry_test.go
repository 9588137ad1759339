package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBox(t *testing.T) {
	t.Run("polygon", func(t *testing.T) {
		bbox, err := BoundingBox(testPolygon())
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 1, 1}, bbox)
	})

	t.Run("point", func(t *testing.T) {
		bbox, err := BoundingBox(map[string]any{"type": "Point", "coordinates": []any{12.5, 41.9}})
		require.NoError(t, err)
		assert.Equal(t, []float64{12.5, 41.9, 12.5, 41.9}, bbox)
	})

	t.Run("feature wrapper", func(t *testing.T) {
		bbox, err := BoundingBox(map[string]any{"type": "Feature", "geometry": testPolygon()})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 1, 1}, bbox)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		cases := map[string]map[string]any{
			"empty":          {},
			"missing type":   {"coordinates": []any{1.0, 2.0}},
			"unknown type":   {"type": "Blob", "coordinates": []any{1.0, 2.0}},
			"no coordinates": {"type": "Polygon", "coordinates": []any{}},
		}
		for name, aoi := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := BoundingBox(aoi)
				require.ErrorIs(t, err, ErrGeometry)
			})
		}
	})
}

func TestAreaKm2(t *testing.T) {
	area, err := AreaKm2(testPolygon())
	require.NoError(t, err)
	// A one-degree cell at the equator is roughly 12,300 km².
	assert.InDelta(t, 12300, area, 200)

	_, err = AreaKm2(map[string]any{})
	require.ErrorIs(t, err, ErrGeometry)
}
