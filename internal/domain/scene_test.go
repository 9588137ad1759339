package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloud(v float64) *float64 { return &v }

func sceneIDs(scenes []SceneCandidate) []string {
	ids := make([]string, len(scenes))
	for i, s := range scenes {
		ids[i] = s.ID
	}
	return ids
}

func TestRankScenes(t *testing.T) {
	t.Run("newest first regardless of cloud cover", func(t *testing.T) {
		scenes := []SceneCandidate{
			{ID: "t1", Datetime: "2025-01-02T00:00:00Z", CloudCover: cloud(5)},
			{ID: "t0", Datetime: "2025-01-03T00:00:00Z", CloudCover: cloud(10)},
			{ID: "t2", Datetime: "2025-01-01T00:00:00Z", CloudCover: cloud(90)},
		}
		assert.Equal(t, []string{"t0", "t1", "t2"}, sceneIDs(RankScenes(scenes)))
	})

	t.Run("equal datetimes prefer lower cloud cover", func(t *testing.T) {
		scenes := []SceneCandidate{
			{ID: "cloudy", Datetime: "2025-01-01T00:00:00Z", CloudCover: cloud(60)},
			{ID: "unknown", Datetime: "2025-01-01T00:00:00Z"},
			{ID: "clear", Datetime: "2025-01-01T00:00:00Z", CloudCover: cloud(3)},
		}
		assert.Equal(t, []string{"clear", "cloudy", "unknown"}, sceneIDs(RankScenes(scenes)))
	})

	t.Run("invalid datetime never outranks a valid one", func(t *testing.T) {
		SetClock(clockwork.NewFakeClockAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
		defer SetClock(nil)

		scenes := []SceneCandidate{
			{ID: "bad", Datetime: "yesterday", CloudCover: cloud(0)},
			{ID: "old", Datetime: "2019-01-01T00:00:00Z", CloudCover: cloud(99)},
		}
		assert.Equal(t, []string{"old", "bad"}, sceneIDs(RankScenes(scenes)))
	})

	t.Run("ties keep input order", func(t *testing.T) {
		scenes := []SceneCandidate{
			{ID: "a", Datetime: "2025-01-01T00:00:00Z", CloudCover: cloud(10)},
			{ID: "b", Datetime: "2025-01-01T00:00:00Z", CloudCover: cloud(10)},
			{ID: "c", Datetime: "2025-01-01T00:00:00Z", CloudCover: cloud(10)},
		}
		assert.Equal(t, []string{"a", "b", "c"}, sceneIDs(RankScenes(scenes)))
	})

	t.Run("does not reorder input", func(t *testing.T) {
		scenes := []SceneCandidate{
			{ID: "old", Datetime: "2024-01-01T00:00:00Z"},
			{ID: "new", Datetime: "2025-01-01T00:00:00Z"},
		}
		RankScenes(scenes)
		assert.Equal(t, "old", scenes[0].ID)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, RankScenes(nil))
	})
}

func TestSelectScene(t *testing.T) {
	t.Run("picks newest scene with raster", func(t *testing.T) {
		scenes := []SceneCandidate{
			{ID: "t1", Datetime: "2025-01-02T00:00:00Z", CloudCover: cloud(5), RasterHref: "s3://b/t1.zarr"},
			{ID: "t0", Datetime: "2025-01-03T00:00:00Z", CloudCover: cloud(10), RasterHref: "s3://b/t0.zarr"},
			{ID: "t2", Datetime: "2025-01-01T00:00:00Z", CloudCover: cloud(90), RasterHref: "s3://b/t2.zarr"},
		}
		s, err := SelectScene(scenes)
		require.NoError(t, err)
		assert.Equal(t, "t0", s.ID)
	})

	t.Run("skips scenes without raster", func(t *testing.T) {
		scenes := []SceneCandidate{
			{ID: "newest", Datetime: "2025-01-03T00:00:00Z"},
			{ID: "usable", Datetime: "2025-01-01T00:00:00Z", RasterHref: "s3://b/u.zarr"},
		}
		s, err := SelectScene(scenes)
		require.NoError(t, err)
		assert.Equal(t, "usable", s.ID)
	})

	t.Run("no usable scene", func(t *testing.T) {
		_, err := SelectScene([]SceneCandidate{{ID: "x", Datetime: "2025-01-01T00:00:00Z"}})
		require.ErrorIs(t, err, ErrNoUsableScene)

		_, err = SelectScene(nil)
		require.ErrorIs(t, err, ErrNoUsableScene)
	})
}

func TestSceneSourceHref(t *testing.T) {
	assert.Equal(t, "data", SceneCandidate{DataHref: "data", CatalogItemHref: "item"}.SourceHref())
	assert.Equal(t, "item", SceneCandidate{CatalogItemHref: "item"}.SourceHref())
}
