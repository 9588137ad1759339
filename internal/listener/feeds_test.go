package listener

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeedSpec(t *testing.T) {
	tests := []struct {
		raw  string
		want FeedSpec
	}{
		{"noaa=https://api.weather.gov/alerts/active", FeedSpec{"noaa", "https://api.weather.gov/alerts/active"}},
		{"gdacs:https://gdacs.example/feed.json", FeedSpec{"gdacs", "https://gdacs.example/feed.json"}},
		{"https://feeds.example/alerts.json", FeedSpec{"feed-3", "https://feeds.example/alerts.json"}},
		{"https://feeds.example/alerts?area=TX", FeedSpec{"feed-3", "https://feeds.example/alerts?area=TX"}},
		{" =https://feeds.example/a ", FeedSpec{"feed-3", "https://feeds.example/a"}},
		{"local:/tmp/feed.json", FeedSpec{"local", "/tmp/feed.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFeedSpec(tt.raw, 3))
		})
	}
}

func TestResolveFeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`feeds:
  - name: gdacs
    url: https://gdacs.example/feed.json
  - url: https://other.example/alerts.json
`), 0o644))

	cfg := &config.Config{
		AlertFeedSpecs: []string{"noaa=https://api.weather.gov/alerts/active"},
		AlertFeedsFile: path,
	}

	specs, err := ResolveFeeds(cfg)
	require.NoError(t, err)
	assert.Equal(t, []FeedSpec{
		{"noaa", "https://api.weather.gov/alerts/active"},
		{"gdacs", "https://gdacs.example/feed.json"},
		{"feed-3", "https://other.example/alerts.json"},
	}, specs)
}

func TestResolveFeeds_Errors(t *testing.T) {
	_, err := ResolveFeeds(&config.Config{})
	require.Error(t, err)

	_, err = ResolveFeeds(&config.Config{AlertFeedSpecs: []string{"noaa="}})
	require.Error(t, err)

	_, err = ResolveFeeds(&config.Config{AlertFeedsFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}
