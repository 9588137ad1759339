package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "autopilot.alerts", cfg.AlertTopic)
	assert.Equal(t, "alerts.disaster.flood", cfg.AlertRoutingKey)
	assert.Equal(t, "alertzarr.workflow", cfg.SubscriberGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "autopilot-geozarr", cfg.GeoZarrBucket)
	assert.Equal(t, "autopilot-stac", cfg.STACBucket)
	assert.Empty(t, cfg.STACPublicBaseURL)

	assert.False(t, cfg.RealConversionEnabled)
	assert.Equal(t, "alerts", cfg.ConverterOutputPrefix)
	assert.Equal(t, "sentinel-2-l2a", cfg.ConverterCollection)
	assert.Len(t, cfg.ConverterGroups, 4)
	assert.Equal(t, 1024, cfg.ConverterSpatialChunk)
	assert.Equal(t, 256, cfg.ConverterMinDimension)
	assert.Equal(t, 256, cfg.ConverterTileWidth)
	assert.True(t, cfg.ConverterEnableSharding)
	assert.Equal(t, 2*time.Hour, cfg.ConverterTimeout)

	assert.Equal(t, 40, cfg.STACCloudCover)
	assert.Equal(t, 3, cfg.STACResultsLimit)
	assert.Equal(t, 10, cfg.STACDaysLookback)
	assert.Equal(t, []string{"product", "zarr"}, cfg.ZarrAssetKeys)
	assert.Empty(t, cfg.TiTilerBaseURL)
	assert.Equal(t, "WebMercatorQuad", cfg.TiTilerTileMatrixSet)

	assert.Empty(t, cfg.AlertFeedSpecs)
	assert.Equal(t, "@every 5m", cfg.ListenerSchedule)
	assert.Equal(t, 15*time.Second, cfg.FeedTimeout)
	assert.Equal(t, "argo", cfg.ArgoNamespace)
	assert.Equal(t, "alertzarr-pipeline", cfg.ArgoWorkflowTemplate)
	assert.Equal(t, 30*time.Second, cfg.WorkflowSubmitTimeout)
	assert.Equal(t, "json", cfg.StateBackend)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("ALERT_TOPIC", "alerts")
	t.Setenv("ALERT_ROUTING_KEY", "alerts.disaster.wildfire")
	t.Setenv("REAL_CONVERSION_ENABLED", "true")
	t.Setenv("CONVERTER_GROUPS", "/a, /b")
	t.Setenv("CONVERTER_ENABLE_SHARDING", "false")
	t.Setenv("STAC_RESULTS_LIMIT", "7")
	t.Setenv("TITILER_BASE_URL", "https://tiles.example/")
	t.Setenv("ALERT_FEED_SPECS", "gdacs=https://gdacs.example/feed, https://other.example")
	t.Setenv("ARGO_BASE_URL", "https://argo.example")
	t.Setenv("STATE_BACKEND", "SQLite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "alerts", cfg.AlertTopic)
	assert.Equal(t, "alerts.disaster.wildfire", cfg.AlertRoutingKey)
	assert.True(t, cfg.RealConversionEnabled)
	assert.Equal(t, []string{"/a", "/b"}, cfg.ConverterGroups)
	assert.False(t, cfg.ConverterEnableSharding)
	assert.Equal(t, 7, cfg.STACResultsLimit)
	assert.Equal(t, "https://tiles.example", cfg.TiTilerBaseURL)
	assert.Equal(t, []string{"gdacs=https://gdacs.example/feed", "https://other.example"}, cfg.AlertFeedSpecs)
	assert.Equal(t, "https://argo.example", cfg.ArgoBaseURL)
	assert.Equal(t, "sqlite", cfg.StateBackend)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"CONVERTER_TIMEOUT", "soon"},
		{"STAC_TIMEOUT", "0s"},
		{"CONVERTER_SPATIAL_CHUNK", "zero"},
		{"STAC_RESULTS_LIMIT", "-3"},
		{"STAC_CLOUD_COVER", "120"},
		{"REAL_CONVERSION_ENABLED", "maybe"},
		{"TITILER_BASE_URL", "tiles.example"},
		{"STAC_PUBLIC_BASE_URL", "ftp://files.example"},
		{"ARGO_BASE_URL", "://bad"},
		{"STATE_BACKEND", "redis"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidateListener(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.ValidateListener())

	cfg.AlertFeedsFile = "feeds.yaml"
	require.NoError(t, cfg.ValidateListener())
}

func TestValidateSubscriber(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	err = cfg.ValidateSubscriber()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARGO_BASE_URL")

	cfg.ArgoBaseURL = "https://argo.example"
	require.NoError(t, cfg.ValidateSubscriber())
}

func TestLoadFeedsFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid document", func(t *testing.T) {
		path := filepath.Join(dir, "feeds.yaml")
		doc := "feeds:\n  - name: gdacs\n    url: https://gdacs.example/rss\n  - url: https://ems.example/feed\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		feeds, err := LoadFeedsFile(path)
		require.NoError(t, err)
		assert.Equal(t, []FeedEntry{
			{Name: "gdacs", URL: "https://gdacs.example/rss"},
			{URL: "https://ems.example/feed"},
		}, feeds)
	})

	t.Run("feed without url", func(t *testing.T) {
		path := filepath.Join(dir, "nourl.yaml")
		require.NoError(t, os.WriteFile(path, []byte("feeds:\n  - name: broken\n"), 0o600))

		_, err := LoadFeedsFile(path)
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("feeds: [unterminated"), 0o600))

		_, err := LoadFeedsFile(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFeedsFile(filepath.Join(dir, "absent.yaml"))
		require.Error(t, err)
	})
}
