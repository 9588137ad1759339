package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

var defaultConverterGroups = []string{
	"/measurements/reflectance/r10m",
	"/measurements/reflectance/r20m",
	"/measurements/reflectance/r60m",
	"/quality/l2a_quicklook/r10m",
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers      []string
	AlertTopic        string
	AlertRoutingKey   string
	SubscriberGroupID string
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration

	// Object storage (MinIO or any S3-compatible endpoint).
	S3Endpoint        string
	S3AccessKey       string
	S3SecretKey       string
	S3Region          string
	AlertsBucket      string
	GeoZarrBucket     string
	STACBucket        string
	STACPublicBaseURL string

	// Conversion engine.
	RealConversionEnabled   bool
	ConverterCommand        string
	ConverterOutputPrefix   string
	ConverterCollection     string
	ConverterGroups         []string
	ConverterSpatialChunk   int
	ConverterMinDimension   int
	ConverterTileWidth      int
	ConverterEnableSharding bool
	ConverterTimeout        time.Duration

	// Scene catalog search.
	STACAPIURL       string
	STACCollection   string
	STACCloudCover   int
	STACResultsLimit int
	STACDaysLookback int
	STACTimeout      time.Duration
	SourceS3Endpoint string
	SourceS3Region   string
	ZarrAssetKeys    []string

	// Tile server links; empty base disables them.
	TiTilerBaseURL       string
	TiTilerTileMatrixSet string

	// Feed listener.
	AlertFeedSpecs    []string
	AlertFeedsFile    string
	ListenerSchedule  string
	ListenerStatePath string
	FeedTimeout       time.Duration

	// Workflow submission.
	ArgoBaseURL           string
	ArgoNamespace         string
	ArgoWorkflowTemplate  string
	ArgoToken             string
	WorkflowSubmitTimeout time.Duration
	WorkflowStatePath     string

	StateBackend string
	OTLPEndpoint string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		AlertTopic:        sharedcfg.EnvOrDefault("ALERT_TOPIC", "autopilot.alerts"),
		AlertRoutingKey:   sharedcfg.EnvOrDefault("ALERT_ROUTING_KEY", "alerts.disaster.flood"),
		SubscriberGroupID: sharedcfg.EnvOrDefault("SUBSCRIBER_GROUP_ID", "alertzarr.workflow"),
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,

		S3Endpoint:        p.absURL("S3_ENDPOINT", "http://localhost:9000", true),
		S3AccessKey:       sharedcfg.EnvOrDefault("S3_ACCESS_KEY", "autopilot"),
		S3SecretKey:       sharedcfg.EnvOrDefault("S3_SECRET_KEY", "autopilot123"),
		S3Region:          sharedcfg.EnvOrDefault("S3_REGION", "us-east-1"),
		AlertsBucket:      sharedcfg.EnvOrDefault("ALERTS_BUCKET", "autopilot-alerts"),
		GeoZarrBucket:     sharedcfg.EnvOrDefault("GEOZARR_BUCKET", "autopilot-geozarr"),
		STACBucket:        sharedcfg.EnvOrDefault("STAC_BUCKET", "autopilot-stac"),
		STACPublicBaseURL: p.absURL("STAC_PUBLIC_BASE_URL", "", false),

		RealConversionEnabled:   p.boolean("REAL_CONVERSION_ENABLED", false),
		ConverterCommand:        sharedcfg.EnvOrDefault("CONVERTER_COMMAND", "eopf-geozarr"),
		ConverterOutputPrefix:   sharedcfg.EnvOrDefault("CONVERTER_OUTPUT_PREFIX", "alerts"),
		ConverterCollection:     sharedcfg.EnvOrDefault("CONVERTER_COLLECTION", "sentinel-2-l2a"),
		ConverterGroups:         listOrDefault("CONVERTER_GROUPS", defaultConverterGroups),
		ConverterSpatialChunk:   p.positiveInt("CONVERTER_SPATIAL_CHUNK", 1024),
		ConverterMinDimension:   p.positiveInt("CONVERTER_MIN_DIMENSION", 256),
		ConverterTileWidth:      p.positiveInt("CONVERTER_TILE_WIDTH", 256),
		ConverterEnableSharding: p.boolean("CONVERTER_ENABLE_SHARDING", true),
		ConverterTimeout:        p.duration("CONVERTER_TIMEOUT", 2*time.Hour),

		STACAPIURL:       p.absURL("STAC_API_URL", "https://stac.core.eopf.eodc.eu", true),
		STACCollection:   sharedcfg.EnvOrDefault("STAC_COLLECTION", "sentinel-2-l2a"),
		STACCloudCover:   p.positiveInt("STAC_CLOUD_COVER", 40),
		STACResultsLimit: p.positiveInt("STAC_RESULTS_LIMIT", 3),
		STACDaysLookback: p.positiveInt("STAC_DAYS_LOOKBACK", 10),
		STACTimeout:      p.duration("STAC_TIMEOUT", 30*time.Second),
		SourceS3Endpoint: sharedcfg.EnvOrDefault("SOURCE_S3_ENDPOINT", "https://s3.de.io.cloud.ovh.net"),
		SourceS3Region:   sharedcfg.EnvOrDefault("SOURCE_S3_REGION", "gra"),
		ZarrAssetKeys:    listOrDefault("ZARR_ASSET_KEYS", []string{"product", "zarr"}),

		TiTilerBaseURL:       p.absURL("TITILER_BASE_URL", "", false),
		TiTilerTileMatrixSet: sharedcfg.EnvOrDefault("TITILER_TILE_MATRIX_SET", "WebMercatorQuad"),

		AlertFeedSpecs:    listOrDefault("ALERT_FEED_SPECS", nil),
		AlertFeedsFile:    os.Getenv("ALERT_FEEDS_FILE"),
		ListenerSchedule:  sharedcfg.EnvOrDefault("LISTENER_SCHEDULE", "@every 5m"),
		ListenerStatePath: sharedcfg.EnvOrDefault("LISTENER_STATE_PATH", "local/state/listener_state.json"),
		FeedTimeout:       p.duration("FEED_TIMEOUT", 15*time.Second),

		ArgoBaseURL:           p.absURL("ARGO_BASE_URL", "", false),
		ArgoNamespace:         sharedcfg.EnvOrDefault("ARGO_NAMESPACE", "argo"),
		ArgoWorkflowTemplate:  sharedcfg.EnvOrDefault("ARGO_WORKFLOW_TEMPLATE", "alertzarr-pipeline"),
		ArgoToken:             os.Getenv("ARGO_TOKEN"),
		WorkflowSubmitTimeout: p.duration("WORKFLOW_SUBMIT_TIMEOUT", 30*time.Second),
		WorkflowStatePath:     sharedcfg.EnvOrDefault("WORKFLOW_STATE_PATH", "local/state/workflow_state.json"),

		StateBackend: strings.ToLower(sharedcfg.EnvOrDefault("STATE_BACKEND", "json")),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.AlertTopic == "" {
		return nil, errors.New("ALERT_TOPIC is required")
	}
	if cfg.STACCloudCover > 100 {
		return nil, errors.New("invalid STAC_CLOUD_COVER: must be at most 100")
	}
	switch cfg.StateBackend {
	case "json", "sqlite":
	default:
		return nil, fmt.Errorf("invalid STATE_BACKEND %q: want json or sqlite", cfg.StateBackend)
	}

	return cfg, nil
}

// ValidateListener checks the settings only the feed listener needs.
func (c *Config) ValidateListener() error {
	if len(c.AlertFeedSpecs) == 0 && c.AlertFeedsFile == "" {
		return errors.New("configure ALERT_FEED_SPECS or ALERT_FEEDS_FILE before running the listener")
	}
	if c.ListenerSchedule == "" {
		return errors.New("LISTENER_SCHEDULE is required")
	}
	return nil
}

// ValidateSubscriber checks the settings only the workflow subscriber needs.
func (c *Config) ValidateSubscriber() error {
	if c.ArgoBaseURL == "" {
		return errors.New("configure ARGO_BASE_URL to run the workflow subscriber")
	}
	if c.SubscriberGroupID == "" {
		return errors.New("SUBSCRIBER_GROUP_ID is required")
	}
	return nil
}

// FeedEntry is one feed declared in the ALERT_FEEDS_FILE document.
type FeedEntry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type feedsFile struct {
	Feeds []FeedEntry `yaml:"feeds"`
}

// LoadFeedsFile reads a YAML document of the form `feeds: [{name, url}]`.
func LoadFeedsFile(path string) ([]FeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	var doc feedsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}
	for i, f := range doc.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return nil, fmt.Errorf("parse feeds file %s: feed %d has no url", path, i+1)
		}
	}
	return doc.Feeds, nil
}

// parser collects the first parse error so Load can report it by variable name.
type parser struct {
	err error
}

func (p *parser) fail(key, value, reason string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %s", key, value, reason)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, s, "must be a positive duration")
		return def
	}
	return d
}

func (p *parser) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		p.fail(key, s, "must be a positive integer")
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s, "must be true or false")
		return def
	}
	return b
}

// absURL validates an absolute http(s) URL. Optional URLs may be left unset.
func (p *parser) absURL(key, def string, required bool) string {
	s := strings.TrimSpace(sharedcfg.EnvOrDefault(key, def))
	if s == "" {
		if required {
			p.fail(key, s, "is required")
		}
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		p.fail(key, s, "must be an absolute http(s) URL")
		return ""
	}
	return strings.TrimRight(s, "/")
}

func listOrDefault(key string, def []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
