package listener

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/alertzarr/internal/config"
)

// FeedSpec names one alert feed URL.
type FeedSpec struct {
	Name string
	URL  string
}

// ParseFeedSpec reads "name=url", "name:url" or a bare url. Bare urls, and
// entries with an empty name, are named feed-{index}.
func ParseFeedSpec(raw string, index int) FeedSpec {
	raw = strings.TrimSpace(raw)
	name, url := "", raw
	if i := strings.IndexAny(raw, "=:"); i >= 0 && !strings.HasPrefix(raw[i:], "://") {
		name, url = raw[:i], raw[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("feed-%d", index)
	}
	return FeedSpec{Name: name, URL: strings.TrimSpace(url)}
}

// ResolveFeeds combines ALERT_FEED_SPECS with the entries of ALERT_FEEDS_FILE.
// Indexes used for default names are 1-based and run across both sources.
func ResolveFeeds(cfg *config.Config) ([]FeedSpec, error) {
	var specs []FeedSpec
	for _, raw := range cfg.AlertFeedSpecs {
		spec := ParseFeedSpec(raw, len(specs)+1)
		if spec.URL == "" {
			return nil, fmt.Errorf("feed spec %q has no url", raw)
		}
		specs = append(specs, spec)
	}

	if cfg.AlertFeedsFile != "" {
		entries, err := config.LoadFeedsFile(cfg.AlertFeedsFile)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name := strings.TrimSpace(e.Name)
			if name == "" {
				name = fmt.Sprintf("feed-%d", len(specs)+1)
			}
			specs = append(specs, FeedSpec{Name: name, URL: strings.TrimSpace(e.URL)})
		}
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no alert feeds configured")
	}
	return specs, nil
}
