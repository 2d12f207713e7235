// Package feeds pulls RSS and Atom feeds listed in feeds.yaml and turns their
// items into articles.
package feeds

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultPopularity = 0.5

// Config is the feeds.yaml document:
//
//	feeds:
//	  - name: reuters-world
//	    source: reuters
//	    url: https://example.com/world.rss
//	    popularity: 0.8
type Config struct {
	Feeds []Feed `yaml:"feeds"`
}

// Feed is one subscribed feed.
type Feed struct {
	Name       string   `yaml:"name"`
	Source     string   `yaml:"source"`
	URL        string   `yaml:"url"`
	Popularity *float64 `yaml:"popularity"`
	Disabled   bool     `yaml:"disabled"`
}

// SourceName returns the source tag items from this feed carry.
func (f Feed) SourceName() string {
	if s := strings.TrimSpace(f.Source); s != "" {
		return strings.ToLower(s)
	}
	return strings.ToLower(strings.TrimSpace(f.Name))
}

// BasePopularity returns the configured popularity or the default.
func (f Feed) BasePopularity() float64 {
	if f.Popularity == nil {
		return defaultPopularity
	}
	return *f.Popularity
}

// LoadConfig reads and validates a feeds.yaml file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("open feeds config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode feeds config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feeds config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}
	seen := make(map[string]struct{}, len(c.Feeds))
	for i, feed := range c.Feeds {
		name := strings.TrimSpace(feed.Name)
		if name == "" {
			return fmt.Errorf("feeds[%d]: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("feeds[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}

		u, err := url.Parse(strings.TrimSpace(feed.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("feeds[%d] %s: url must be an absolute http(s) URL", i, name)
		}
		if p := feed.BasePopularity(); p < 0 || p > 1 {
			return fmt.Errorf("feeds[%d] %s: popularity must be within [0,1]", i, name)
		}
	}
	return nil
}

// Enabled returns the feeds not marked disabled.
func (c *Config) Enabled() []Feed {
	out := make([]Feed, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		if !f.Disabled {
			out = append(out, f)
		}
	}
	return out
}
