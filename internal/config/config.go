package config

import (
	"fmt"
	"net/url"

	"github.com/webharvest/harvester/pkg/models"
)

// Config holds all application configuration.
type Config struct {
	Scraping Scraping `mapstructure:"scraping"`
	Scraper  Delay    `mapstructure:"scraper"`
	AI       AI       `mapstructure:"ai"`
	Cache    Cache    `mapstructure:"cache"`
	Database Database `mapstructure:"database"`
	API      API      `mapstructure:"api"`
	Sources  []Source `mapstructure:"sources"`
}

// Scraping holds fetch-level configuration.
type Scraping struct {
	RateLimitMS     int    `mapstructure:"rate_limit_ms"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxRetries      int    `mapstructure:"max_retries"`
	UserAgent       string `mapstructure:"user_agent"`
	FollowRobotsTxt bool   `mapstructure:"follow_robots_txt"`
	Parallelism     int    `mapstructure:"parallelism"` // 0 = min(len(sources), 8)
}

// Delay holds the adaptive delay controller configuration.
type Delay struct {
	Mode       string  `mapstructure:"mode"` // "adaptive" or "fixed"
	MinDelayMS int     `mapstructure:"min_delay_ms"`
	MaxDelayMS int     `mapstructure:"max_delay_ms"`
	SampleSize int     `mapstructure:"sample_size"`
	Multiplier float64 `mapstructure:"multiplier"`
}

// AI holds the model-driven refinement configuration. The API key comes
// from the environment; when empty every AI call site degrades to its
// rule-based path.
type AI struct {
	Enabled                 bool   `mapstructure:"enabled"`
	APIKey                  string `mapstructure:"api_key"`
	BaseURL                 string `mapstructure:"base_url"`
	Model                   string `mapstructure:"model"`
	EnableSelectorAssistant bool   `mapstructure:"enable_selector_assistant"`
	EnableNormalizer        bool   `mapstructure:"enable_normalizer"`
	NormalizerBatchSize     int    `mapstructure:"normalizer_batch_size"`
	SelectorsDir            string `mapstructure:"selectors_dir"`
}

// Cache holds the response body cache configuration.
type Cache struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxEntries int  `mapstructure:"max_entries"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

// Database holds the durable store configuration. An empty URL runs the
// repository mirror-only.
type Database struct {
	URL string `mapstructure:"url"`
}

// API holds the HTTP API configuration.
type API struct {
	Addr string `mapstructure:"addr"`
}

// Source defines one source to scrape.
type Source struct {
	Name        string            `mapstructure:"name"`
	URL         string            `mapstructure:"url"`
	Kind        string            `mapstructure:"kind"`
	RateLimitMS int               `mapstructure:"rate_limit_ms"`
	Selectors   map[string]string `mapstructure:"selectors"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Scraping: Scraping{
			RateLimitMS:     1000,
			TimeoutSeconds:  30,
			MaxRetries:      3,
			UserAgent:       "harvester/1.0",
			FollowRobotsTxt: true,
		},
		Scraper: Delay{
			Mode:       "adaptive",
			MinDelayMS: 200,
			MaxDelayMS: 2500,
			SampleSize: 10,
			Multiplier: 1.2, // 20% slower than the observed average
		},
		AI: AI{
			Enabled:                 false,
			BaseURL:                 "https://api.deepseek.com/v1",
			Model:                   "deepseek-chat",
			EnableSelectorAssistant: true,
			EnableNormalizer:        false,
			NormalizerBatchSize:     50,
			SelectorsDir:            "selectors",
		},
		Cache: Cache{
			Enabled:    true,
			MaxEntries: 1000,
			TTLSeconds: 3600,
		},
		API: API{
			Addr: ":3000",
		},
	}
}

// SourceSpecs converts the configured sources into immutable specs.
func (c Config) SourceSpecs() []models.SourceSpec {
	specs := make([]models.SourceSpec, 0, len(c.Sources))
	for _, s := range c.Sources {
		specs = append(specs, models.SourceSpec{
			Name:            s.Name,
			URL:             s.URL,
			Kind:            models.SourceKind(s.Kind),
			Selectors:       s.Selectors,
			RateLimitHintMS: s.RateLimitMS,
		})
	}
	return specs
}

// Validate rejects a malformed source list. Called once at startup; a
// failure here is fatal.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("config: source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		u, err := url.Parse(s.URL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("config: source %q: invalid url %q", s.Name, s.URL)
		}
		if !models.SourceKind(s.Kind).Valid() {
			return fmt.Errorf("config: source %q: unknown kind %q", s.Name, s.Kind)
		}
	}
	if c.Scraper.Multiplier < 1 {
		return fmt.Errorf("config: scraper.multiplier must be >= 1, got %g", c.Scraper.Multiplier)
	}
	if c.Scraper.MinDelayMS > c.Scraper.MaxDelayMS {
		return fmt.Errorf("config: scraper.min_delay_ms %d exceeds max_delay_ms %d",
			c.Scraper.MinDelayMS, c.Scraper.MaxDelayMS)
	}
	return nil
}
