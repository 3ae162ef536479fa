package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webharvest/harvester/internal/ai"
	"github.com/webharvest/harvester/internal/config"
	"github.com/webharvest/harvester/internal/delay"
	"github.com/webharvest/harvester/internal/engine"
	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/internal/process"
	"github.com/webharvest/harvester/internal/store"
)

// fetcherConfig maps scraping settings onto the fetcher. Retry backoff
// starts at the pacing floor so the first retry never hits a host faster
// than a paced request would.
func fetcherConfig(cfg config.Config) fetch.Config {
	return fetch.Config{
		Timeout:    time.Duration(cfg.Scraping.TimeoutSeconds) * time.Second,
		UserAgent:  cfg.Scraping.UserAgent,
		MaxRetries: cfg.Scraping.MaxRetries,
		RetryBase:  time.Duration(cfg.Scraper.MinDelayMS) * time.Millisecond,
	}
}

// buildEngine wires the full stack from configuration. The returned
// cleanup closes the durable store.
func buildEngine(ctx context.Context, cfg config.Config) (*engine.Engine, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if len(cfg.Sources) == 0 {
		return nil, nil, fmt.Errorf("no sources configured")
	}

	fetcher := fetch.New(fetcherConfig(cfg))

	var robots engine.RobotsPolicy
	if cfg.Scraping.FollowRobotsTxt {
		robots = fetch.NewRobotsGate(cfg.Scraping.UserAgent,
			time.Duration(cfg.Scraping.TimeoutSeconds)*time.Second)
	}

	var cache *fetch.Cache
	if cfg.Cache.Enabled {
		cache = fetch.NewCache(cfg.Cache.MaxEntries,
			time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	// An unreachable database degrades to mirror-only operation; reads
	// and writes keep working for the process lifetime.
	var primary store.Repository
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgres(ctx, cfg.Database.URL)
		if err != nil {
			slog.Warn("database unavailable, running mirror-only", "error", err)
		} else {
			primary = pg
		}
	}
	st := store.New(primary, store.NewMirror())

	var assistant engine.SelectorResolver
	normCfg := process.Config{BatchSize: cfg.AI.NormalizerBatchSize}
	if cfg.AI.Enabled {
		client := ai.New(ai.Config{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
		})
		if !client.Enabled() {
			slog.Warn("ai enabled but no api key set, degrading to rule-based paths")
		}
		if cfg.AI.EnableSelectorAssistant && client.Enabled() {
			assistant = ai.NewSelectorAssistant(client, fetcher, cfg.AI.SelectorsDir)
		}
		if cfg.AI.EnableNormalizer && client.Enabled() {
			normCfg.Client = client
		}
	}

	dcfg := delay.Config{
		Mode:       delay.Mode(cfg.Scraper.Mode),
		MinDelay:   time.Duration(cfg.Scraper.MinDelayMS) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.Scraper.MaxDelayMS) * time.Millisecond,
		SampleSize: cfg.Scraper.SampleSize,
		Multiplier: cfg.Scraper.Multiplier,
	}
	// In fixed mode the global rate limit is the delay.
	if dcfg.Mode == delay.ModeFixed && cfg.Scraping.RateLimitMS > 0 {
		dcfg.MinDelay = time.Duration(cfg.Scraping.RateLimitMS) * time.Millisecond
	}

	e := engine.New(
		engine.Config{Parallelism: cfg.Scraping.Parallelism, Delay: dcfg},
		cfg.SourceSpecs(), fetcher, robots, cache, assistant,
		process.NewPipeline(process.NewNormalizer(normCfg)), st)

	cleanup := func() {
		if err := st.Close(); err != nil {
			slog.Warn("store close failed", "error", err)
		}
	}
	return e, cleanup, nil
}
