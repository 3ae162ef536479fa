// Package engine orchestrates a harvest run: per-source pacing, robots
// policy, fetch, extraction, the processing pipeline, and persistence.
// One failing source never takes down the run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webharvest/harvester/internal/delay"
	"github.com/webharvest/harvester/internal/extract"
	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/internal/process"
	"github.com/webharvest/harvester/internal/store"
	"github.com/webharvest/harvester/pkg/models"
)

// ErrNoSelectors marks a source that cannot be scraped: it declares no
// selectors, has no built-in defaults for its kind, and selector
// discovery is unavailable or failed.
var ErrNoSelectors = errors.New("engine: no selectors for source")

// ErrUnknownSource marks a RunSource call for a name not configured.
var ErrUnknownSource = errors.New("engine: unknown source")

// defaultMaxParallel bounds concurrent sources when no explicit
// parallelism is configured.
const defaultMaxParallel = 8

// PageGetter is the slice of the fetcher the engine needs.
type PageGetter interface {
	Get(ctx context.Context, url string, headers map[string]string) (fetch.Body, error)
}

// RobotsPolicy answers whether a URL may be fetched.
type RobotsPolicy interface {
	Allows(ctx context.Context, rawURL string) bool
}

// SelectorResolver discovers selectors for sources that declare none.
type SelectorResolver interface {
	Resolve(ctx context.Context, spec models.SourceSpec) (models.CachedSelectors, error)
}

// Config holds engine configuration.
type Config struct {
	Parallelism int // 0 = min(len(sources), defaultMaxParallel)
	Delay       delay.Config
}

// Engine drives harvest runs over a fixed source list.
type Engine struct {
	cfg       Config
	sources   []models.SourceSpec
	fetcher   PageGetter
	robots    RobotsPolicy // nil = no robots policy
	cache     *fetch.Cache // nil = no caching
	assistant SelectorResolver
	pipeline  *process.Pipeline
	store     *store.Store

	mu          sync.Mutex
	controllers map[string]*delay.Controller
}

// New creates an Engine. robots, cache, and assistant may be nil.
func New(cfg Config, sources []models.SourceSpec, fetcher PageGetter,
	robots RobotsPolicy, cache *fetch.Cache, assistant SelectorResolver,
	pipeline *process.Pipeline, st *store.Store) *Engine {
	return &Engine{
		cfg:         cfg,
		sources:     sources,
		fetcher:     fetcher,
		robots:      robots,
		cache:       cache,
		assistant:   assistant,
		pipeline:    pipeline,
		store:       st,
		controllers: make(map[string]*delay.Controller),
	}
}

// Sources returns the configured source specs.
func (e *Engine) Sources() []models.SourceSpec {
	return e.sources
}

// RunOnce harvests every configured source concurrently, processes the
// combined records, and persists them. Per-source failures are recorded
// in the report; only pipeline or context failures abort the run.
func (e *Engine) RunOnce(ctx context.Context) (models.RunReport, error) {
	return e.run(ctx, e.sources)
}

// RunSource harvests a single configured source by name.
func (e *Engine) RunSource(ctx context.Context, name string) (models.RunReport, error) {
	for _, spec := range e.sources {
		if spec.Name == name {
			return e.run(ctx, []models.SourceSpec{spec})
		}
	}
	return models.RunReport{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

func (e *Engine) run(ctx context.Context, sources []models.SourceSpec) (models.RunReport, error) {
	start := time.Now()
	report := models.RunReport{PerSource: make([]models.SourceReport, len(sources))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism(len(sources)))

	var mu sync.Mutex
	var harvested []models.Record

	for i, spec := range sources {
		g.Go(func() error {
			records, err := e.harvestSource(gctx, spec)

			mu.Lock()
			defer mu.Unlock()
			report.PerSource[i] = models.SourceReport{Name: spec.Name, Count: len(records)}
			if err != nil {
				report.PerSource[i].Error = err.Error()
				slog.Warn("source failed", "source", spec.Name, "error", err)
				return nil
			}
			harvested = append(harvested, records...)
			report.ItemsScraped += len(records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	processed, procReport, err := e.pipeline.Run(ctx, harvested)
	if err != nil {
		return report, err
	}

	if len(processed) > 0 {
		if err := e.store.Save(ctx, processed); err != nil {
			if !errors.Is(err, store.ErrPartialPersistence) {
				return report, err
			}
			report.PartialPersistence = true
		}
	}
	report.ItemsPersisted = len(processed)
	report.Duration = time.Since(start)

	slog.Info("run complete",
		"sources", len(sources),
		"scraped", report.ItemsScraped,
		"persisted", report.ItemsPersisted,
		"duplicates", procReport.Normalization.DuplicatesRemoved,
		"degraded", procReport.Normalization.Degraded,
		"partial", report.PartialPersistence,
		"duration", report.Duration)
	return report, nil
}

// harvestSource fetches and extracts one source: pace, robots check,
// cached or live fetch, extract.
func (e *Engine) harvestSource(ctx context.Context, spec models.SourceSpec) ([]models.Record, error) {
	spec, err := e.resolveSelectors(ctx, spec)
	if err != nil {
		return nil, err
	}

	ctrl := e.controller(spec)
	if err := ctrl.Wait(ctx); err != nil {
		return nil, err
	}

	if e.robots != nil && !e.robots.Allows(ctx, spec.URL) {
		return nil, &fetch.Error{Kind: fetch.KindDisallowed, URL: spec.URL}
	}

	body, cached := e.cache.Get(spec.URL)
	if !cached {
		fetchStart := time.Now()
		body, err = e.fetcher.Get(ctx, spec.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", spec.Name, err)
		}
		// Pace on network wall time only; cache hits don't count.
		ctrl.RecordResponseTime(time.Since(fetchStart))
		e.cache.Put(spec.URL, body)
	}

	records, err := extract.ForKind(spec.Kind).Extract(body, spec)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", spec.Name, err)
	}
	slog.Debug("harvested source", "source", spec.Name, "records", len(records), "cached", cached)
	return records, nil
}

// resolveSelectors fills in selectors for sources that declare none.
// Kinds with built-in defaults proceed without any; custom sources
// need either declared selectors or a successful discovery.
func (e *Engine) resolveSelectors(ctx context.Context, spec models.SourceSpec) (models.SourceSpec, error) {
	if spec.HasSelectors() {
		return spec, nil
	}

	if e.assistant != nil {
		sel, err := e.assistant.Resolve(ctx, spec)
		if err == nil {
			spec.Selectors = sel.Fields()
			return spec, nil
		}
		if spec.Kind == models.KindCustom {
			return spec, fmt.Errorf("%w: %s: %v", ErrNoSelectors, spec.Name, err)
		}
		slog.Debug("selector discovery failed, using kind defaults",
			"source", spec.Name, "error", err)
		return spec, nil
	}

	if spec.Kind == models.KindCustom {
		return spec, fmt.Errorf("%w: %s", ErrNoSelectors, spec.Name)
	}
	return spec, nil
}

// controller returns the per-source delay controller, creating it on
// first use. A per-source rate limit hint raises the minimum delay.
func (e *Engine) controller(spec models.SourceSpec) *delay.Controller {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctrl, ok := e.controllers[spec.Name]; ok {
		return ctrl
	}
	cfg := e.cfg.Delay
	if hint := time.Duration(spec.RateLimitHintMS) * time.Millisecond; hint > cfg.MinDelay {
		cfg.MinDelay = hint
	}
	ctrl := delay.New(cfg)
	e.controllers[spec.Name] = ctrl
	return ctrl
}

// DelayStats snapshots every live per-source controller.
func (e *Engine) DelayStats() map[string]delay.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]delay.Stats, len(e.controllers))
	for name, ctrl := range e.controllers {
		out[name] = ctrl.Stats()
	}
	return out
}

// List reads records back from the store.
func (e *Engine) List(ctx context.Context, filter store.Filter) ([]models.Record, error) {
	return e.store.List(ctx, filter)
}

// StoredSources returns the distinct source names present in the store.
func (e *Engine) StoredSources(ctx context.Context) ([]string, error) {
	return e.store.Sources(ctx)
}

// Stats summarizes the stored corpus.
func (e *Engine) Stats(ctx context.Context) (models.StoreStats, error) {
	return e.store.Stats(ctx)
}

func (e *Engine) parallelism(nsources int) int {
	if e.cfg.Parallelism > 0 {
		return e.cfg.Parallelism
	}
	n := nsources
	if n > defaultMaxParallel {
		n = defaultMaxParallel
	}
	if n < 1 {
		n = 1
	}
	return n
}
