package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

// ErrSelectorInference marks a failed selector discovery. The engine
// skips the source and records the failure; it never aborts the run.
var ErrSelectorInference = errors.New("ai: selector inference failed")

// maxSampleBytes caps the HTML sample sent with an inference prompt.
const maxSampleBytes = 8192

// pageGetter is the slice of the fetcher the assistant needs.
type pageGetter interface {
	Get(ctx context.Context, url string, headers map[string]string) (fetch.Body, error)
}

// SelectorAssistant discovers CSS selectors for hosts that have none
// declared. Results are cached in memory and persisted under
// dir/<host>.json; concurrent lookups for the same host collapse into
// one inference call.
type SelectorAssistant struct {
	client *Client
	pages  pageGetter
	dir    string

	mu     sync.RWMutex
	memory map[string]models.CachedSelectors
	group  singleflight.Group
}

// NewSelectorAssistant creates an assistant persisting to dir.
func NewSelectorAssistant(client *Client, pages pageGetter, dir string) *SelectorAssistant {
	if dir == "" {
		dir = "selectors"
	}
	return &SelectorAssistant{
		client: client,
		pages:  pages,
		dir:    dir,
		memory: make(map[string]models.CachedSelectors),
	}
}

// Resolve returns the selector set for the source's host: from memory,
// then from disk, then by inferring from a fetched page sample.
func (a *SelectorAssistant) Resolve(ctx context.Context, spec models.SourceSpec) (models.CachedSelectors, error) {
	host, err := hostOf(spec.URL)
	if err != nil {
		return models.CachedSelectors{}, fmt.Errorf("%w: %v", ErrSelectorInference, err)
	}

	a.mu.RLock()
	cached, ok := a.memory[host]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if sel, err := a.loadFromDisk(host); err == nil {
		a.remember(host, sel)
		return sel, nil
	}

	v, err, _ := a.group.Do(host, func() (any, error) {
		// Re-check memory: a concurrent caller may have finished
		// between our miss and joining the group.
		a.mu.RLock()
		sel, ok := a.memory[host]
		a.mu.RUnlock()
		if ok {
			return sel, nil
		}
		return a.infer(ctx, host, spec)
	})
	if err != nil {
		return models.CachedSelectors{}, err
	}
	return v.(models.CachedSelectors), nil
}

// infer fetches a page sample, asks the model for selectors, and
// persists the result.
func (a *SelectorAssistant) infer(ctx context.Context, host string, spec models.SourceSpec) (models.CachedSelectors, error) {
	if !a.client.Enabled() {
		return models.CachedSelectors{}, ErrDisabled
	}

	body, err := a.pages.Get(ctx, spec.URL, nil)
	if err != nil {
		return models.CachedSelectors{}, fmt.Errorf("%w: sample fetch: %v", ErrSelectorInference, err)
	}
	sample := body.Bytes
	if len(sample) > maxSampleBytes {
		sample = sample[:maxSampleBytes]
	}

	reply, err := a.client.Complete(ctx, selectorSystemPrompt,
		fmt.Sprintf("URL: %s\nSource kind: %s\n\nHTML sample:\n%s", spec.URL, spec.Kind, sample))
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return models.CachedSelectors{}, err
		}
		return models.CachedSelectors{}, fmt.Errorf("%w: %v", ErrSelectorInference, err)
	}

	var sel models.CachedSelectors
	if err := json.Unmarshal([]byte(extractJSON(reply)), &sel); err != nil {
		return models.CachedSelectors{}, fmt.Errorf("%w: bad reply: %v", ErrSelectorInference, err)
	}
	sel.Domain = host
	sel.GeneratedAt = time.Now().UTC()

	a.remember(host, sel)
	if err := a.saveToDisk(host, sel); err != nil {
		slog.Warn("could not persist selectors", "host", host, "error", err)
	}
	slog.Info("inferred selectors", "host", host, "confidence", sel.Confidence)
	return sel, nil
}

const selectorSystemPrompt = `You are a web scraping assistant. Given a page URL and an HTML sample, identify the CSS selectors for the repeating items on the page.

Respond with ONLY a JSON object, no prose, no markdown fences:
{"container": "<selector for one repeating item>", "title": "<selector>", "price": "<selector or empty>", "image": "<selector or empty>", "category": "<selector or empty>", "description": "<selector or empty>", "author": "<selector or empty>", "date": "<selector or empty>", "link": "<selector or empty>", "confidence": <0.0-1.0>}

Selectors are evaluated relative to the container. Leave a field empty when the page has no such element.`

func (a *SelectorAssistant) remember(host string, sel models.CachedSelectors) {
	a.mu.Lock()
	a.memory[host] = sel
	a.mu.Unlock()
}

func (a *SelectorAssistant) loadFromDisk(host string) (models.CachedSelectors, error) {
	data, err := os.ReadFile(a.path(host))
	if err != nil {
		return models.CachedSelectors{}, err
	}
	var sel models.CachedSelectors
	if err := json.Unmarshal(data, &sel); err != nil {
		return models.CachedSelectors{}, fmt.Errorf("failed to parse cached selectors: %w", err)
	}
	return sel, nil
}

func (a *SelectorAssistant) saveToDisk(host string, sel models.CachedSelectors) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.path(host), data, 0o644)
}

func (a *SelectorAssistant) path(host string) string {
	return filepath.Join(a.dir, host+".json")
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	return u.Hostname(), nil
}
