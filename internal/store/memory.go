package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/webharvest/harvester/pkg/models"
)

// Mirror is the in-memory tier. It holds every record saved during the
// process lifetime and serves reads when the durable tier is down.
type Mirror struct {
	mu      sync.RWMutex
	records []models.Record
	index   map[string]int // record id -> position in records
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{index: make(map[string]int)}
}

// Save upserts records, keeping insertion order for new ids.
func (m *Mirror) Save(_ context.Context, records []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if pos, ok := m.index[rec.ID]; ok {
			m.records[pos] = rec
			continue
		}
		m.index[rec.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

// List returns matching records, newest first.
func (m *Mirror) List(_ context.Context, filter Filter) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]models.Record, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Source != "" && rec.Source != filter.Source {
			continue
		}
		if filter.Category != "" && rec.Category != filter.Category {
			continue
		}
		if filter.Query != "" && !matchesQuery(rec, filter.Query) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count returns the number of held records.
func (m *Mirror) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Sources returns the distinct source names, sorted.
func (m *Mirror) Sources(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var sources []string
	for _, rec := range m.records {
		if !seen[rec.Source] {
			seen[rec.Source] = true
			sources = append(sources, rec.Source)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// Stats summarizes the held records.
func (m *Mirror) Stats(context.Context) (models.StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := models.StoreStats{Total: int64(len(m.records))}
	sources := make(map[string]bool)
	for _, rec := range m.records {
		if rec.Price != nil {
			stats.WithPrice++
		}
		if rec.Content != "" {
			stats.WithContent++
		}
		sources[rec.Source] = true
	}
	stats.UniqueSources = len(sources)
	return stats, nil
}

// Clear drops every held record.
func (m *Mirror) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.index = make(map[string]int)
	return nil
}

// Close is a no-op; the mirror has nothing to release.
func (m *Mirror) Close() error { return nil }

func matchesQuery(rec models.Record, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(rec.Title), q) ||
		strings.Contains(strings.ToLower(rec.Content), q)
}
