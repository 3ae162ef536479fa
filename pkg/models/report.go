package models

import "time"

// SourceReport is the per-source outcome of one run.
type SourceReport struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// RunReport summarizes one engine run. ItemsScraped counts records before
// pipeline deduplication; per-source entries sum to it.
type RunReport struct {
	ItemsScraped       int            `json:"items_scraped"`
	ItemsPersisted     int            `json:"items_persisted"`
	PerSource          []SourceReport `json:"per_source"`
	PartialPersistence bool           `json:"partial_persistence,omitempty"`
	Duration           time.Duration  `json:"duration"`
}

// StoreStats is the aggregate view served by the stats endpoint.
type StoreStats struct {
	Total         int64 `json:"total"`
	WithPrice     int64 `json:"with_price"`
	WithContent   int64 `json:"with_content"`
	UniqueSources int   `json:"unique_sources"`
}
