package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is the canonical scraped item. Optional string fields are empty
// when absent from the page; Price is nil when the source carries none.
type Record struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	URL       string         `json:"url"`
	Title     string         `json:"title,omitempty"`
	Content   string         `json:"content,omitempty"`
	Price     *float64       `json:"price,omitempty"`
	ImageURL  string         `json:"image_url,omitempty"`
	Author    string         `json:"author,omitempty"`
	Category  string         `json:"category,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewRecord creates a record with a fresh id and the observation timestamp
// set to now. The timestamp is never mutated afterwards.
func NewRecord(source, url string) Record {
	return Record{
		ID:        uuid.NewString(),
		Source:    source,
		URL:       url,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

// SetPrice rounds to two fractional digits before storing.
func (r *Record) SetPrice(p float64) {
	rounded := RoundPrice(p)
	r.Price = &rounded
}

// AddMetadata stores a scalar source-specific attribute.
func (r *Record) AddMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// MetadataString returns a metadata value as a string, or "" when the key
// is absent or not a string.
func (r *Record) MetadataString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// RoundPrice rounds a price to two fractional digits.
func RoundPrice(p float64) float64 {
	if p < 0 {
		return float64(int64(p*100-0.5)) / 100
	}
	return float64(int64(p*100+0.5)) / 100
}
