package process

import (
	"strings"

	"github.com/webharvest/harvester/pkg/models"
)

// Deduplicate removes records sharing a (title, source) key, keeping
// the first occurrence and preserving order. Title comparison is
// case-insensitive and whitespace-trimmed. Untitled records are never
// treated as duplicates of each other.
func Deduplicate(records []models.Record) []models.Record {
	seen := make(map[string]bool, len(records))
	out := make([]models.Record, 0, len(records))

	for _, rec := range records {
		title := strings.ToLower(strings.TrimSpace(rec.Title))
		if title == "" {
			out = append(out, rec)
			continue
		}
		key := title + "\x00" + rec.Source
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}

	return out
}
