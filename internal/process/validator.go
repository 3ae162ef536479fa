// Package process cleans extracted records before persistence:
// validation, field normalization, currency annotation, deduplication,
// and the optional AI enrichment pass. The rule-based stages always
// run; AI failures degrade gracefully.
package process

import (
	"log/slog"
	"net/url"

	"github.com/webharvest/harvester/pkg/models"
)

// maxReasonablePrice rejects obviously corrupt price extractions.
const maxReasonablePrice = 1_000_000

// ValidationStats counts the outcome of one validation pass.
type ValidationStats struct {
	Validated         int
	RejectedMissingID int
	RejectedBadURL    int
	RejectedBadPrice  int
}

// Validate filters records that cannot be persisted: missing IDs,
// unusable URLs, and prices outside [0, maxReasonablePrice]. It never
// mutates its input.
func Validate(records []models.Record) ([]models.Record, ValidationStats) {
	var stats ValidationStats
	out := make([]models.Record, 0, len(records))

	for _, rec := range records {
		switch {
		case rec.ID == "":
			stats.RejectedMissingID++
		case !usableURL(rec.URL):
			stats.RejectedBadURL++
		case rec.Price != nil && (*rec.Price < 0 || *rec.Price > maxReasonablePrice):
			stats.RejectedBadPrice++
		default:
			stats.Validated++
			out = append(out, rec)
			continue
		}
		slog.Debug("rejected record", "id", rec.ID, "url", rec.URL, "source", rec.Source)
	}

	return out, stats
}

// usableURL accepts absolute http(s) URLs.
func usableURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
