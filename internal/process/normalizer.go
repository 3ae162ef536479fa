package process

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/webharvest/harvester/internal/ai"
	"github.com/webharvest/harvester/internal/extract"
	"github.com/webharvest/harvester/pkg/models"
)

// usdRates converts known currencies into metadata.price_usd. The
// original price field is never overwritten.
var usdRates = map[string]float64{
	"USD": 1.0,
	"GBP": 1.27,
	"EUR": 1.08,
}

// metadataRenames folds extractor-specific metadata keys into canonical
// names. An existing canonical key always wins.
var metadataRenames = map[string]string{
	"cost":        "price",
	"price_value": "price",
	"amount":      "price",
	"img":         "image_url",
	"thumbnail":   "image_url",
	"picture":     "image_url",
	"name":        "title",
	"heading":     "title",
}

// completer is the slice of the AI client the normalizer needs.
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Enabled() bool
}

// Stats summarizes one normalization pass.
type Stats struct {
	TotalInput        int
	TotalOutput       int
	DuplicatesRemoved int
	InvalidDropped    int
	AIBatchesOK       int
	AIBatchesFailed   int
	Degraded          bool
}

// Config holds normalizer configuration.
type Config struct {
	BatchSize int // AI enrichment batch size, default 50
	Client    completer
}

// Normalizer canonicalizes record fields and metadata, annotates USD
// prices, drops unusable records, and deduplicates. When an AI client
// is configured it additionally cleans titles and fills categories in
// batches; any batch failure falls back to the rule-based result.
type Normalizer struct {
	cfg Config
}

// NewNormalizer creates a Normalizer with the given configuration.
func NewNormalizer(cfg Config) *Normalizer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Normalizer{cfg: cfg}
}

// Normalize runs the full pass and reports what happened. The rule
// stages are deterministic and idempotent; running the output through
// again yields the same records.
func (n *Normalizer) Normalize(ctx context.Context, records []models.Record) ([]models.Record, Stats) {
	stats := Stats{TotalInput: len(records)}

	kept := make([]models.Record, 0, len(records))
	for _, rec := range records {
		normalizeMetadata(&rec)
		promoteCanonical(&rec)
		annotateUSD(&rec)
		if rec.Title == "" && rec.URL == "" {
			stats.InvalidDropped++
			continue
		}
		kept = append(kept, rec)
	}

	deduped := Deduplicate(kept)
	stats.DuplicatesRemoved = len(kept) - len(deduped)

	if n.cfg.Client != nil && n.cfg.Client.Enabled() {
		n.enrich(ctx, deduped, &stats)
	}

	stats.TotalOutput = len(deduped)
	slog.Debug("normalized records",
		"in", stats.TotalInput, "out", stats.TotalOutput,
		"duplicates", stats.DuplicatesRemoved, "dropped", stats.InvalidDropped,
		"degraded", stats.Degraded)
	return deduped, stats
}

// normalizeMetadata applies the canonical key renames in place.
func normalizeMetadata(rec *models.Record) {
	if rec.Metadata == nil {
		return
	}
	for from, to := range metadataRenames {
		v, ok := rec.Metadata[from]
		if !ok {
			continue
		}
		if _, exists := rec.Metadata[to]; !exists {
			rec.Metadata[to] = v
		}
		delete(rec.Metadata, from)
	}
}

// promoteCanonical fills empty record fields from the canonical metadata
// keys the renames produce, so a title that arrived as "name" or a price
// that arrived as "cost" still reaches deduplication, the drop rules, and
// currency annotation. A field scraped directly always wins; the metadata
// copy stays put.
func promoteCanonical(rec *models.Record) {
	if rec.Title == "" {
		if v := strings.TrimSpace(rec.MetadataString("title")); v != "" {
			rec.Title = v
		}
	}
	if rec.ImageURL == "" {
		if v := strings.TrimSpace(rec.MetadataString("image_url")); v != "" {
			rec.ImageURL = v
		}
	}
	if rec.Price == nil && rec.Metadata != nil {
		switch v := rec.Metadata["price"].(type) {
		case float64:
			rec.SetPrice(v)
		case int:
			rec.SetPrice(float64(v))
		case string:
			if price, currency, ok := extract.ParsePrice(v); ok {
				rec.SetPrice(price)
				if currency != "" && rec.MetadataString("currency") == "" {
					rec.AddMetadata("currency", currency)
				}
			}
		}
	}
}

// annotateUSD writes metadata.price_usd for records with a price and a
// known currency.
func annotateUSD(rec *models.Record) {
	if rec.Price == nil {
		return
	}
	rate, ok := usdRates[strings.ToUpper(rec.MetadataString("currency"))]
	if !ok {
		return
	}
	rec.AddMetadata("price_usd", math.Round(*rec.Price*rate*10000)/10000)
}

// enrichmentItem is the per-record payload exchanged with the model.
type enrichmentItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
}

const enrichSystemPrompt = `You are a data cleaning assistant. For each item, clean up the title (fix casing, strip boilerplate and trailing punctuation) and fill in a short category when it is missing and obvious from the title.

Respond with ONLY a JSON array mirroring the input: [{"id": "...", "title": "...", "category": "..."}]. Keep every id. Never invent items.`

// enrich runs the batch AI pass over records in place. Failed batches
// leave their records untouched.
func (n *Normalizer) enrich(ctx context.Context, records []models.Record, stats *Stats) {
	byID := make(map[string]*models.Record, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}

	for start := 0; start < len(records); start += n.cfg.BatchSize {
		end := start + n.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}

		if err := n.enrichBatch(ctx, records[start:end], byID); err != nil {
			stats.AIBatchesFailed++
			stats.Degraded = true
			slog.Warn("enrichment batch failed, keeping rule-based records",
				"batch_start", start, "error", err)
			continue
		}
		stats.AIBatchesOK++
	}
}

func (n *Normalizer) enrichBatch(ctx context.Context, batch []models.Record, byID map[string]*models.Record) error {
	items := make([]enrichmentItem, len(batch))
	for i, rec := range batch {
		items[i] = enrichmentItem{ID: rec.ID, Title: rec.Title, Category: rec.Category}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	reply, err := n.cfg.Client.Complete(ctx, enrichSystemPrompt, string(payload))
	if err != nil {
		return err
	}

	var cleaned []enrichmentItem
	if err := json.Unmarshal([]byte(stripFences(reply)), &cleaned); err != nil {
		return fmt.Errorf("bad enrichment reply: %w", err)
	}

	for _, item := range cleaned {
		rec, ok := byID[item.ID]
		if !ok {
			continue
		}
		if item.Title != "" {
			rec.Title = item.Title
		}
		if rec.Category == "" && item.Category != "" {
			rec.Category = item.Category
		}
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

var _ completer = (*ai.Client)(nil)
