package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

// Social extracts records from JSON feeds shaped like a Reddit listing:
// data.children[].data.{title,author,score,num_comments,permalink}. A
// top-level array of objects is accepted as a fallback.
type Social struct{}

type socialListing struct {
	Data struct {
		Children []struct {
			Data map[string]any `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (Social) Extract(body fetch.Body, spec models.SourceSpec) ([]models.Record, error) {
	items, err := decodeItems(body.Bytes)
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(items))
	for _, item := range items {
		rec := models.NewRecord(spec.Name, spec.URL)

		if title, ok := item["title"].(string); ok && title != "" {
			rec.Title = collapseWhitespace(title)
		}
		if author, ok := item["author"].(string); ok && author != "" {
			rec.Author = collapseWhitespace(author)
		}
		if text, ok := item["selftext"].(string); ok && text != "" {
			rec.Content = collapseWhitespace(text)
		}
		if permalink, ok := item["permalink"].(string); ok && permalink != "" {
			if abs := resolveURL(spec.URL, permalink); abs != "" {
				rec.URL = abs
			}
		}
		if score, ok := item["score"].(float64); ok {
			rec.AddMetadata("score", score)
		}
		if comments, ok := item["num_comments"].(float64); ok {
			rec.AddMetadata("num_comments", comments)
		}
		if sub, ok := item["subreddit"].(string); ok && sub != "" {
			rec.Category = sub
		}

		records = append(records, rec)
	}

	slog.Debug("extracted social posts", "source", spec.Name, "count", len(records))
	return records, nil
}

// decodeItems accepts either the nested listing shape or a bare array.
func decodeItems(data []byte) ([]map[string]any, error) {
	var listing socialListing
	if err := json.Unmarshal(data, &listing); err == nil && len(listing.Data.Children) > 0 {
		items := make([]map[string]any, 0, len(listing.Data.Children))
		for _, child := range listing.Data.Children {
			if child.Data != nil {
				items = append(items, child.Data)
			}
		}
		return items, nil
	}

	var plain []map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyUnparseable, err)
	}
	return plain, nil
}
