// Package export renders records as JSON or CSV, to a stream or a file.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/webharvest/harvester/pkg/models"
)

// JSON writes records as a pretty-printed JSON array.
func JSON(w io.Writer, records []models.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}

// csvHeader is the fixed column order. Metadata is flattened to one
// JSON column so rows stay rectangular.
var csvHeader = []string{
	"id", "source", "url", "title", "content", "price",
	"image_url", "author", "category", "timestamp", "metadata",
}

// CSV writes records as comma-separated rows with a header.
func CSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for _, rec := range records {
		var price string
		if rec.Price != nil {
			price = strconv.FormatFloat(*rec.Price, 'f', 2, 64)
		}
		var metadata string
		if len(rec.Metadata) > 0 {
			raw, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("export: metadata for %s: %w", rec.ID, err)
			}
			metadata = string(raw)
		}
		row := []string{
			rec.ID, rec.Source, rec.URL, rec.Title, rec.Content, price,
			rec.ImageURL, rec.Author, rec.Category,
			rec.Timestamp.Format(time.RFC3339), metadata,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}

// ToFile writes records to path in the format implied by the writer
// function (JSON or CSV).
func ToFile(path string, records []models.Record, write func(io.Writer, []models.Record) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := write(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}
