package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

// Custom is driven entirely by the spec's selector map. Well-known field
// names map onto record fields; everything else lands in metadata. With
// no container selector the whole document is one item.
type Custom struct{}

// wellKnownFields are the selector keys with a dedicated record slot.
var wellKnownFields = map[string]bool{
	"container": true,
	"title":     true,
	"content":   true,
	"price":     true,
	"image":     true,
	"author":    true,
	"category":  true,
	"link":      true,
	"date":      true,
}

func (Custom) Extract(body fetch.Body, spec models.SourceSpec) ([]models.Record, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	var items *goquery.Selection
	if container := spec.Selector("container"); container != "" {
		items = doc.Find(container)
	} else {
		items = doc.Selection.Find("html")
	}

	var records []models.Record
	items.Each(func(_ int, item *goquery.Selection) {
		rec := models.NewRecord(spec.Name, spec.URL)

		if title := firstText(item, spec.Selector("title")); title != "" {
			rec.Title = title
		} else if spec.Selector("container") == "" {
			rec.Title = pageTitle(body.Bytes)
		}
		if content := firstText(item, spec.Selector("content")); content != "" {
			rec.Content = content
		}
		if author := firstText(item, spec.Selector("author")); author != "" {
			rec.Author = author
		}
		if cat := firstText(item, spec.Selector("category")); cat != "" {
			rec.Category = cat
		}
		if img := firstAttr(item, spec.Selector("image"), "src"); img != "" {
			rec.ImageURL = resolveURL(spec.URL, img)
		}
		if href := firstAttr(item, spec.Selector("link"), "href"); href != "" {
			if abs := resolveURL(spec.URL, href); abs != "" {
				rec.URL = abs
			}
		}
		if date := firstText(item, spec.Selector("date")); date != "" {
			rec.AddMetadata("publish_date", date)
		}
		if sel := spec.Selector("price"); sel != "" {
			if priceText := strings.TrimSpace(item.Find(sel).First().Text()); priceText != "" {
				rec.AddMetadata("price_text", priceText)
				if price, currency, ok := ParsePrice(priceText); ok {
					rec.SetPrice(price)
					if currency != "" {
						rec.AddMetadata("currency", currency)
					}
				}
			}
		}

		for field, selector := range spec.Selectors {
			if wellKnownFields[field] {
				continue
			}
			if v := firstText(item, selector); v != "" {
				rec.AddMetadata(field, v)
			}
		}

		records = append(records, rec)
	})

	slog.Debug("extracted custom items", "source", spec.Name, "count", len(records))
	return records, nil
}
