package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

// Default selector sets for product listing pages.
const (
	defaultProductContainer = ".product, .item, [data-product], .card, .goods"
	defaultProductTitle     = ".title, .name, .product-name, h1, h2, h3"
	defaultProductPrice     = ".price, .cost, [data-price], .amount, .current-price"
	defaultProductImage     = "img"
	defaultProductLink      = "a"
)

// Ecommerce extracts product records from listing pages: title, price
// text, image. A currency glyph in the price text sets
// metadata.currency; the raw text is preserved in metadata.price_text.
type Ecommerce struct{}

func (Ecommerce) Extract(body fetch.Body, spec models.SourceSpec) ([]models.Record, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	container := selectorOr(spec, "container", defaultProductContainer)
	titleSel := selectorOr(spec, "title", defaultProductTitle)
	priceSel := selectorOr(spec, "price", defaultProductPrice)
	imageSel := selectorOr(spec, "image", defaultProductImage)
	linkSel := selectorOr(spec, "link", defaultProductLink)

	var records []models.Record
	doc.Find(container).Each(func(_ int, item *goquery.Selection) {
		rec := models.NewRecord(spec.Name, spec.URL)

		if title := firstText(item, titleSel); title != "" {
			rec.Title = title
		}
		if href := firstAttr(item, linkSel, "href"); href != "" {
			if abs := resolveURL(spec.URL, href); abs != "" {
				rec.URL = abs
			}
		}
		if img := firstAttr(item, imageSel, "src"); img != "" {
			rec.ImageURL = resolveURL(spec.URL, img)
		}
		if cat := firstText(item, spec.Selector("category")); cat != "" {
			rec.Category = cat
		}

		if priceText := strings.TrimSpace(item.Find(priceSel).First().Text()); priceText != "" {
			rec.AddMetadata("price_text", priceText)
			if price, currency, ok := ParsePrice(priceText); ok {
				rec.SetPrice(price)
				if currency != "" {
					rec.AddMetadata("currency", currency)
				}
			}
		}

		records = append(records, rec)
	})

	slog.Debug("extracted products", "source", spec.Name, "count", len(records))
	return records, nil
}
