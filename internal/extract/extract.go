// Package extract turns fetched bodies into canonical records using
// per-source selectors. One extractor variant exists per source kind;
// the set is closed.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

// ErrBodyUnparseable marks a body that could not be parsed at all. A
// container selector matching nothing is not an error; it yields zero
// records.
var ErrBodyUnparseable = errors.New("extract: body unparseable")

// Extractor produces records from one fetched body.
type Extractor interface {
	Extract(body fetch.Body, spec models.SourceSpec) ([]models.Record, error)
}

// ForKind returns the extractor for a source kind. Unknown kinds fall
// back to the selector-driven custom extractor.
func ForKind(kind models.SourceKind) Extractor {
	switch kind {
	case models.KindNews:
		return News{}
	case models.KindEcommerce:
		return Ecommerce{}
	case models.KindSocial:
		return Social{}
	default:
		return Custom{}
	}
}

// parseDocument builds a goquery document from an HTML body.
func parseDocument(body fetch.Body) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body.Bytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyUnparseable, err)
	}
	return doc, nil
}

// collapseWhitespace trims and folds all runs of whitespace to one space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// selectorOr returns the spec's selector for field, or the default.
func selectorOr(spec models.SourceSpec, field, def string) string {
	if s := spec.Selector(field); s != "" {
		return s
	}
	return def
}

// firstText returns the collapsed text of the first match under sel, or
// "" when the selector matches nothing.
func firstText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapseWhitespace(sel.Find(selector).First().Text())
}

// firstAttr returns an attribute of the first match under sel.
func firstAttr(sel *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	v, _ := sel.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

// resolveURL makes href absolute against base. Unresolvable hrefs
// return "".
func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}
