package extract

import (
	"log/slog"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

// Default selector sets for article pages.
const (
	defaultArticleContainer = "article, .story, .news-item, .post"
	defaultArticleTitle     = "h1, h2, h3, .title, .headline"
	defaultArticleAuthor    = ".author, .byline, .writer"
	defaultArticleDate      = ".date, .time, .published"
)

// News extracts article records: title, author, content, publish date.
// When no content selector is declared, the article node is converted to
// markdown so rich bodies survive as readable text.
type News struct{}

func (News) Extract(body fetch.Body, spec models.SourceSpec) ([]models.Record, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	container := selectorOr(spec, "container", defaultArticleContainer)
	titleSel := selectorOr(spec, "title", defaultArticleTitle)
	authorSel := selectorOr(spec, "author", defaultArticleAuthor)
	dateSel := selectorOr(spec, "date", defaultArticleDate)
	contentSel := spec.Selector("content")

	var records []models.Record
	doc.Find(container).Each(func(_ int, item *goquery.Selection) {
		rec := models.NewRecord(spec.Name, spec.URL)

		if title := firstText(item, titleSel); title != "" {
			rec.Title = title
		}
		if author := firstText(item, authorSel); author != "" {
			rec.Author = author
		}
		if href := firstAttr(item, spec.Selector("link"), "href"); href != "" {
			if abs := resolveURL(spec.URL, href); abs != "" {
				rec.URL = abs
			}
		}
		if cat := firstText(item, spec.Selector("category")); cat != "" {
			rec.Category = cat
		}
		if date := firstText(item, dateSel); date != "" {
			rec.AddMetadata("publish_date", date)
		}

		if contentSel != "" {
			rec.Content = firstText(item, contentSel)
		} else {
			rec.Content = itemMarkdown(item)
		}

		records = append(records, rec)
	})

	slog.Debug("extracted articles", "source", spec.Name, "count", len(records))
	return records, nil
}

// itemMarkdown converts an article node's HTML into markdown, falling
// back to collapsed text when conversion fails.
func itemMarkdown(item *goquery.Selection) string {
	htmlContent, err := item.Html()
	if err != nil || htmlContent == "" {
		return collapseWhitespace(item.Text())
	}
	md, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return collapseWhitespace(item.Text())
	}
	return collapseWhitespace(md)
}
