package models

import "time"

// CachedSelectors holds the per-host selector set discovered by the
// selector assistant. Persisted as selectors/<host>.json.
type CachedSelectors struct {
	Domain      string    `json:"domain"`
	Container   string    `json:"container,omitempty"`
	Title       string    `json:"title,omitempty"`
	Price       string    `json:"price,omitempty"`
	Image       string    `json:"image,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Date        string    `json:"date,omitempty"`
	Link        string    `json:"link,omitempty"`
	Confidence  float64   `json:"confidence"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Fields flattens the selector set into the field → selector map the
// extractors consume. Empty selectors are omitted.
func (c CachedSelectors) Fields() map[string]string {
	out := make(map[string]string)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("container", c.Container)
	put("title", c.Title)
	put("price", c.Price)
	put("image", c.Image)
	put("category", c.Category)
	put("content", c.Description)
	put("author", c.Author)
	put("date", c.Date)
	put("link", c.Link)
	return out
}
