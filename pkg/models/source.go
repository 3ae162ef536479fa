package models

// SourceKind selects the extractor used for a source. The set is closed.
type SourceKind string

const (
	KindNews      SourceKind = "news"
	KindEcommerce SourceKind = "ecommerce"
	KindSocial    SourceKind = "social"
	KindCustom    SourceKind = "custom"
)

// Valid reports whether the kind is one of the known variants.
func (k SourceKind) Valid() bool {
	switch k {
	case KindNews, KindEcommerce, KindSocial, KindCustom:
		return true
	}
	return false
}

// SourceSpec describes one configured source. Specs are built from
// configuration and immutable during a run.
type SourceSpec struct {
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Kind            SourceKind        `json:"kind"`
	Selectors       map[string]string `json:"selectors,omitempty"`
	RateLimitHintMS int               `json:"rate_limit_hint_ms,omitempty"`
}

// HasSelectors reports whether the spec declares at least one selector.
func (s SourceSpec) HasSelectors() bool {
	return len(s.Selectors) > 0
}

// Selector returns the declared selector for a field, or "" when absent.
func (s SourceSpec) Selector(field string) string {
	return s.Selectors[field]
}
