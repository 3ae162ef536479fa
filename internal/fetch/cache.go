package fetch

import (
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache memoizes response bodies keyed by canonical URL. Entries expire
// after the configured TTL; the LRU bound evicts the least recently used
// entry when full. A nil *Cache is a no-op.
type Cache struct {
	lru *expirable.LRU[string, Body]
}

// NewCache creates a body cache with the given capacity and TTL.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache{lru: expirable.NewLRU[string, Body](maxEntries, nil, ttl)}
}

// Get returns the cached body for the URL, if present and unexpired.
func (c *Cache) Get(rawURL string) (Body, bool) {
	if c == nil {
		return Body{}, false
	}
	return c.lru.Get(canonicalURL(rawURL))
}

// Put stores a body under the URL's canonical form.
func (c *Cache) Put(rawURL string, b Body) {
	if c == nil {
		return
	}
	c.lru.Add(canonicalURL(rawURL), b)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// canonicalURL strips the fragment so equivalent page URLs share an entry.
func canonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	return u.String()
}
