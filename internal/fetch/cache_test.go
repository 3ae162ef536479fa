package fetch

import (
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache(10, time.Minute)

	c.Put("https://example.com/page", Body{Bytes: []byte("cached"), ContentType: "text/html"})

	body, ok := c.Get("https://example.com/page")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(body.Bytes) != "cached" {
		t.Errorf("body = %q, want %q", body.Bytes, "cached")
	}
}

func TestCache_FragmentDoesNotSplitEntries(t *testing.T) {
	c := NewCache(10, time.Minute)

	c.Put("https://example.com/page#section", Body{Bytes: []byte("x")})
	if _, ok := c.Get("https://example.com/page"); !ok {
		t.Error("fragment variants should share one entry")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(10, 20*time.Millisecond)

	c.Put("https://example.com/", Body{Bytes: []byte("x")})
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("https://example.com/"); ok {
		t.Error("entry should have expired")
	}
}

func TestCache_EvictsWhenFull(t *testing.T) {
	c := NewCache(2, time.Minute)

	c.Put("https://a.test/", Body{Bytes: []byte("a")})
	c.Put("https://b.test/", Body{Bytes: []byte("b")})
	c.Put("https://c.test/", Body{Bytes: []byte("c")})

	if c.Len() > 2 {
		t.Errorf("Len() = %d, want <= 2", c.Len())
	}
	if _, ok := c.Get("https://a.test/"); ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestCache_NilIsNoop(t *testing.T) {
	var c *Cache
	c.Put("https://example.com/", Body{Bytes: []byte("x")})
	if _, ok := c.Get("https://example.com/"); ok {
		t.Error("nil cache should always miss")
	}
	if c.Len() != 0 {
		t.Error("nil cache length should be 0")
	}
}
