package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

type stubPages struct {
	body  string
	calls atomic.Int32
}

func (s *stubPages) Get(_ context.Context, _ string, _ map[string]string) (fetch.Body, error) {
	s.calls.Add(1)
	return fetch.Body{Bytes: []byte(s.body), ContentType: "text/html"}, nil
}

const selectorReply = "```json\n" + `{"container": ".product", "title": ".title", "price": ".price", "image": "img", "confidence": 0.9}` + "\n```"

func selectorServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": selectorReply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestResolveInfersOncePerHost(t *testing.T) {
	var apiCalls atomic.Int32
	srv := selectorServer(t, &apiCalls)
	defer srv.Close()

	pages := &stubPages{body: "<html><div class='product'></div></html>"}
	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	assistant := NewSelectorAssistant(client, pages, t.TempDir())

	spec := models.SourceSpec{Name: "shop", URL: "https://shop.example.com/catalog", Kind: models.KindEcommerce}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sel, err := assistant.Resolve(context.Background(), spec)
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			if sel.Title != ".title" {
				t.Errorf("title selector = %q", sel.Title)
			}
		}()
	}
	wg.Wait()

	if n := apiCalls.Load(); n != 1 {
		t.Errorf("inference calls = %d, want 1", n)
	}

	// A later sequential call hits the memory cache.
	if _, err := assistant.Resolve(context.Background(), spec); err != nil {
		t.Fatalf("cached Resolve: %v", err)
	}
	if n := apiCalls.Load(); n != 1 {
		t.Errorf("inference calls after cached resolve = %d, want 1", n)
	}
}

func TestResolvePersistsToDisk(t *testing.T) {
	var apiCalls atomic.Int32
	srv := selectorServer(t, &apiCalls)
	defer srv.Close()

	dir := t.TempDir()
	pages := &stubPages{body: "<html></html>"}
	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	assistant := NewSelectorAssistant(client, pages, dir)

	spec := models.SourceSpec{Name: "shop", URL: "https://shop.example.com", Kind: models.KindEcommerce}
	sel, err := assistant.Resolve(context.Background(), spec)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sel.Domain != "shop.example.com" {
		t.Errorf("domain = %q", sel.Domain)
	}
	if sel.GeneratedAt.IsZero() {
		t.Error("generated_at not set")
	}

	data, err := os.ReadFile(filepath.Join(dir, "shop.example.com.json"))
	if err != nil {
		t.Fatalf("selector file not written: %v", err)
	}
	var onDisk models.CachedSelectors
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("parse selector file: %v", err)
	}
	if onDisk.Container != ".product" || onDisk.Confidence != 0.9 {
		t.Errorf("unexpected persisted selectors: %+v", onDisk)
	}

	// A fresh assistant over the same dir loads from disk without any
	// inference.
	fresh := NewSelectorAssistant(New(Config{APIKey: "sk-test", BaseURL: srv.URL}), pages, dir)
	before := apiCalls.Load()
	if _, err := fresh.Resolve(context.Background(), spec); err != nil {
		t.Fatalf("Resolve from disk: %v", err)
	}
	if apiCalls.Load() != before {
		t.Error("disk hit should not call the API")
	}
}

func TestResolveDisabledClient(t *testing.T) {
	pages := &stubPages{body: "<html></html>"}
	assistant := NewSelectorAssistant(New(Config{}), pages, t.TempDir())

	spec := models.SourceSpec{Name: "shop", URL: "https://shop.example.com", Kind: models.KindEcommerce}
	if _, err := assistant.Resolve(context.Background(), spec); err == nil {
		t.Fatal("expected error with disabled client")
	}
}
