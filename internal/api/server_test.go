package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/webharvest/harvester/internal/delay"
	"github.com/webharvest/harvester/internal/engine"
	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/internal/process"
	"github.com/webharvest/harvester/internal/store"
	"github.com/webharvest/harvester/pkg/models"
)

type fixedFetcher struct {
	body fetch.Body
}

func (f fixedFetcher) Get(context.Context, string, map[string]string) (fetch.Body, error) {
	return f.body, nil
}

const shopPage = `<html><body>
<div class="product"><span class="title">Widget</span><span class="price">$9.99</span></div>
<div class="product"><span class="title">Gadget</span><span class="price">$19.99</span></div>
</body></html>`

func testServer(t *testing.T) *Server {
	t.Helper()
	sources := []models.SourceSpec{
		{Name: "shop", URL: "https://shop.example.com", Kind: models.KindEcommerce},
	}
	cfg := engine.Config{Delay: delay.Config{MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}}
	e := engine.New(cfg, sources, fixedFetcher{fetch.Body{Bytes: []byte(shopPage)}},
		nil, nil, nil,
		process.NewPipeline(process.NewNormalizer(process.Config{})),
		store.New(nil, nil))
	return NewServer(e)
}

func doJSON(t *testing.T, s *Server, method, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: bad JSON: %v", method, path, err)
		}
	}
	return rec
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	var body map[string]string
	rec := doJSON(t, s, http.MethodGet, "/api/health", &body)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rec.Code, body)
	}
}

func TestScrapeThenRead(t *testing.T) {
	s := testServer(t)

	var report models.RunReport
	rec := doJSON(t, s, http.MethodPost, "/api/scrape", &report)
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape = %d: %s", rec.Code, rec.Body)
	}
	if report.ItemsPersisted != 2 {
		t.Fatalf("items_persisted = %d, want 2", report.ItemsPersisted)
	}

	var data struct {
		Count   int             `json:"count"`
		Records []models.Record `json:"records"`
	}
	doJSON(t, s, http.MethodGet, "/api/data?source=shop", &data)
	if data.Count != 2 {
		t.Errorf("data count = %d, want 2", data.Count)
	}

	var search struct {
		Count int `json:"count"`
	}
	doJSON(t, s, http.MethodGet, "/api/search?q=widget", &search)
	if search.Count != 1 {
		t.Errorf("search count = %d, want 1", search.Count)
	}

	var stats struct {
		Store models.StoreStats `json:"store"`
	}
	doJSON(t, s, http.MethodGet, "/api/stats", &stats)
	if stats.Store.Total != 2 || stats.Store.WithPrice != 2 {
		t.Errorf("stats = %+v", stats.Store)
	}
}

func TestScrapeUnknownSource(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/scrape?source=nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSources(t *testing.T) {
	s := testServer(t)
	doJSON(t, s, http.MethodPost, "/api/scrape", nil)

	var body struct {
		Configured []models.SourceSpec `json:"configured"`
		Stored     []string            `json:"stored"`
	}
	doJSON(t, s, http.MethodGet, "/api/sources", &body)
	if len(body.Configured) != 1 || body.Configured[0].Name != "shop" {
		t.Errorf("configured = %+v", body.Configured)
	}
	if len(body.Stored) != 1 || body.Stored[0] != "shop" {
		t.Errorf("stored = %v", body.Stored)
	}
}

func TestExportCSV(t *testing.T) {
	s := testServer(t)
	doJSON(t, s, http.MethodPost, "/api/scrape", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/export/csv", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("bad csv: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("got %d rows, want header + 2", len(rows))
	}
}
