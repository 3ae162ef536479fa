package extract

import (
	"testing"

	"github.com/webharvest/harvester/internal/fetch"
	"github.com/webharvest/harvester/pkg/models"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<div class="product">
  <h2 class="title">Mechanical Keyboard</h2>
  <span class="price">£51.77</span>
  <a href="/items/keyboard"><img src="/img/keyboard.jpg"></a>
</div>
<div class="product">
  <h2 class="title">USB Microphone</h2>
  <span class="price">£34.99</span>
  <a href="/items/mic"><img src="/img/mic.jpg"></a>
</div>
<div class="product">
  <h2 class="title">Desk Lamp</h2>
  <span class="price">£12.50</span>
  <a href="/items/lamp"><img src="/img/lamp.jpg"></a>
</div>
</body></html>`

func TestEcommerceExtractListing(t *testing.T) {
	spec := models.SourceSpec{
		Name: "shop",
		URL:  "https://shop.example.com/catalog",
		Kind: models.KindEcommerce,
	}

	records, err := Ecommerce{}.Extract(fetch.Body{Bytes: []byte(listingPage)}, spec)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	first := records[0]
	if first.Title != "Mechanical Keyboard" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Price == nil || *first.Price != 51.77 {
		t.Errorf("price = %v, want 51.77", first.Price)
	}
	if got := first.Metadata["currency"]; got != "GBP" {
		t.Errorf("currency = %v, want GBP", got)
	}
	if got := first.Metadata["price_text"]; got != "£51.77" {
		t.Errorf("price_text = %v", got)
	}
	if first.URL != "https://shop.example.com/items/keyboard" {
		t.Errorf("url = %q", first.URL)
	}
	if first.ImageURL != "https://shop.example.com/img/keyboard.jpg" {
		t.Errorf("image = %q", first.ImageURL)
	}
	if first.Source != "shop" {
		t.Errorf("source = %q", first.Source)
	}
	if first.ID == "" {
		t.Error("record id not assigned")
	}
}

func TestEcommerceExtractNoMatches(t *testing.T) {
	spec := models.SourceSpec{
		Name: "shop",
		URL:  "https://shop.example.com",
		Kind: models.KindEcommerce,
	}

	page := []byte(`<html><body><p>Nothing for sale today.</p></body></html>`)
	records, err := Ecommerce{}.Extract(fetch.Body{Bytes: page}, spec)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}

func TestEcommerceExtractCustomSelectors(t *testing.T) {
	page := []byte(`<html><body>
		<li class="offer"><b class="n">Widget</b><i class="p">$9.99</i></li>
	</body></html>`)
	spec := models.SourceSpec{
		Name: "shop",
		URL:  "https://shop.example.com",
		Kind: models.KindEcommerce,
		Selectors: map[string]string{
			"container": ".offer",
			"title":     ".n",
			"price":     ".p",
		},
	}

	records, err := Ecommerce{}.Extract(fetch.Body{Bytes: page}, spec)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Title != "Widget" {
		t.Errorf("title = %q", records[0].Title)
	}
	if records[0].Price == nil || *records[0].Price != 9.99 {
		t.Errorf("price = %v, want 9.99", records[0].Price)
	}
	if records[0].Metadata["currency"] != "USD" {
		t.Errorf("currency = %v", records[0].Metadata["currency"])
	}
}
