package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/webharvest/harvester/pkg/models"
)

func sampleRecords() []models.Record {
	priced := models.NewRecord("shop", "https://shop.example.com/a")
	priced.Title = "Widget, Deluxe"
	priced.SetPrice(9.99)
	priced.AddMetadata("currency", "USD")

	plain := models.NewRecord("news", "https://news.example.com/story")
	plain.Title = "Quiet Day"
	plain.Content = "Nothing happened."

	return []models.Record{priced, plain}
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleRecords()); err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded []models.Record
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Title != "Widget, Deluxe" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("output not indented")
	}
}

func TestCSVOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("CSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || rows[0][5] != "price" {
		t.Errorf("header = %v", rows[0])
	}
	// Commas in fields survive quoting.
	if rows[1][3] != "Widget, Deluxe" {
		t.Errorf("title = %q", rows[1][3])
	}
	if rows[1][5] != "9.99" {
		t.Errorf("price = %q", rows[1][5])
	}
	if rows[2][5] != "" {
		t.Errorf("unpriced row has price %q", rows[2][5])
	}
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := ToFile(path, sampleRecords(), JSON); err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []models.Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("file not valid JSON: %v", err)
	}
}
