package extract

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in       string
		price    float64
		currency string
		ok       bool
	}{
		{"$19.99", 19.99, "USD", true},
		{"£51.77", 51.77, "GBP", true},
		{"€1.234,56", 1234.56, "EUR", true},
		{"1,234.56", 1234.56, "", true},
		{"Price: $ 42", 42, "USD", true},
		{"10,50", 10.50, "", true},
		{"1,234", 1234, "", true},
		{"free", 0, "", false},
		{"", 0, "", false},
	}

	for _, tt := range tests {
		price, currency, ok := ParsePrice(tt.in)
		if ok != tt.ok {
			t.Errorf("ParsePrice(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if price != tt.price || currency != tt.currency {
			t.Errorf("ParsePrice(%q) = (%v, %q), want (%v, %q)",
				tt.in, price, currency, tt.price, tt.currency)
		}
	}
}
