package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRe captures an optional currency glyph followed by a decimal with
// optional thousands/decimal separators.
var priceRe = regexp.MustCompile(`([$£€])?\s*([0-9]+(?:[.,][0-9]+)*)`)

var glyphCurrency = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
}

// ParsePrice extracts the first price from a text fragment. currency is
// "" when no glyph precedes the number.
func ParsePrice(text string) (price float64, currency string, ok bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	currency = glyphCurrency[m[1]]

	p, err := strconv.ParseFloat(normalizeNumber(m[2]), 64)
	if err != nil {
		return 0, "", false
	}
	return p, currency, true
}

// normalizeNumber reduces "1,234.56", "1.234,56", and "10,50" to a form
// strconv can parse. When both separators appear, the last one is the
// decimal point; a lone comma followed by exactly two digits is treated
// as a decimal comma.
func normalizeNumber(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}
