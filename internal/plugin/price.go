package plugin

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jonesrussell/gigharvest/internal/domain"
)

// priceNumberRe matches price figures with either decimal separator.
var priceNumberRe = regexp.MustCompile(`\d+(?:[.,]\d{1,2})?`)

// currencyMarkers lists symbols and codes found near price figures with
// their ISO 4217 codes. Ordered: detection scans them in this fixed
// order so the same input always resolves to the same currency.
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"€", "EUR"},
	{"eur", "EUR"},
	{"$", "USD"},
	{"usd", "USD"},
	{"£", "GBP"},
	{"gbp", "GBP"},
	{"sek", "SEK"},
	{"kr", "SEK"},
	{"nok", "NOK"},
	{"chf", "CHF"},
}

// ParsePrice extracts a price range from advertised text like
// "€10-€15", "15,50 EUR" or "Free". Returns false when no figure is
// found; "free" parses as a zero range.
func ParsePrice(value string) (domain.PriceRange, bool) {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" {
		return domain.PriceRange{}, false
	}

	currency := detectCurrency(lower)

	if strings.Contains(lower, "free") || strings.Contains(lower, "gratis") {
		return domain.PriceRange{Currency: currency}, true
	}

	matches := priceNumberRe.FindAllString(lower, -1)
	if len(matches) == 0 {
		return domain.PriceRange{}, false
	}

	minPrice := parseFigure(matches[0])
	maxPrice := minPrice
	if len(matches) > 1 {
		maxPrice = parseFigure(matches[len(matches)-1])
	}
	if maxPrice < minPrice {
		minPrice, maxPrice = maxPrice, minPrice
	}

	return domain.PriceRange{
		Min:      minPrice,
		Max:      maxPrice,
		Currency: currency,
	}, true
}

func parseFigure(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// detectCurrency picks the marker appearing earliest in the string; for
// markers at the same position the currencyMarkers order decides. Either
// way the outcome is a pure function of the input.
func detectCurrency(lower string) string {
	code := ""
	best := -1
	for _, m := range currencyMarkers {
		idx := strings.Index(lower, m.marker)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			code = m.code
			best = idx
		}
	}
	return code
}
