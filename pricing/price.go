package pricing

import (
	"strconv"
	"strings"

	"pricing_service/errors"
)

// NormalizePrice parses a scraped price string into a plain amount.
// Scrapers hand us values like "MXN 1,200", "$ 950.50" or "1200"; currency
// codes, symbols and thousands separators are stripped before parsing.
// Non-numeric or non-positive values come back as InvalidPriceError so the
// record is excluded instead of polluting averages with zeros.
func NormalizePrice(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	var builder strings.Builder
	for _, c := range cleaned {
		if (c >= '0' && c <= '9') || c == '.' || c == '-' {
			builder.WriteRune(c)
		}
	}
	cleaned = builder.String()

	if cleaned == "" {
		return 0, &errors.InvalidPriceError{Value: raw}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, &errors.InvalidPriceError{Value: raw}
	}
	if value <= 0 {
		return 0, &errors.InvalidPriceError{Value: raw}
	}

	return value, nil
}

// ValidPrice reports whether an already-numeric record price may take part
// in averages and recommendations.
func ValidPrice(value float64) bool {
	return value > 0
}
