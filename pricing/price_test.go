package pricing

import (
	"testing"

	"pricing_service/errors"
)

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"1200", 1200},
		{"MXN 1,200", 1200},
		{"$ 950.50", 950.5},
		{"US$1,234.56", 1234.56},
		{"  2,500  ", 2500},
	}

	for _, c := range cases {
		got, err := NormalizePrice(c.raw)
		if err != nil {
			t.Fatalf("NormalizePrice(%q): unexpected error: %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("NormalizePrice(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestNormalizePriceRejectsMalformedValues(t *testing.T) {
	for _, raw := range []string{"abc", "", "-5", "0", "N/A", "$-120"} {
		_, err := NormalizePrice(raw)
		if err == nil {
			t.Errorf("NormalizePrice(%q): expected error", raw)
			continue
		}
		if _, ok := err.(*errors.InvalidPriceError); !ok {
			t.Errorf("NormalizePrice(%q): expected InvalidPriceError, got %T", raw, err)
		}
	}
}
