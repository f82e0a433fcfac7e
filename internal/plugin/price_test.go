package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/plugin"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  domain.PriceRange
		ok    bool
	}{
		{
			name:  "single figure with symbol",
			value: "$25",
			want:  domain.PriceRange{Min: 25, Max: 25, Currency: "USD"},
			ok:    true,
		},
		{
			name:  "range with symbol",
			value: "€10-€15",
			want:  domain.PriceRange{Min: 10, Max: 15, Currency: "EUR"},
			ok:    true,
		},
		{
			name:  "decimal comma with code",
			value: "15,50 EUR",
			want:  domain.PriceRange{Min: 15.5, Max: 15.5, Currency: "EUR"},
			ok:    true,
		},
		{
			name:  "free entry",
			value: "Free",
			want:  domain.PriceRange{},
			ok:    true,
		},
		{
			name:  "reversed range is normalized",
			value: "£30 - £20",
			want:  domain.PriceRange{Min: 20, Max: 30, Currency: "GBP"},
			ok:    true,
		},
		{
			name:  "two currencies takes the first",
			value: "€10 / $15",
			want:  domain.PriceRange{Min: 10, Max: 15, Currency: "EUR"},
			ok:    true,
		},
		{
			name:  "two currencies reversed order",
			value: "$10 / €15",
			want:  domain.PriceRange{Min: 10, Max: 15, Currency: "USD"},
			ok:    true,
		},
		{
			name:  "no figure",
			value: "tba",
			ok:    false,
		},
		{
			name:  "empty",
			value: "  ",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := plugin.ParsePrice(tt.value)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParsePriceDeterministic(t *testing.T) {
	first, ok := plugin.ParsePrice("€10 / $15")
	require.True(t, ok)

	for i := 0; i < 200; i++ {
		got, gotOK := plugin.ParsePrice("€10 / $15")
		require.True(t, gotOK)
		require.Equal(t, first, got)
	}
}
