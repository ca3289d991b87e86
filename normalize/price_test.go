package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPrice(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		raw      string
		min      *float64
		max      *float64
		currency string
	}{
		{"usd simple", "US$12.50", f(12.50), f(12.50), "USD"},
		{"usd range", "US$12.50-15.80 / piece", f(12.50), f(15.80), "USD"},
		{"usd range tilde", "US$ 1.20~2.40", f(1.20), f(2.40), "USD"},
		{"dollar only", "$99", f(99), f(99), "USD"},
		{"inr symbol", "₹ 4,500 / Unit", f(4500), f(4500), "INR"},
		{"inr rs dot", "Rs. 12,000", f(12000), f(12000), "INR"},
		{"cny yuan", "¥35.00", f(35), f(35), "CNY"},
		{"cny hanzi", "12 元", nil, nil, ""},
		{"euro", "€ 210.99", f(210.99), f(210.99), "EUR"},
		{"inverted range", "US$15.80-12.50", f(12.50), f(15.80), "USD"},
		{"no currency", "100 pieces", nil, nil, ""},
		{"no info", "no info", nil, nil, ""},
		{"empty", "", nil, nil, ""},
		{"marker without number", "Price in US$ on request", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max, currency := ExtractPrice(tt.raw)
			if tt.min == nil {
				assert.Nil(t, min)
				assert.Nil(t, max)
			} else {
				if assert.NotNil(t, min) {
					assert.InDelta(t, *tt.min, *min, 0.0001)
				}
				if assert.NotNil(t, max) {
					assert.InDelta(t, *tt.max, *max, 0.0001)
				}
			}
			assert.Equal(t, tt.currency, currency)
		})
	}
}
