package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMoq(t *testing.T) {
	n := func(v int) *int { return &v }

	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{"moq marker", "MOQ 100 pieces", n(100)},
		{"moq colon", "MOQ: 25", n(25)},
		{"min order", "Min. Order: 500 Pieces", n(500)},
		{"minimum order quantity", "Minimum Order Quantity 1,000", n(1000)},
		{"gte marker", "≥50 Sets", n(50)},
		{"ascii gte", ">= 10 lots", n(10)},
		{"foreign marker", "起订量: 200", n(200)},
		{"bare unit", "50 pieces (Min. Order)", n(50)},
		{"bare unit sets", "2 sets", n(2)},
		{"price not moq", "US$12 pieces", nil},
		{"currency adjacent", "₹500 units", nil},
		{"plain price", "US$12.50", nil},
		{"no info", "no info", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMoq(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
			} else if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}
