package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "R$ 0,00"},
		{"0.5", "R$ 0,50"},
		{"87.45", "R$ 87,45"},
		{"195.235", "R$ 195,24"},
		{"999.999", "R$ 1.000,00"},
		{"1234.5", "R$ 1.234,50"},
		{"1200000", "R$ 1.200.000,00"},
		{"-80", "-R$ 80,00"},
		{"-0.001", "R$ 0,00"},
		{"12345678901234567.89", "R$ 12.345.678.901.234.567,89"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBRL(decimal.RequireFromString(tt.amount)))
		})
	}
}
