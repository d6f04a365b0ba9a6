// Package money formats amounts the way Brazilian households read them.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders amount as reais, e.g. "R$ 1.234,56" or "-R$ 80,00".
// Cents are rounded half away from zero without going through float64.
func FormatBRL(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	abs := rounded.Abs()
	whole := abs.Truncate(0)
	cents := abs.Sub(whole).Shift(2).IntPart()

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, groupThousands(whole), cents)
}

// groupThousands prints a non-negative integer with the locale's grouping.
func groupThousands(whole decimal.Decimal) string {
	if whole.BigInt().IsInt64() {
		return printer.Sprintf("%d", whole.IntPart())
	}
	return printer.Sprint(whole.BigInt())
}
