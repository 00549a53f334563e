package analytics

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// money rounds d half away from zero to cents.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// percentage returns part/whole*100 rounded to two places, or 0 for an
// empty whole.
func percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).Round(2).InexactFloat64()
}
