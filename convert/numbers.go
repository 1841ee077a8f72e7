package convert

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Cents rounds a price in currency units to whole cents, half away from zero.
func Cents(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

func TwoDecimals(number decimal.Decimal) decimal.Decimal {
	return number.Round(2)
}

func RoundDecimal(number decimal.Decimal, decimals int32) decimal.Decimal {
	return number.Round(decimals)
}

// ToFloat is for sinks that only take floats, like prometheus gauges.
func ToFloat(number decimal.Decimal) float64 {
	return number.InexactFloat64()
}
