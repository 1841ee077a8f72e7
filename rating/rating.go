// Package rating classifies a day's average price against a baseline.
package rating

import (
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

var DefaultVariance = decimal.RequireFromString("0.02")

type Rater struct {
	Variance decimal.Decimal
}

var Default = Rater{Variance: DefaultVariance}

func New(variance decimal.Decimal) Rater {
	if variance.IsNegative() {
		variance = variance.Neg()
	}
	return Rater{Variance: variance}
}

// Rate is GOOD below baseline minus the variance, BAD above baseline plus the
// variance and NORMAL in between, both bounds included.
func (r Rater) Rate(value, baseline decimal.Decimal) types.DayRating {
	switch {
	case value.LessThan(baseline.Sub(r.Variance)):
		return types.DayRatingGood
	case value.GreaterThan(baseline.Add(r.Variance)):
		return types.DayRatingBad
	default:
		return types.DayRatingNormal
	}
}

func Rate(value, baseline decimal.Decimal) types.DayRating {
	return Default.Rate(value, baseline)
}
