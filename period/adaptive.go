package period

import (
	"slices"

	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

var (
	two   = decimal.NewFromInt(2)
	three = decimal.NewFromInt(3)
	six   = decimal.NewFromInt(6)
)

// Baseline is the reference average the adaptive variance is measured from.
func (e Engine) Baseline(dailyAverage, thirtyDayAverage decimal.Decimal) decimal.Decimal {
	if e.settings.Blend == BlendThirtyDay {
		return thirtyDayAverage
	}
	return dailyAverage.Mul(two).Add(thirtyDayAverage).Div(three)
}

// CheapVariance is how far above the cheapest price an hour may be and still
// count as cheap. It is bounded by a sixth and a third of the day's spread.
func (e Engine) CheapVariance(prices []types.PricePoint, thirtyDayAverage decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	low, high := bounds(prices)
	baseline := e.Baseline(types.Period(prices).Average(), thirtyDayAverage)
	variance := baseline.Sub(low).Div(e.settings.VarianceDivisor)
	return clampVariance(variance, low, high)
}

// ExpensiveVariance is how far below the most expensive price an hour may be
// and still count as expensive.
func (e Engine) ExpensiveVariance(prices []types.PricePoint, thirtyDayAverage decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	low, high := bounds(prices)
	baseline := e.Baseline(types.Period(prices).Average(), thirtyDayAverage)
	variance := high.Sub(baseline).Div(e.settings.VarianceDivisor)
	return clampVariance(variance, low, high)
}

// AdaptiveCheapPeriods selects the hours within the cheap variance of the
// cheapest price and joins them into runs of consecutive hours.
func (e Engine) AdaptiveCheapPeriods(prices []types.PricePoint, thirtyDayAverage decimal.Decimal) []types.Period {
	sorted := types.SortedByHour(prices)
	if len(sorted) == 0 {
		return []types.Period{}
	}

	variance := e.CheapVariance(sorted, thirtyDayAverage)
	cheapest, _ := bounds(sorted)

	selected := slices.DeleteFunc(slices.Clone(sorted), func(p types.PricePoint) bool {
		return p.Price.Sub(cheapest).GreaterThan(variance)
	})
	return JoinAdjacent(selected)
}

// AdaptiveExpensivePeriods selects the hours within the expensive variance of
// the most expensive price. Nothing is returned on days where even the most
// expensive hour is not above the thirty-day average minus the rating variance,
// nor on flat days, whose hours all count as cheap.
func (e Engine) AdaptiveExpensivePeriods(prices []types.PricePoint, thirtyDayAverage decimal.Decimal) []types.Period {
	sorted := types.SortedByHour(prices)
	if len(sorted) == 0 {
		return []types.Period{}
	}

	cheapest, expensive := bounds(sorted)
	if expensive.Equal(cheapest) || !expensive.GreaterThan(thirtyDayAverage.Sub(e.settings.RatingVariance)) {
		return []types.Period{}
	}

	variance := e.ExpensiveVariance(sorted, thirtyDayAverage)
	selected := slices.DeleteFunc(slices.Clone(sorted), func(p types.PricePoint) bool {
		return expensive.Sub(p.Price).GreaterThan(variance)
	})
	return JoinAdjacent(selected)
}

// JoinAdjacent splits hour ordered prices into maximal runs of consecutive
// hours, keeping their order.
func JoinAdjacent(prices []types.PricePoint) []types.Period {
	periods := []types.Period{}
	for i := 0; i < len(prices); {
		j := i + 1
		for j < len(prices) && prices[j].When == prices[j-1].When.Add(1) {
			j++
		}
		periods = append(periods, slices.Clone(types.Period(prices[i:j])))
		i = j
	}
	return periods
}

func bounds(prices []types.PricePoint) (decimal.Decimal, decimal.Decimal) {
	low, high := prices[0].Price, prices[0].Price
	for _, p := range prices[1:] {
		low = decimal.Min(low, p.Price)
		high = decimal.Max(high, p.Price)
	}
	return low, high
}

func clampVariance(variance, low, high decimal.Decimal) decimal.Decimal {
	spread := high.Sub(low)
	minVariance := spread.Div(six)
	maxVariance := spread.Div(three)
	return decimal.Min(decimal.Max(variance, minVariance), maxVariance)
}
