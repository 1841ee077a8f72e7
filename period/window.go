package period

import (
	"slices"

	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

// CheapestFixedWindow returns the n consecutive hours with the lowest total
// price. Ties go to the earliest window. The result is empty when fewer
// than n prices are given.
func (e Engine) CheapestFixedWindow(prices []types.PricePoint, n int) types.Period {
	w, _ := fixedWindow(types.SortedByHour(prices), n, decimal.Decimal.LessThan)
	return w
}

// MostExpensiveFixedWindow returns the n consecutive hours with the highest
// total price, ties go to the earliest window.
func (e Engine) MostExpensiveFixedWindow(prices []types.PricePoint, n int) types.Period {
	w, _ := fixedWindow(types.SortedByHour(prices), n, decimal.Decimal.GreaterThan)
	return w
}

// TwoCheapestFixedWindows returns the cheapest n hour window and, when one
// exists, a second one before or after it whose average is within the
// tolerance of the first. A second window touching the first is merged into
// it. Windows are ordered by start hour.
func (e Engine) TwoCheapestFixedWindows(prices []types.PricePoint, n int) (types.Period, types.Period) {
	sorted := types.SortedByHour(prices)

	first, start := fixedWindow(sorted, n, decimal.Decimal.LessThan)
	if start < 0 {
		return types.Period{}, types.Period{}
	}

	before, _ := fixedWindow(sorted[:start], n, decimal.Decimal.LessThan)
	after, _ := fixedWindow(sorted[start+n:], n, decimal.Decimal.LessThan)

	var second types.Period
	switch {
	case before.IsEmpty():
		second = after
	case after.IsEmpty():
		second = before
	case after.Average().LessThan(before.Average()):
		second = after
	default:
		second = before
	}

	if second.IsEmpty() {
		return first, types.Period{}
	}

	if second.Average().Sub(first.Average()).Abs().GreaterThan(e.settings.Tolerance) {
		return first, types.Period{}
	}

	if second.End().Add(1) == first.Start() {
		return append(slices.Clone(second), first...), types.Period{}
	}
	if first.End().Add(1) == second.Start() {
		return append(slices.Clone(first), second...), types.Period{}
	}

	if second.Start().Compare(first.Start()) < 0 {
		return second, first
	}
	return first, second
}

// fixedWindow returns the window of n consecutive hours with the best sum,
// the earliest one on ties, and its start index or -1 when there is none.
func fixedWindow(sorted []types.PricePoint, n int, better func(decimal.Decimal, decimal.Decimal) bool) (types.Period, int) {
	if n <= 0 || len(sorted) < n {
		return types.Period{}, -1
	}

	bestStart := -1
	var bestSum decimal.Decimal
	for i := 0; i+n <= len(sorted); i++ {
		window := types.Period(sorted[i : i+n])
		if !window.Contiguous() {
			continue
		}
		sum := window.Sum()
		if bestStart < 0 || better(sum, bestSum) {
			bestStart = i
			bestSum = sum
		}
	}

	if bestStart < 0 {
		return types.Period{}, -1
	}
	return slices.Clone(types.Period(sorted[bestStart : bestStart+n])), bestStart
}
