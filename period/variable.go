package period

import (
	"slices"

	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

// CheapestVariableWindow grows a window around the cheapest hour while the
// neighbouring hours cost less than the tolerance more than it.
func (e Engine) CheapestVariableWindow(prices []types.PricePoint) types.Period {
	sorted := types.SortedByHour(prices)
	anchor := extremeIndex(sorted, decimal.Decimal.LessThan)
	if anchor < 0 {
		return types.Period{}
	}
	return e.growAround(sorted, anchor)
}

// MostExpensiveVariableWindow grows a window around the most expensive hour.
func (e Engine) MostExpensiveVariableWindow(prices []types.PricePoint) types.Period {
	sorted := types.SortedByHour(prices)
	anchor := extremeIndex(sorted, decimal.Decimal.GreaterThan)
	if anchor < 0 {
		return types.Period{}
	}
	return e.growAround(sorted, anchor)
}

func (e Engine) growAround(sorted []types.PricePoint, anchor int) types.Period {
	ref := sorted[anchor].Price
	alike := func(i int) bool {
		return sorted[i].Price.Sub(ref).Abs().LessThan(e.settings.Tolerance)
	}

	lo, hi := anchor, anchor
	for lo > 0 && sorted[lo-1].When.Add(1) == sorted[lo].When && alike(lo-1) {
		lo--
	}
	for hi < len(sorted)-1 && sorted[hi].When.Add(1) == sorted[hi+1].When && alike(hi+1) {
		hi++
	}
	return slices.Clone(types.Period(sorted[lo : hi+1]))
}

// extremeIndex returns the index of the first price for which no later price
// is better, or -1 for an empty slice.
func extremeIndex(prices []types.PricePoint, better func(decimal.Decimal, decimal.Decimal) bool) int {
	if len(prices) == 0 {
		return -1
	}
	idx := 0
	for i := 1; i < len(prices); i++ {
		if better(prices[i].Price, prices[idx].Price) {
			idx = i
		}
	}
	return idx
}
