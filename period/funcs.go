package period

import (
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

// Package level helpers using the default settings.

func CheapestFixedWindow(prices []types.PricePoint, n int) types.Period {
	return Default.CheapestFixedWindow(prices, n)
}

func MostExpensiveFixedWindow(prices []types.PricePoint, n int) types.Period {
	return Default.MostExpensiveFixedWindow(prices, n)
}

func TwoCheapestFixedWindows(prices []types.PricePoint, n int) (types.Period, types.Period) {
	return Default.TwoCheapestFixedWindows(prices, n)
}

func CheapestVariableWindow(prices []types.PricePoint) types.Period {
	return Default.CheapestVariableWindow(prices)
}

func MostExpensiveVariableWindow(prices []types.PricePoint) types.Period {
	return Default.MostExpensiveVariableWindow(prices)
}

func AdaptiveCheapPeriods(prices []types.PricePoint, thirtyDayAverage decimal.Decimal) []types.Period {
	return Default.AdaptiveCheapPeriods(prices, thirtyDayAverage)
}

func AdaptiveExpensivePeriods(prices []types.PricePoint, thirtyDayAverage decimal.Decimal) []types.Period {
	return Default.AdaptiveExpensivePeriods(prices, thirtyDayAverage)
}
