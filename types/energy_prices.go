package types

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/shopspring/decimal"
)

// PricePoint is the price of one calendar hour in currency per kWh.
type PricePoint struct {
	ID    string
	When  hours.DateHour
	Price decimal.Decimal
}

func NewPricePoint(when hours.DateHour, price decimal.Decimal) PricePoint {
	return PricePoint{ID: when.Key(), When: when, Price: price}
}

type pricePointJSON struct {
	ID       string          `json:"id"`
	DateTime string          `json:"dateTime"`
	Price    decimal.Decimal `json:"price"`
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(pricePointJSON{ID: p.ID, DateTime: p.When.IsoString(), Price: p.Price})
}

// Period is an ordered run of consecutive hours.
type Period []PricePoint

func (p Period) IsEmpty() bool {
	return len(p) == 0
}

func (p Period) Start() hours.DateHour {
	if len(p) == 0 {
		return hours.DateHour{}
	}
	return p[0].When
}

func (p Period) End() hours.DateHour {
	if len(p) == 0 {
		return hours.DateHour{}
	}
	return p[len(p)-1].When
}

func (p Period) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, pp := range p {
		sum = sum.Add(pp.Price)
	}
	return sum
}

func (p Period) Average() decimal.Decimal {
	if len(p) == 0 {
		return decimal.Zero
	}
	return p.Sum().Div(decimal.NewFromInt(int64(len(p))))
}

func (p Period) Contains(dh hours.DateHour) bool {
	return slices.ContainsFunc(p, func(pp PricePoint) bool { return pp.When == dh })
}

// Contiguous reports whether every hour is the successor of the previous one.
func (p Period) Contiguous() bool {
	for i := 1; i < len(p); i++ {
		if p[i].When != p[i-1].When.Add(1) {
			return false
		}
	}
	return true
}

// SortedByHour returns a copy of the prices ordered by hour.
func SortedByHour(prices []PricePoint) []PricePoint {
	sorted := slices.Clone(prices)
	slices.SortStableFunc(sorted, func(a, b PricePoint) int { return a.When.Compare(b.When) })
	return sorted
}

type DayRating string

const (
	DayRatingGood   DayRating = "GOOD"
	DayRatingNormal DayRating = "NORMAL"
	DayRatingBad    DayRating = "BAD"
)

type DailyPriceInfo struct {
	DayRating        DayRating       `json:"dayRating"`
	ThirtyDayAverage decimal.Decimal `json:"thirtyDayAverage"`
	Prices           []PricePoint    `json:"prices"`
	CheapPeriods     []Period        `json:"cheapestPeriods"`
	ExpensivePeriods []Period        `json:"expensivePeriods"`
}

type DailyAverage struct {
	Date    string          `json:"date"`
	Average decimal.Decimal `json:"average"`
}

// PriceSource is an upstream that publishes the prices of one day at a time.
// It returns ErrNotYetAvailable when the day has not been published.
type PriceSource interface {
	Name() string
	GetDayPrices(ctx context.Context, date string) ([]PricePoint, error)
}
