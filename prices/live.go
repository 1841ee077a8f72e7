package prices

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/icodeforyou/pvpc-go/types/maybe"
	"github.com/shopspring/decimal"
)

// LiveStatus describes one hour within the analytics of its day.
type LiveStatus struct {
	DateTime          string          `json:"dateTime"`
	Price             decimal.Decimal `json:"price"`
	DayRating         types.DayRating `json:"dayRating"`
	DailyAverage      decimal.Decimal `json:"dailyAverage"`
	ThirtyDayAverage  decimal.Decimal `json:"thirtyDayAverage"`
	InCheapPeriod     bool            `json:"inCheapPeriod"`
	InExpensivePeriod bool            `json:"inExpensivePeriod"`

	// Null at the last hour of the day until the next day is published
	NextHourPrice maybe.Maybe[decimal.Decimal] `json:"nextHourPrice"`
}

func (s *Service) LiveStatus(ctx context.Context, at hours.DateHour) (LiveStatus, error) {
	info, err := s.GetDailyPriceInfo(ctx, at.Date)
	if err != nil {
		return LiveStatus{}, err
	}

	current, found := types.PricePoint{}, false
	for _, pp := range info.Prices {
		if pp.When == at {
			current, found = pp, true
			break
		}
	}
	if !found {
		return LiveStatus{}, fmt.Errorf("%w: no price for %s", types.ErrNotYetAvailable, at)
	}

	return LiveStatus{
		DateTime:          at.IsoString(),
		Price:             current.Price,
		DayRating:         info.DayRating,
		DailyAverage:      types.Period(info.Prices).Average(),
		ThirtyDayAverage:  info.ThirtyDayAverage,
		InCheapPeriod:     anyContains(info.CheapPeriods, at),
		InExpensivePeriod: anyContains(info.ExpensivePeriods, at),
		NextHourPrice:     s.nextHourPrice(ctx, info.Prices, at),
	}, nil
}

func (s *Service) nextHourPrice(ctx context.Context, day []types.PricePoint, at hours.DateHour) maybe.Maybe[decimal.Decimal] {
	next := at.Add(1)
	if next.Date != at.Date {
		var err error
		day, err = s.store.QueryDay(ctx, next.Date)
		if err != nil {
			s.logger.Debug("next day prices", slog.String("date", next.Date), slog.Any("error", err))
			return maybe.None[decimal.Decimal]()
		}
	}
	for _, pp := range day {
		if pp.When == next {
			return maybe.Some(pp.Price)
		}
	}
	return maybe.None[decimal.Decimal]()
}

func anyContains(periods []types.Period, at hours.DateHour) bool {
	for _, p := range periods {
		if p.Contains(at) {
			return true
		}
	}
	return false
}
