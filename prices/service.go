// Package prices answers analytics questions about stored days. It reads
// through a Store and runs the period and rating engines on the result.
package prices

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/period"
	"github.com/icodeforyou/pvpc-go/pricesync"
	"github.com/icodeforyou/pvpc-go/rating"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

const MaxWindowSize = 24

type Store interface {
	QueryDay(ctx context.Context, date string) ([]types.PricePoint, error)
	ThirtyDayAverage(ctx context.Context, date string) (decimal.Decimal, error)
	DailyAverages(ctx context.Context, from, to string) ([]types.DailyAverage, error)
}

type Service struct {
	logger *slog.Logger
	store  Store
	engine period.Engine
	rater  rating.Rater
}

func New(logger *slog.Logger, store Store, engine period.Engine, rater rating.Rater) *Service {
	return &Service{
		logger: logger,
		store:  store,
		engine: engine,
		rater:  rater,
	}
}

func (s *Service) Engine() period.Engine {
	return s.engine
}

// GetPrices returns whatever is stored for date, possibly an incomplete day.
func (s *Service) GetPrices(ctx context.Context, date string) ([]types.PricePoint, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	prices, err := s.store.QueryDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("getting prices for %s: %w", date, err)
	}
	return prices, nil
}

// GetDayPrices returns the 24 prices of a complete day or ErrNotYetAvailable.
func (s *Service) GetDayPrices(ctx context.Context, date string) ([]types.PricePoint, error) {
	prices, err := s.GetPrices(ctx, date)
	if err != nil {
		return nil, err
	}
	if err := pricesync.ValidatePricesForDay(date, prices); err != nil {
		s.logger.Debug("day is not complete", slog.String("date", date), slog.Any("error", err))
		return nil, fmt.Errorf("prices for %s: %w", date, types.ErrNotYetAvailable)
	}
	return prices, nil
}

func (s *Service) GetDailyPriceInfo(ctx context.Context, date string) (types.DailyPriceInfo, error) {
	prices, err := s.GetDayPrices(ctx, date)
	if err != nil {
		return types.DailyPriceInfo{}, err
	}

	thirty, err := s.store.ThirtyDayAverage(ctx, date)
	if err != nil {
		return types.DailyPriceInfo{}, fmt.Errorf("thirty day average for %s: %w", date, err)
	}

	return types.DailyPriceInfo{
		DayRating:        s.rater.Rate(types.Period(prices).Average(), thirty),
		ThirtyDayAverage: thirty,
		Prices:           prices,
		CheapPeriods:     s.engine.AdaptiveCheapPeriods(prices, thirty),
		ExpensivePeriods: s.engine.AdaptiveExpensivePeriods(prices, thirty),
	}, nil
}

func (s *Service) GetThirtyDayAverage(ctx context.Context, date string) (decimal.Decimal, error) {
	if err := validateDate(date); err != nil {
		return decimal.Zero, err
	}
	avg, err := s.store.ThirtyDayAverage(ctx, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("thirty day average for %s: %w", date, err)
	}
	return avg, nil
}

// GetDailyAverages returns the average of each stored day from days before
// date up to date.
func (s *Service) GetDailyAverages(ctx context.Context, date string, days int) ([]types.DailyAverage, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", types.ErrInvalidInput, days)
	}
	averages, err := s.store.DailyAverages(ctx, hours.AddDays(date, -days), date)
	if err != nil {
		return nil, fmt.Errorf("daily averages up to %s: %w", date, err)
	}
	if len(averages) == 0 {
		return nil, fmt.Errorf("daily averages up to %s: %w", date, types.ErrNotYetAvailable)
	}
	return averages, nil
}

func (s *Service) CheapestWindow(ctx context.Context, date string, n int) (types.Period, error) {
	prices, err := s.windowPrices(ctx, date, n)
	if err != nil {
		return nil, err
	}
	return s.engine.CheapestFixedWindow(prices, n), nil
}

func (s *Service) MostExpensiveWindow(ctx context.Context, date string, n int) (types.Period, error) {
	prices, err := s.windowPrices(ctx, date, n)
	if err != nil {
		return nil, err
	}
	return s.engine.MostExpensiveFixedWindow(prices, n), nil
}

func (s *Service) TwoCheapestWindows(ctx context.Context, date string, n int) (types.Period, types.Period, error) {
	prices, err := s.windowPrices(ctx, date, n)
	if err != nil {
		return nil, nil, err
	}
	first, second := s.engine.TwoCheapestFixedWindows(prices, n)
	return first, second, nil
}

func (s *Service) CheapestPeriod(ctx context.Context, date string) (types.Period, error) {
	prices, err := s.GetDayPrices(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.engine.CheapestVariableWindow(prices), nil
}

func (s *Service) MostExpensivePeriod(ctx context.Context, date string) (types.Period, error) {
	prices, err := s.GetDayPrices(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.engine.MostExpensiveVariableWindow(prices), nil
}

func (s *Service) Rate(value, baseline decimal.Decimal) types.DayRating {
	return s.rater.Rate(value, baseline)
}

func (s *Service) windowPrices(ctx context.Context, date string, n int) ([]types.PricePoint, error) {
	if n < 1 || n > MaxWindowSize {
		return nil, fmt.Errorf("%w: window size must be between 1 and %d, got %d", types.ErrInvalidInput, MaxWindowSize, n)
	}
	return s.GetDayPrices(ctx, date)
}

func validateDate(date string) error {
	if !hours.IsValidDate(date) {
		return fmt.Errorf("%w: the provided date %q is invalid, it must match yyyy-MM-dd", types.ErrInvalidInput, date)
	}
	return nil
}
