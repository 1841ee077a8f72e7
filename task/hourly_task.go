package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/icodeforyou/pvpc-go/convert"
	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/icodeforyou/pvpc-go/types"
)

type RecentPrices interface {
	Reload(ctx context.Context) error
	Get(hour hours.DateHour) (types.PricePoint, bool)
}

type LiveStatuser interface {
	LiveStatus(ctx context.Context, at hours.DateHour) (prices.LiveStatus, error)
}

type PricePublisher interface {
	PublishCurrentPrice(pp types.PricePoint) error
	PublishRating(date string, status prices.LiveStatus) error
}

type PriceGauge interface {
	SetCurrentPrice(price float64)
}

type HourlyDeps struct {
	Recent RecentPrices
	Live   LiveStatuser
	// Publisher and Gauge are optional.
	Publisher PricePublisher
	Gauge     PriceGauge
	Now       func() time.Time
}

// NewHourlyTask reloads the recent hours and publishes the price of the
// hour that just started together with today's rating.
func NewHourlyTask(logger *slog.Logger, deps HourlyDeps) func() {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return func() {
		logger.Debug("running hourly task...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := deps.Recent.Reload(ctx); err != nil {
			logger.Error("hourly task error, reload recent hours", slog.Any("error", err))
		}

		currHour := hours.FromTime(deps.Now())
		pp, ok := deps.Recent.Get(currHour)
		if !ok {
			logger.Warn("no price for the current hour", slog.String("hour", currHour.String()))
			return
		}

		if deps.Gauge != nil {
			deps.Gauge.SetCurrentPrice(convert.ToFloat(pp.Price))
		}

		if deps.Publisher != nil {
			if err := deps.Publisher.PublishCurrentPrice(pp); err != nil {
				logger.Error("hourly task error, publishing current price", slog.Any("error", err))
			}
		}

		status, err := deps.Live.LiveStatus(ctx, currHour)
		switch {
		case errors.Is(err, types.ErrNotYetAvailable):
			logger.Info("today is incomplete, rating not published", slog.String("date", currHour.Date))
		case err != nil:
			logger.Error("hourly task error, rating today", slog.Any("error", err))
		case deps.Publisher != nil:
			if err := deps.Publisher.PublishRating(currHour.Date, status); err != nil {
				logger.Error("hourly task error, publishing rating", slog.Any("error", err))
			}
		}

		logger.Info("hourly task done", slog.String("hour", currHour.String()))
	}
}
