// Package period segments a day of hourly prices into cheap and expensive
// windows. Every function is pure: it sorts its input by hour and never
// mutates it, so an Engine can be shared by any number of readers.
package period

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Blend selects the baseline the adaptive variance is measured from.
type Blend string

const (
	// BlendCombined weights the daily average twice as much as the thirty-day average.
	BlendCombined Blend = "combined"
	// BlendThirtyDay uses the thirty-day average alone.
	BlendThirtyDay Blend = "thirty_day"
)

func ParseBlend(s string) (Blend, error) {
	switch strings.ToLower(s) {
	case "", string(BlendCombined):
		return BlendCombined, nil
	case string(BlendThirtyDay):
		return BlendThirtyDay, nil
	default:
		return "", fmt.Errorf("unknown blend %q", s)
	}
}

type Settings struct {
	// Maximum price difference for two windows or neighbouring hours to be
	// considered alike, in currency per kWh.
	Tolerance decimal.Decimal
	// Distance from the thirty-day average for a day to be rated good or bad.
	RatingVariance decimal.Decimal
	// The adaptive variance is the distance between the baseline and the
	// cheapest (or most expensive) price divided by this value.
	VarianceDivisor decimal.Decimal
	Blend           Blend
}

func DefaultSettings() Settings {
	return Settings{
		Tolerance:       decimal.RequireFromString("0.02"),
		RatingVariance:  decimal.RequireFromString("0.02"),
		VarianceDivisor: decimal.NewFromInt(2),
		Blend:           BlendCombined,
	}
}

type Engine struct {
	settings Settings
}

func New(settings Settings) Engine {
	if settings.VarianceDivisor.IsZero() {
		settings.VarianceDivisor = decimal.NewFromInt(2)
	}
	if settings.Blend == "" {
		settings.Blend = BlendCombined
	}
	return Engine{settings: settings}
}

func (e Engine) Settings() Settings {
	return e.settings
}

// Default is an engine with the default settings.
var Default = New(DefaultSettings())
