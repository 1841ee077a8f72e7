// Package narrative turns price analytics into short localized messages for
// voice assistant flash briefings.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/icodeforyou/pvpc-go/convert"
	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

const (
	DefaultRedirectionURL = "https://elec.daithiapp.com/"
	updateDateLayout      = "2006-01-02T15:04:05.0Z"
)

type Response struct {
	UID            string `json:"uid"`
	UpdateDate     string `json:"updateDate"`
	TitleText      string `json:"titleText"`
	MainText       string `json:"mainText"`
	RedirectionURL string `json:"redirectionUrl"`
}

// Prices is the part of prices.Service the feed reads.
type Prices interface {
	GetDayPrices(ctx context.Context, date string) ([]types.PricePoint, error)
	GetThirtyDayAverage(ctx context.Context, date string) (decimal.Decimal, error)
	CheapestWindow(ctx context.Context, date string, n int) (types.Period, error)
	MostExpensiveWindow(ctx context.Context, date string, n int) (types.Period, error)
	TwoCheapestWindows(ctx context.Context, date string, n int) (types.Period, types.Period, error)
	Rate(value, baseline decimal.Decimal) types.DayRating
}

type Feed struct {
	logger     *slog.Logger
	prices     Prices
	tm         *TemplateManager
	langs      []string
	matcher    language.Matcher
	windowSize int
	// RedirectionURL is sent with every response.
	RedirectionURL string
	now            func() time.Time
}

type window struct {
	Start   hours.DateHour
	Average int64
}

type dayData struct {
	Rating     types.DayRating
	Average    int64
	Current    int64
	HasCurrent bool
	Cheapest   *window
	Expensive  *window
	// Hours in the cheapest and most expensive windows.
	Window     int
}

// NewFeed serves the languages in langs, the first one is the fallback
// for requests in any other language.
func NewFeed(logger *slog.Logger, prices Prices, tm *TemplateManager, windowSize int, langs ...string) (*Feed, error) {
	if len(langs) == 0 {
		langs = []string{"es", "en"}
	}
	tags := make([]language.Tag, 0, len(langs))
	for _, l := range langs {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", l, err)
		}
		if !tm.Has(l, "today.main") {
			return nil, fmt.Errorf("no templates for language %q", l)
		}
		tags = append(tags, tag)
	}
	if windowSize < 1 {
		windowSize = 3
	}

	return &Feed{
		logger:         logger,
		prices:         prices,
		tm:             tm,
		langs:          langs,
		matcher:        language.NewMatcher(tags),
		windowSize:     windowSize,
		RedirectionURL: DefaultRedirectionURL,
		now:            time.Now,
	}, nil
}

// Language resolves a requested locale such as "en-GB" to a served language.
func (f *Feed) Language(locale string) string {
	if locale == "" {
		return f.langs[0]
	}
	_, idx, confidence := f.matcher.Match(language.Make(locale))
	if confidence == language.No {
		return f.langs[0]
	}
	return f.langs[idx]
}

// FullFeed is today's rating followed by the upcoming cheap and expensive
// periods and tomorrow's rating, leaving out what has no data. It is empty
// when today has no prices.
func (f *Feed) FullFeed(ctx context.Context, locale string) ([]Response, error) {
	lang := f.Language(locale)
	responses := []Response{}

	today, err := f.Today(ctx, lang)
	if errors.Is(err, types.ErrNotYetAvailable) {
		return responses, nil
	}
	if err != nil {
		return nil, err
	}
	responses = append(responses, today)

	for _, build := range []func(context.Context, string) (Response, bool, error){
		f.NextCheapPeriod,
		f.NextExpensivePeriod,
		f.Tomorrow,
	} {
		res, ok, err := build(ctx, lang)
		if err != nil {
			return nil, err
		}
		if ok {
			responses = append(responses, res)
		}
	}

	return responses, nil
}

// Today rates today against the thirty-day average and tells the price of the current hour.
func (f *Feed) Today(ctx context.Context, locale string) (Response, error) {
	lang := f.Language(locale)
	now := hours.FromTime(f.now())

	day, err := f.prices.GetDayPrices(ctx, now.Date)
	if err != nil {
		return Response{}, err
	}
	data, err := f.rateDay(ctx, now.Date, day)
	if err != nil {
		return Response{}, err
	}
	for _, pp := range day {
		if pp.When == now {
			data.Current = convert.Cents(pp.Price)
			data.HasCurrent = true
		}
	}

	return f.respond(lang, "today.title", "today.main", data)
}

// Tomorrow is false when tomorrow has not been published yet, the response
// then says so.
func (f *Feed) Tomorrow(ctx context.Context, locale string) (Response, bool, error) {
	lang := f.Language(locale)
	tomorrow := hours.AddDays(hours.FromTime(f.now()).Date, 1)

	day, err := f.prices.GetDayPrices(ctx, tomorrow)
	if errors.Is(err, types.ErrNotYetAvailable) {
		res, err := f.respond(lang, "tomorrow.title", "tomorrow.no_data", nil)
		return res, false, err
	}
	if err != nil {
		return Response{}, false, err
	}

	data, err := f.rateDay(ctx, tomorrow, day)
	if err != nil {
		return Response{}, false, err
	}
	cheapest, err := f.prices.CheapestWindow(ctx, tomorrow, f.windowSize)
	if err != nil {
		return Response{}, false, err
	}
	expensive, err := f.prices.MostExpensiveWindow(ctx, tomorrow, f.windowSize)
	if err != nil {
		return Response{}, false, err
	}
	data.Cheapest = toWindow(cheapest)
	data.Expensive = toWindow(expensive)
	data.Window = f.windowSize

	res, err := f.respond(lang, "tomorrow.title", "tomorrow.main", data)
	return res, err == nil, err
}

// NextCheapPeriod picks the first of today's two cheapest windows that has
// not ended yet. It is false when both are over.
func (f *Feed) NextCheapPeriod(ctx context.Context, locale string) (Response, bool, error) {
	lang := f.Language(locale)
	now := f.now()

	first, second, err := f.prices.TwoCheapestWindows(ctx, hours.FromTime(now).Date, f.windowSize)
	if err != nil {
		return Response{}, false, err
	}

	var next types.Period
	switch {
	case !first.IsEmpty() && !isOver(first, now):
		next = first
	case !second.IsEmpty() && !isOver(second, now):
		next = second
	default:
		res, err := f.respond(lang, "cheap.next.title", "cheap.no_data", nil)
		return res, false, err
	}

	return f.periodResponse(lang, "cheap", next, now)
}

// NextExpensivePeriod is false when today's most expensive window is over.
func (f *Feed) NextExpensivePeriod(ctx context.Context, locale string) (Response, bool, error) {
	lang := f.Language(locale)
	now := f.now()

	expensive, err := f.prices.MostExpensiveWindow(ctx, hours.FromTime(now).Date, f.windowSize)
	if err != nil {
		return Response{}, false, err
	}
	if expensive.IsEmpty() || isOver(expensive, now) {
		res, err := f.respond(lang, "expensive.next.title", "expensive.no_data", nil)
		return res, false, err
	}

	return f.periodResponse(lang, "expensive", expensive, now)
}

func (f *Feed) periodResponse(lang, kind string, p types.Period, now time.Time) (Response, bool, error) {
	state := "current"
	if p.Start().Time().After(now) {
		state = "next"
	}
	res, err := f.respond(lang, kind+"."+state+".title", kind+"."+state+".main", toWindow(p))
	return res, err == nil, err
}

func (f *Feed) rateDay(ctx context.Context, date string, day []types.PricePoint) (dayData, error) {
	thirty, err := f.prices.GetThirtyDayAverage(ctx, date)
	if err != nil {
		return dayData{}, err
	}
	average := types.Period(day).Average()
	return dayData{
		Rating:  f.prices.Rate(average, thirty),
		Average: convert.Cents(average),
	}, nil
}

func (f *Feed) respond(lang, titleKey, mainKey string, data any) (Response, error) {
	title, err := f.tm.Execute(lang, titleKey, data)
	if err != nil {
		return Response{}, err
	}
	main, err := f.tm.Execute(lang, mainKey, data)
	if err != nil {
		return Response{}, err
	}
	return Response{
		UID:            uuid.NewString(),
		UpdateDate:     f.now().UTC().Format(updateDateLayout),
		TitleText:      title,
		MainText:       main,
		RedirectionURL: f.RedirectionURL,
	}, nil
}

// isOver reports whether the last hour of p has fully passed.
func isOver(p types.Period, now time.Time) bool {
	return !p.End().Time().Add(time.Hour).After(now)
}

func toWindow(p types.Period) *window {
	if p.IsEmpty() {
		return nil
	}
	return &window{Start: p.Start(), Average: convert.Cents(p.Average())}
}
