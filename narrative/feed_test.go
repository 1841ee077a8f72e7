package narrative

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/period"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/icodeforyou/pvpc-go/rating"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const today = "2023-08-25"

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type memoryStore struct {
	days   map[string][]types.PricePoint
	thirty decimal.Decimal
}

func (s *memoryStore) QueryDay(_ context.Context, date string) ([]types.PricePoint, error) {
	return s.days[date], nil
}

func (s *memoryStore) ThirtyDayAverage(context.Context, string) (decimal.Decimal, error) {
	return s.thirty, nil
}

func (s *memoryStore) DailyAverages(context.Context, string, string) ([]types.DailyAverage, error) {
	return nil, nil
}

// Cheap hours 3-5 and 14-16, expensive 20-22, 0.20 otherwise.
func scenarioDay(date string) []types.PricePoint {
	day := make([]types.PricePoint, 24)
	for h := range day {
		price := "0.20"
		switch {
		case h >= 3 && h <= 5:
			price = "0.05"
		case h >= 14 && h <= 16:
			price = "0.06"
		case h >= 20 && h <= 22:
			price = "0.40"
		}
		day[h] = types.NewPricePoint(hours.At(date, h), decimal.RequireFromString(price))
	}
	return day
}

func newTestFeed(t *testing.T, store *memoryStore, hour int, minute int) *Feed {
	t.Helper()
	tm, err := NewTemplateManager(testLogger, nil)
	require.NoError(t, err)
	service := prices.New(testLogger, store, period.Default, rating.Default)
	feed, err := NewFeed(testLogger, service, tm, 3, "es", "en")
	require.NoError(t, err)
	feed.now = func() time.Time {
		return hours.AtHourOfDay(today, hour).Add(time.Duration(minute) * time.Minute)
	}
	return feed
}

func todayOnly() *memoryStore {
	return &memoryStore{
		days:   map[string][]types.PricePoint{today: scenarioDay(today)},
		thirty: decimal.RequireFromString("0.10"),
	}
}

func TestLanguage(t *testing.T) {
	feed := newTestFeed(t, todayOnly(), 10, 30)

	assert.Equal(t, "es", feed.Language(""))
	assert.Equal(t, "en", feed.Language("en-GB"))
	assert.Equal(t, "es", feed.Language("es-MX"))
	assert.Equal(t, "es", feed.Language("fr"))
}

func TestToday(t *testing.T) {
	feed := newTestFeed(t, todayOnly(), 10, 30)

	res, err := feed.Today(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, "Today's electricity price", res.TitleText)
	assert.Equal(t, "Today is a bad day, the average price is 19 cents per kilowatt hour. The current price is 20 cents.", res.MainText)
	assert.Len(t, res.UID, 36)
	assert.Equal(t, "2023-08-25T08:30:00.0Z", res.UpdateDate)
	assert.Equal(t, DefaultRedirectionURL, res.RedirectionURL)

	res, err = feed.Today(context.Background(), "es")
	require.NoError(t, err)
	assert.Equal(t, "Precio de la luz hoy", res.TitleText)
	assert.Contains(t, res.MainText, "Hoy es un mal día")
}

func TestTodayNotAvailable(t *testing.T) {
	feed := newTestFeed(t, &memoryStore{days: map[string][]types.PricePoint{}}, 10, 30)

	_, err := feed.Today(context.Background(), "en")
	assert.ErrorIs(t, err, types.ErrNotYetAvailable)

	responses, err := feed.FullFeed(context.Background(), "en")
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestTomorrow(t *testing.T) {
	feed := newTestFeed(t, todayOnly(), 10, 30)

	res, ok, err := feed.Tomorrow(context.Background(), "en")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Tomorrow's prices are not available yet, they are published around 8 PM.", res.MainText)

	store := todayOnly()
	store.days["2023-08-26"] = scenarioDay("2023-08-26")
	feed = newTestFeed(t, store, 21, 0)

	res, ok, err = feed.Tomorrow(context.Background(), "en")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Tomorrow will be a bad day, with an average price of 19 cents. "+
		"The cheapest three hours start at 3 AM, averaging 5 cents. "+
		"The most expensive three hours start at 8 PM, averaging 40 cents.", res.MainText)
}

func TestTomorrowWindowSize(t *testing.T) {
	store := todayOnly()
	store.days["2023-08-26"] = scenarioDay("2023-08-26")

	tests := []struct {
		window int
		lang   string
		want   []string
	}{
		{1, "en", []string{"The cheapest hour starts at 3 AM, averaging 5 cents.", "The most expensive hour starts at 8 PM, averaging 40 cents."}},
		{4, "en", []string{"The cheapest four hours start at 2 AM", "The most expensive four hours start at 7 PM"}},
		{1, "es", []string{"La hora más barata empieza a las 3:00", "La hora más cara empieza a las 20:00"}},
		{4, "es", []string{"Las cuatro horas más baratas empiezan a las 2:00", "Las cuatro horas más caras empiezan a las 19:00"}},
		{13, "en", []string{"The cheapest 13 hours start at"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %d", tt.lang, tt.window), func(t *testing.T) {
			feed := newTestFeed(t, store, 21, 0)
			feed.windowSize = tt.window

			res, ok, err := feed.Tomorrow(context.Background(), tt.lang)
			require.NoError(t, err)
			assert.True(t, ok)
			for _, want := range tt.want {
				assert.Contains(t, res.MainText, want)
			}
		})
	}
}

func TestNextCheapPeriod(t *testing.T) {
	tests := []struct {
		name  string
		hour  int
		ok    bool
		title string
		main  string
	}{
		{
			name:  "first window is over",
			hour:  10,
			ok:    true,
			title: "Next cheap period",
			main:  "The next cheap period starts at 2 PM, with an average price of 6 cents.",
		},
		{
			name:  "inside the second window",
			hour:  15,
			ok:    true,
			title: "Cheap period now",
			main:  "You are in a cheap period that started at 2 PM, with an average price of 6 cents.",
		},
		{
			name:  "before the first window",
			hour:  1,
			ok:    true,
			title: "Next cheap period",
			main:  "The next cheap period starts at 3 AM, with an average price of 5 cents.",
		},
		{
			name:  "both windows are over",
			hour:  17,
			ok:    false,
			title: "Next cheap period",
			main:  "There are no cheap periods left today.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := newTestFeed(t, todayOnly(), tt.hour, 10)

			res, ok, err := feed.NextCheapPeriod(context.Background(), "en")
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, res.TitleText)
			assert.Equal(t, tt.main, res.MainText)
		})
	}
}

func TestNextExpensivePeriod(t *testing.T) {
	feed := newTestFeed(t, todayOnly(), 10, 30)
	res, ok, err := feed.NextExpensivePeriod(context.Background(), "es")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "El próximo periodo caro empieza a las 20:00, con un precio medio de 40 céntimos.", res.MainText)

	feed = newTestFeed(t, todayOnly(), 21, 30)
	res, ok, err = feed.NextExpensivePeriod(context.Background(), "en")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Expensive period now", res.TitleText)

	feed = newTestFeed(t, todayOnly(), 23, 0)
	_, ok, err = feed.NextExpensivePeriod(context.Background(), "en")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFullFeed(t *testing.T) {
	feed := newTestFeed(t, todayOnly(), 10, 30)

	responses, err := feed.FullFeed(context.Background(), "en-US")
	require.NoError(t, err)
	require.Len(t, responses, 3)
	assert.Equal(t, "Today's electricity price", responses[0].TitleText)
	assert.Equal(t, "Next cheap period", responses[1].TitleText)
	assert.Equal(t, "Next expensive period", responses[2].TitleText)
	assert.NotEqual(t, responses[0].UID, responses[1].UID)
}

func TestExternalTemplatesReload(t *testing.T) {
	dir := t.TempDir()
	write := func(text string) {
		content := `{{define "en.today.title"}}` + text + `{{end}}{{define "en.today.main"}}main{{end}}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "en.tmpl"), []byte(content), 0o600))
	}
	write("first")

	tm, err := NewTemplateManager(testLogger, &dir)
	require.NoError(t, err)
	defer tm.Close()

	title, err := tm.Execute("en", "today.title", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", title)

	write("second")
	assert.Eventually(t, func() bool {
		title, err := tm.Execute("en", "today.title", nil)
		return err == nil && title == "second"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewFeedRequiresTemplates(t *testing.T) {
	tm, err := NewTemplateManager(testLogger, nil)
	require.NoError(t, err)

	_, err = NewFeed(testLogger, nil, tm, 3, "de")
	assert.Error(t, err)
}
