package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/icodeforyou/pvpc-go/pricesync"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeMaintainer struct {
	calls []string
}

func (m *fakeMaintainer) Backup(context.Context) error {
	m.calls = append(m.calls, "backup")
	return errors.New("disk full")
}

func (m *fakeMaintainer) PurgeBackups(_ context.Context, days int) error {
	m.calls = append(m.calls, "backups")
	return nil
}

func (m *fakeMaintainer) PurgeLog(_ context.Context, n int) error {
	m.calls = append(m.calls, "log")
	return nil
}

func (m *fakeMaintainer) PurgePrices(_ context.Context, days int) error {
	m.calls = append(m.calls, "prices")
	return nil
}

func TestMaintenanceTaskContinuesAfterErrors(t *testing.T) {
	m := &fakeMaintainer{}
	NewMaintenanceTask(testLogger, m, MaintenanceSettings{BackupRetentionDays: 90, MaxLogEntries: 10})()
	assert.Equal(t, []string{"backup", "backups", "log", "prices"}, m.calls)
}

type fakePurger struct {
	days []int
}

func (p *fakePurger) PurgePrices(_ context.Context, days int) error {
	p.days = append(p.days, days)
	return nil
}

func TestMaintenanceTaskPurgesThroughCache(t *testing.T) {
	m := &fakeMaintainer{}
	purger := &fakePurger{}
	NewMaintenanceTask(testLogger, PurgingPricesWith(m, purger), MaintenanceSettings{DataRetentionDays: 365})()
	assert.Equal(t, []string{"backup", "backups", "log"}, m.calls)
	assert.Equal(t, []int{365}, purger.days)
}

type fakeRecent struct {
	mu      sync.Mutex
	reloads int
	prices  map[hours.DateHour]types.PricePoint
}

func (r *fakeRecent) Reload(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloads++
	return nil
}

func (r *fakeRecent) Get(hour hours.DateHour) (types.PricePoint, bool) {
	pp, ok := r.prices[hour]
	return pp, ok
}

type fakeLive struct {
	err error
}

func (l fakeLive) LiveStatus(_ context.Context, at hours.DateHour) (prices.LiveStatus, error) {
	if l.err != nil {
		return prices.LiveStatus{}, l.err
	}
	return prices.LiveStatus{DateTime: at.IsoString(), DayRating: types.DayRatingGood}, nil
}

type fakePublisher struct {
	current []types.PricePoint
	ratings []string
}

func (p *fakePublisher) PublishCurrentPrice(pp types.PricePoint) error {
	p.current = append(p.current, pp)
	return nil
}

func (p *fakePublisher) PublishRating(date string, status prices.LiveStatus) error {
	p.ratings = append(p.ratings, date+":"+string(status.DayRating))
	return nil
}

type fakeGauge struct {
	value float64
}

func (g *fakeGauge) SetCurrentPrice(price float64) {
	g.value = price
}

func TestHourlyTask(t *testing.T) {
	at := hours.At("2023-08-25", 10)
	recent := &fakeRecent{prices: map[hours.DateHour]types.PricePoint{
		at: types.NewPricePoint(at, decimal.RequireFromString("0.125")),
	}}
	publisher := &fakePublisher{}
	gauge := &fakeGauge{}

	task := NewHourlyTask(testLogger, HourlyDeps{
		Recent:    recent,
		Live:      fakeLive{},
		Publisher: publisher,
		Gauge:     gauge,
		Now:       func() time.Time { return at.Time().Add(5 * time.Second) },
	})
	task()

	assert.Equal(t, 1, recent.reloads)
	require.Len(t, publisher.current, 1)
	assert.Equal(t, at, publisher.current[0].When)
	assert.Equal(t, []string{"2023-08-25:GOOD"}, publisher.ratings)
	assert.Equal(t, 0.125, gauge.value)
}

func TestHourlyTaskIncompleteDay(t *testing.T) {
	at := hours.At("2023-08-25", 10)
	recent := &fakeRecent{prices: map[hours.DateHour]types.PricePoint{
		at: types.NewPricePoint(at, decimal.RequireFromString("0.125")),
	}}
	publisher := &fakePublisher{}

	NewHourlyTask(testLogger, HourlyDeps{
		Recent:    recent,
		Live:      fakeLive{err: types.ErrNotYetAvailable},
		Publisher: publisher,
		Now:       func() time.Time { return at.Time() },
	})()

	assert.Len(t, publisher.current, 1)
	assert.Empty(t, publisher.ratings)
}

func TestHourlyTaskMissingPrice(t *testing.T) {
	publisher := &fakePublisher{}
	NewHourlyTask(testLogger, HourlyDeps{
		Recent:    &fakeRecent{},
		Live:      fakeLive{},
		Publisher: publisher,
		Now:       time.Now,
	})()

	assert.Empty(t, publisher.current)
	assert.Empty(t, publisher.ratings)
}

type memoryStore struct {
	mu   sync.Mutex
	days map[string][]types.PricePoint
}

func (s *memoryStore) QueryDay(_ context.Context, date string) ([]types.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.days[date], nil
}

func (s *memoryStore) ReplaceDay(_ context.Context, date string, prices []types.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[date] = prices
	return nil
}

type daySource struct {
	last string
}

func (s daySource) Name() string { return "test" }

func (s daySource) GetDayPrices(_ context.Context, date string) ([]types.PricePoint, error) {
	if date > s.last {
		return nil, types.ErrNotYetAvailable
	}
	day := make([]types.PricePoint, 24)
	for h := range day {
		day[h] = types.NewPricePoint(hours.At(date, h), decimal.NewFromInt(int64(h)))
	}
	return day, nil
}

func TestStartSyncersStopsOnCancel(t *testing.T) {
	store := &memoryStore{days: map[string][]types.PricePoint{}}
	syncer := pricesync.New(testLogger, store, daySource{last: "2023-08-26"}, nil, pricesync.Options{
		NotYetAvailable: pricesync.FixedBackoff(time.Hour),
	})

	var mu sync.Mutex
	var synced []string
	syncer.OnDaySynced = func(_ context.Context, date string) {
		mu.Lock()
		defer mu.Unlock()
		synced = append(synced, date)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := StartSyncers(ctx, testLogger, SyncJob{Syncer: syncer, Start: pricesync.StartingAt("2023-08-25")})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(synced) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sync loop did not stop")
	}

	assert.Equal(t, []string{"2023-08-25", "2023-08-26"}, synced)
}

func TestDaySyncedHook(t *testing.T) {
	recent := &fakeRecent{}
	var notified []string
	hook := NewDaySyncedHook(testLogger, recent, func(date string) { notified = append(notified, date) })

	hook(context.Background(), "2014-04-01")
	assert.Equal(t, 0, recent.reloads)

	hook(context.Background(), hours.AddDays(hours.Today(), 1))
	assert.Equal(t, 1, recent.reloads)
	assert.Equal(t, []string{"2014-04-01", hours.AddDays(hours.Today(), 1)}, notified)
}

func TestTasksRun(t *testing.T) {
	tasks := NewTasks(testLogger, func() {}, func() {})
	require.NoError(t, tasks.Run())
	assert.Len(t, tasks.cron.Entries(), 2)
	<-tasks.Stop().Done()
}
