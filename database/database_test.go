package database

import (
	"archive/zip"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "pvpc.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func dayPrices(date string, base int64) []types.PricePoint {
	points := make([]types.PricePoint, 24)
	for h := range points {
		points[h] = types.NewPricePoint(hours.At(date, h), decimal.New(base+int64(h), -3))
	}
	return points
}

func TestReplaceAndQueryDay(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-25", 100)[:20]))
	stored, err := db.QueryDay(ctx, "2023-08-25")
	require.NoError(t, err)
	assert.Len(t, stored, 20)

	require.NoError(t, db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-25", 200)))
	stored, err = db.QueryDay(ctx, "2023-08-25")
	require.NoError(t, err)
	require.Len(t, stored, 24)
	assert.Equal(t, hours.At("2023-08-25", 0), stored[0].When)
	assert.Equal(t, hours.At("2023-08-25", 0).Key(), stored[0].ID)
	assert.Equal(t, "0.2", stored[0].Price.String())
	assert.Equal(t, "0.223", stored[23].Price.String())

	// Neighbouring days are untouched.
	empty, err := db.QueryDay(ctx, "2023-08-26")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReplaceDayRejectsForeignPrices(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-25", 100)))

	err := db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-26", 100))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	// Rolled back.
	stored, err := db.QueryDay(ctx, "2023-08-25")
	require.NoError(t, err)
	assert.Len(t, stored, 24)
}

func TestQueryRange(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-25", 100)))
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-26", dayPrices("2023-08-26", 100)))

	prices, err := db.Query(ctx, hours.At("2023-08-25", 22), hours.At("2023-08-26", 2))
	require.NoError(t, err)
	require.Len(t, prices, 4)
	assert.Equal(t, hours.At("2023-08-25", 22), prices[0].When)
	assert.Equal(t, hours.At("2023-08-26", 1), prices[3].When)
}

func TestThirtyDayAverage(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	_, err := db.ThirtyDayAverage(ctx, "2023-08-25")
	assert.ErrorIs(t, err, types.ErrNotYetAvailable)

	// Only the days from 2023-07-26 to 2023-08-25 count.
	require.NoError(t, db.ReplaceDay(ctx, "2023-07-25", dayPrices("2023-07-25", 900)))
	require.NoError(t, db.ReplaceDay(ctx, "2023-07-26", dayPrices("2023-07-26", 100)))
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-25", 200)))
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-26", dayPrices("2023-08-26", 900)))

	avg, err := db.ThirtyDayAverage(ctx, "2023-08-25")
	require.NoError(t, err)
	// (0.1115 + 0.2115) / 2
	assert.Equal(t, "0.1615", avg.String())
}

func TestDailyAverages(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-24", dayPrices("2023-08-24", 100)))
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-25", 200)))
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-27", dayPrices("2023-08-27", 300)))

	averages, err := db.DailyAverages(ctx, "2023-08-24", "2023-08-26")
	require.NoError(t, err)
	require.Len(t, averages, 2)
	assert.Equal(t, "2023-08-24", averages[0].Date)
	assert.Equal(t, "0.1115", averages[0].Average.String())
	assert.Equal(t, "2023-08-25", averages[1].Date)

	averages, err = db.DailyAverages(ctx, "2023-09-01", "2023-09-30")
	require.NoError(t, err)
	assert.Empty(t, averages)
}

func TestPurgePrices(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	old := hours.AddDays(hours.Today(), -10)
	recent := hours.AddDays(hours.Today(), -1)
	require.NoError(t, db.ReplaceDay(ctx, old, dayPrices(old, 100)))
	require.NoError(t, db.ReplaceDay(ctx, recent, dayPrices(recent, 100)))

	require.NoError(t, db.PurgePrices(ctx, 0))
	stored, err := db.QueryDay(ctx, old)
	require.NoError(t, err)
	assert.Len(t, stored, 24)

	require.NoError(t, db.PurgePrices(ctx, 5))
	stored, err = db.QueryDay(ctx, old)
	require.NoError(t, err)
	assert.Empty(t, stored)
	stored, err = db.QueryDay(ctx, recent)
	require.NoError(t, err)
	assert.Len(t, stored, 24)
}

func TestRecentHours(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	today := hours.Today()
	require.NoError(t, db.ReplaceDay(ctx, today, dayPrices(today, 100)))
	old := hours.AddDays(today, -5)
	require.NoError(t, db.ReplaceDay(ctx, old, dayPrices(old, 100)))

	recent := NewRecentHours(db)
	require.NoError(t, recent.Reload(ctx))

	assert.Equal(t, 24, recent.Len())
	p, ok := recent.Get(hours.At(today, 5))
	require.True(t, ok)
	assert.Equal(t, "0.105", p.Price.String())
	_, ok = recent.Get(hours.At(old, 5))
	assert.False(t, ok)
}

func TestLogEntries(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for i, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
		require.NoError(t, db.SaveLogEntry(ctx, LogEntryRow{
			Timestamp: time.Date(2023, 8, 25, 10, i, 0, 0, time.UTC),
			Level:     int(lvl),
			Message:   lvl.String(),
		}))
	}

	page, err := db.GetLogEntries(ctx, slog.LevelInfo, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "ERROR", page.Entries[0].Message)
	assert.True(t, page.Entries[0].Timestamp.Equal(time.Date(2023, 8, 25, 10, 2, 0, 0, time.UTC)))

	page, err = db.GetLogEntries(ctx, slog.LevelDebug, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "DEBUG", page.Entries[0].Message)
	assert.Equal(t, 3, page.Total)

	page, err = db.GetLogEntries(ctx, slog.LevelDebug, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.NotNil(t, page.Entries)

	require.NoError(t, db.PurgeLog(ctx, 1))
	page, err = db.GetLogEntries(ctx, slog.LevelDebug, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "ERROR", page.Entries[0].Message)
}

func TestBackup(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-24", dayPrices("2023-08-24", 100)))
	require.NoError(t, db.ReplaceDay(ctx, "2023-08-25", dayPrices("2023-08-25", 100)))

	require.NoError(t, db.Backup(ctx))

	backups, err := db.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Regexp(t, `pvpc_\d{8}_\d{6}\.db\.zip$`, backups[0].Path)

	zr, err := zip.OpenReader(backups[0].Path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 2)
	assert.Equal(t, filepath.Base(db.path), zr.File[0].Name)

	mf, err := zr.File[1].Open()
	require.NoError(t, err)
	defer mf.Close()
	var manifest BackupManifest
	require.NoError(t, json.NewDecoder(mf).Decode(&manifest))
	assert.Equal(t, "2023-08-24", manifest.FirstDay)
	assert.Equal(t, "2023-08-25", manifest.LastDay)
	assert.Equal(t, 2, manifest.Days)

	// A foreign file and an old archive in the backup directory.
	dir := filepath.Dir(backups[0].Path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pvpc_20200101_000000.db.zip"), nil, 0644))

	require.NoError(t, db.PurgeBackups(ctx, 1))
	backups, err = db.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestMigrations(t *testing.T) {
	db := newTestDatabase(t)
	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// Reopening applies nothing and takes no backup.
	again, err := New(context.Background(), db.path)
	require.NoError(t, err)
	again.Close()
	backups, err := db.Backups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(fstest.MapFS{
		"migrations/002_more.sql": {Data: []byte("SELECT 2;")},
		"migrations/001_init.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":    {Data: []byte("docs")},
	})
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].version)
	assert.Equal(t, "SELECT 2;", migrations[1].sql)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/001_init.sql":   {Data: []byte("SELECT 1;")},
		"migrations/0001_again.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")

	_, err = loadMigrations(fstest.MapFS{
		"migrations/init.sql": {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err)
}
