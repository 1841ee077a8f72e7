package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/pricesync"
)

type SyncJob struct {
	Syncer *pricesync.Syncer
	Start  pricesync.State
}

// StartSyncers runs every job in its own goroutine until ctx is done. The
// returned group is done when all loops have stopped.
func StartSyncers(ctx context.Context, logger *slog.Logger, jobs ...SyncJob) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job SyncJob) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("sync loop panicked", slog.String("source", job.Syncer.Source()), slog.Any("panic", r))
				}
			}()
			last := job.Syncer.Run(ctx, job.Start)
			logger.Debug("sync loop done", slog.String("source", job.Syncer.Source()), slog.String("lastSynced", last.LastSynced))
		}(job)
	}
	return &wg
}

// NewDaySyncedHook reloads the recent hours when a synced day is one of
// them, then tells every listener about the day.
func NewDaySyncedHook(logger *slog.Logger, recent RecentPrices, listeners ...func(date string)) func(ctx context.Context, date string) {
	return func(ctx context.Context, date string) {
		today := hours.Today()
		if date >= hours.AddDays(today, -1) && date <= hours.AddDays(today, 1) {
			if err := recent.Reload(ctx); err != nil {
				logger.Error("reload recent hours after sync", slog.String("date", date), slog.Any("error", err))
			}
		}
		for _, l := range listeners {
			l(date)
		}
	}
}
