package task

import (
	"context"
	"log/slog"
	"time"
)

type Maintainer interface {
	Backup(ctx context.Context) error
	PurgeBackups(ctx context.Context, retentionDays int) error
	PurgeLog(ctx context.Context, maxLogEntries int) error
	PurgePrices(ctx context.Context, retentionDays int) error
}

type PricePurger interface {
	PurgePrices(ctx context.Context, retentionDays int) error
}

// PurgingPricesWith runs the price purge of m through p, the rest of the
// maintenance still goes to m.
func PurgingPricesWith(m Maintainer, p PricePurger) Maintainer {
	return purgeOverride{Maintainer: m, purger: p}
}

type purgeOverride struct {
	Maintainer
	purger PricePurger
}

func (o purgeOverride) PurgePrices(ctx context.Context, retentionDays int) error {
	return o.purger.PurgePrices(ctx, retentionDays)
}

type MaintenanceSettings struct {
	BackupRetentionDays int
	MaxLogEntries       int
	// Zero keeps every price.
	DataRetentionDays int
}

func NewMaintenanceTask(logger *slog.Logger, db Maintainer, settings MaintenanceSettings) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		if err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		}

		if err := db.PurgeBackups(ctx, settings.BackupRetentionDays); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeLog(ctx, settings.MaxLogEntries); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		if err := db.PurgePrices(ctx, settings.DataRetentionDays); err != nil {
			logger.Error("price maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
