package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/robfig/cron/v3"
)

const (
	maintenanceSchedule = "30 2 * * *"
	hourlySchedule      = "0 * * * *"
)

type Tasks struct {
	cron            *cron.Cron
	logger          *slog.Logger
	MaintenanceTask func()
	HourlyTask      func()
}

func NewTasks(logger *slog.Logger, maintenance func(), hourly func()) *Tasks {
	return &Tasks{
		cron:            cron.New(cron.WithLocation(hours.MarketLocation())),
		logger:          logger,
		MaintenanceTask: maintenance,
		HourlyTask:      hourly,
	}
}

func (t *Tasks) Run() error {
	if _, err := t.cron.AddFunc(maintenanceSchedule, t.MaintenanceTask); err != nil {
		return fmt.Errorf("scheduling maintenance task: %w", err)
	}
	if _, err := t.cron.AddFunc(hourlySchedule, t.HourlyTask); err != nil {
		return fmt.Errorf("scheduling hourly task: %w", err)
	}
	t.cron.Start()
	t.logger.Info("tasks scheduled", slog.Int("entries", len(t.cron.Entries())))
	return nil
}

// Stop returns a context that is done when running jobs have completed.
func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
