package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icodeforyou/pvpc-go/cache"
	"github.com/icodeforyou/pvpc-go/config"
	"github.com/icodeforyou/pvpc-go/database"
	"github.com/icodeforyou/pvpc-go/esios"
	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/logging"
	"github.com/icodeforyou/pvpc-go/metrics"
	"github.com/icodeforyou/pvpc-go/narrative"
	"github.com/icodeforyou/pvpc-go/period"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/icodeforyou/pvpc-go/pricesync"
	"github.com/icodeforyou/pvpc-go/publish"
	"github.com/icodeforyou/pvpc-go/rating"
	"github.com/icodeforyou/pvpc-go/ree"
	"github.com/icodeforyou/pvpc-go/task"
	"github.com/icodeforyou/pvpc-go/www"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var Version = "?.?.?"

// First day of the ESIOS archive.
const esiosFirstDay = "2014-04-01"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", os.Getenv("PVPC_CONFIG"), "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := hours.SetMarketTimezone(cnfg.Timezone); err != nil {
		panic(fmt.Sprintf("failed to set market timezone: %v", err))
	}

	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("pvpc is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	cnfg.Watch(logger.With("module", "config"))

	var store cache.Store = db
	var maintainer task.Maintainer = db
	if cnfg.Redis.Enabled() {
		rdb, err := cache.NewRedisClient(ctx, logger.With("module", "cache"),
			cnfg.Redis.Addr, cnfg.Redis.Password, cnfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, serving from the database only", slog.Any("error", err))
		} else {
			defer rdb.Close()
			caching := cache.NewCachingStore(logger.With("module", "cache"), rdb, cnfg.Redis.TTL, db, cnfg.Redis.Namespace)
			store = caching
			maintainer = task.PurgingPricesWith(db, caching)
		}
	}

	settings, err := cnfg.Analytics.PeriodSettings()
	if err != nil {
		panic(fmt.Sprintf("invalid analytics settings: %v", err))
	}
	service := prices.New(
		logger.With("module", "prices"),
		store,
		period.New(settings),
		rating.New(settings.RatingVariance))

	recentHours := database.NewRecentHours(db)
	if err := recentHours.Reload(ctx); err != nil {
		panic(fmt.Sprintf("failed to load recent hours: %v", err))
	}

	tm, err := narrative.NewTemplateManager(logger.With("module", "narrative"), cnfg.Locale.TemplatesDir)
	if err != nil {
		panic(fmt.Sprintf("failed to load templates: %v", err))
	}
	defer tm.Close()

	feed, err := narrative.NewFeed(logger.With("module", "narrative"), service, tm,
		cnfg.Analytics.WindowSize, feedLanguages(cnfg.Locale.Default)...)
	if err != nil {
		panic(fmt.Sprintf("failed to create voice feed: %v", err))
	}

	var recorder *metrics.Recorder
	var gatherer prometheus.Gatherer
	if cnfg.Metrics.Enabled {
		recorder = metrics.New(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}

	deps := www.Deps{
		Prices:      service,
		Feed:        feed,
		Logs:        db,
		DB:          db,
		Gatherer:    gatherer,
		MetricsPath: cnfg.Metrics.Path,
	}
	if recorder != nil {
		deps.Metrics = recorder
	}
	server := www.NewServer(logger.With("module", "www"), cnfg.Api, deps)

	daySynced := task.NewDaySyncedHook(logger.With("module", "sync"), recentHours, server.DaySynced)

	var jobs []task.SyncJob
	if cnfg.Sync.Ree.Enabled {
		src := cnfg.Sync.Ree
		syncer := pricesync.New(logger.With("module", "sync"), store, ree.New(src.URL),
			pricesync.SystemClock{}, src.Options(src.PublicationBackoff()))
		jobs = append(jobs, newSyncJob(syncer, recorder, daySynced, src.GetStartDate(hours.Today())))
	}
	if cnfg.Sync.Esios.Enabled {
		src := cnfg.Sync.Esios
		syncer := pricesync.New(logger.With("module", "sync"), store, esios.New(src.URL, src.Token),
			pricesync.SystemClock{}, src.Options(src.FixedBackoff()))
		jobs = append(jobs, newSyncJob(syncer, recorder, daySynced, src.GetStartDate(esiosFirstDay)))
	}

	hourly := task.HourlyDeps{
		Recent: recentHours,
		Live:   service,
	}
	if recorder != nil {
		hourly.Gauge = recorder
	}

	if cnfg.Mqtt.Enabled() {
		publisher := publish.New(logger.With("module", "mqtt"), publish.Options{
			Broker:      cnfg.Mqtt.Broker,
			Port:        cnfg.Mqtt.Port,
			ClientID:    cnfg.Mqtt.ClientID,
			Username:    cnfg.Mqtt.Username,
			Password:    cnfg.Mqtt.Password,
			TopicPrefix: cnfg.Mqtt.TopicPrefix,
		})
		if recorder != nil {
			publisher.SetRecorder(recorder)
		}
		if err := publisher.Connect(); err != nil {
			logger.Error("mqtt connection failed, publishing disabled", slog.Any("error", err))
		} else {
			defer publisher.Disconnect()
			hourly.Publisher = publisher
		}
	}

	tasks := task.NewTasks(logger.With("module", "task"),
		task.NewMaintenanceTask(logger.With("module", "task", "task", "maintenance"), maintainer, task.MaintenanceSettings{
			BackupRetentionDays: cnfg.Database.GetBackupRetentionDays(),
			MaxLogEntries:       cnfg.Logging.GetDbMaxEntries(),
			DataRetentionDays:   cnfg.Database.GetDataRetentionDays(),
		}),
		task.NewHourlyTask(logger.With("module", "task", "task", "hourly"), hourly))

	if isDevMode() {
		logger.Info("dev mode, skipping sync and task scheduling")
	} else {
		syncers := task.StartSyncers(ctx, logger.With("module", "sync"), jobs...)
		defer syncers.Wait()
		if err := tasks.Run(); err != nil {
			panic(fmt.Sprintf("failed to schedule tasks: %v", err))
		}
		defer tasks.Stop()
	}

	if err := server.Run(ctx); err != nil {
		exitWithError(logger, err)
	}
}

func newSyncJob(syncer *pricesync.Syncer, recorder *metrics.Recorder, hook func(context.Context, string), start string) task.SyncJob {
	if recorder != nil {
		syncer.SetRecorder(recorder)
	}
	syncer.OnDaySynced = hook
	return task.SyncJob{Syncer: syncer, Start: pricesync.StartingAt(start)}
}

// feedLanguages puts the default language first, it answers requests without a locale.
func feedLanguages(def string) []string {
	langs := []string{def}
	for _, l := range []string{"es", "en"} {
		if !strings.EqualFold(l, def) {
			langs = append(langs, l)
		}
	}
	return langs
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	time.Sleep(2 * time.Second)
	os.Exit(1)
}
