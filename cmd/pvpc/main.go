// Command pvpc queries the price analytics of a pvpc database file and
// backfills it from the upstream sources without running the service.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/icodeforyou/pvpc-go/database"
	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/logging"
	"github.com/icodeforyou/pvpc-go/period"
	"github.com/icodeforyou/pvpc-go/prices"
	"github.com/icodeforyou/pvpc-go/rating"
	"github.com/lmittmann/tint"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "pvpc",
		Usage:   "Query PVPC electricity price analytics from a database file",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "pvpc.db",
				Usage:   "Path to the SQLite database",
				EnvVars: []string{"PVPC_DB"},
			},
			&cli.StringFlag{
				Name:    "timezone",
				Value:   "Europe/Madrid",
				Usage:   "Market timezone",
				EnvVars: []string{"PVPC_TIMEZONE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"PVPC_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format (text, json)",
			},
		},
		Before: func(c *cli.Context) error {
			if err := hours.SetMarketTimezone(c.String("timezone")); err != nil {
				return err
			}
			level, err := logging.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.RFC3339,
			})))
			decimal.MarshalJSONWithoutQuotes = true
			return nil
		},
		Commands: []*cli.Command{
			pricesCommand(),
			dailyInfoCommand(),
			averagesCommand(),
			windowCommand(),
			periodCommand(),
			backfillCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openService opens the database and builds the analytics on top of it.
func openService(c *cli.Context) (*prices.Service, *database.Database, error) {
	db, err := database.New(c.Context, c.String("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetLogger(slog.Default().With("module", "database"))

	settings := period.DefaultSettings()
	settings.Tolerance = decimal.NewFromFloat(c.Float64("tolerance"))
	blend, err := period.ParseBlend(c.String("blend"))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	settings.Blend = blend

	service := prices.New(slog.Default().With("module", "prices"), db, period.New(settings), rating.New(settings.RatingVariance))
	return service, db, nil
}

// dateArg is the first argument or today.
func dateArg(c *cli.Context) string {
	if c.Args().Present() {
		return c.Args().First()
	}
	return hours.Today()
}

var analyticsFlags = []cli.Flag{
	&cli.Float64Flag{
		Name:  "tolerance",
		Value: 0.02,
		Usage: "Price tolerance of variable windows and second cheapest windows",
	},
	&cli.StringFlag{
		Name:  "blend",
		Value: string(period.BlendCombined),
		Usage: "Baseline of the adaptive periods (combined, thirty_day)",
	},
}

func withService(run func(c *cli.Context, service *prices.Service, out *output) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		service, db, err := openService(c)
		if err != nil {
			return err
		}
		defer db.Close()
		return run(c, service, newOutput(os.Stdout, c.String("format")))
	}
}

func pricesCommand() *cli.Command {
	return &cli.Command{
		Name:      "prices",
		Usage:     "List the stored prices of a day",
		ArgsUsage: "[yyyy-MM-dd]",
		Flags:     analyticsFlags,
		Action: withService(func(c *cli.Context, service *prices.Service, out *output) error {
			pps, err := service.GetPrices(c.Context, dateArg(c))
			if err != nil {
				return err
			}
			return out.Period(pps)
		}),
	}
}

func dailyInfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "dailyinfo",
		Usage:     "Rating, thirty-day average and cheap and expensive periods of a day",
		ArgsUsage: "[yyyy-MM-dd]",
		Flags:     analyticsFlags,
		Action: withService(func(c *cli.Context, service *prices.Service, out *output) error {
			info, err := service.GetDailyPriceInfo(c.Context, dateArg(c))
			if err != nil {
				return err
			}
			return out.DailyInfo(info)
		}),
	}
}

func averagesCommand() *cli.Command {
	return &cli.Command{
		Name:      "averages",
		Usage:     "Daily averages of the days before a day",
		ArgsUsage: "[yyyy-MM-dd]",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Value: 30,
				Usage: "Number of days",
			},
		}, analyticsFlags...),
		Action: withService(func(c *cli.Context, service *prices.Service, out *output) error {
			averages, err := service.GetDailyAverages(c.Context, dateArg(c), c.Int("days"))
			if err != nil {
				return err
			}
			return out.Averages(averages)
		}),
	}
}

func windowCommand() *cli.Command {
	return &cli.Command{
		Name:      "window",
		Usage:     "Cheapest or most expensive window of n consecutive hours",
		ArgsUsage: "[yyyy-MM-dd]",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "hours",
				Aliases: []string{"n"},
				Value:   3,
				Usage:   "Window size, 1 to 24",
			},
			&cli.BoolFlag{
				Name:  "expensive",
				Usage: "Most expensive instead of cheapest",
			},
			&cli.BoolFlag{
				Name:  "two",
				Usage: "The two cheapest windows",
			},
		}, analyticsFlags...),
		Action: withService(func(c *cli.Context, service *prices.Service, out *output) error {
			date, n := dateArg(c), c.Int("hours")
			switch {
			case c.Bool("two"):
				first, second, err := service.TwoCheapestWindows(c.Context, date, n)
				if err != nil {
					return err
				}
				return out.Periods(first, second)
			case c.Bool("expensive"):
				p, err := service.MostExpensiveWindow(c.Context, date, n)
				if err != nil {
					return err
				}
				return out.Period(p)
			default:
				p, err := service.CheapestWindow(c.Context, date, n)
				if err != nil {
					return err
				}
				return out.Period(p)
			}
		}),
	}
}

func periodCommand() *cli.Command {
	return &cli.Command{
		Name:      "period",
		Usage:     "Variable length period around the cheapest or most expensive hour",
		ArgsUsage: "[yyyy-MM-dd]",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "expensive",
				Usage: "Around the most expensive hour",
			},
		}, analyticsFlags...),
		Action: withService(func(c *cli.Context, service *prices.Service, out *output) error {
			find := service.CheapestPeriod
			if c.Bool("expensive") {
				find = service.MostExpensivePeriod
			}
			p, err := find(c.Context, dateArg(c))
			if err != nil {
				return err
			}
			return out.Period(p)
		}),
	}
}
