package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/pvpc-go/database"
	"github.com/icodeforyou/pvpc-go/esios"
	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/pricesync"
	"github.com/icodeforyou/pvpc-go/ree"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/urfave/cli/v2"
)

func backfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Sync a range of days from an upstream source into the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Value: "esios",
				Usage: "Upstream source (ree, esios)",
			},
			&cli.StringFlag{
				Name:     "from",
				Usage:    "First day, yyyy-MM-dd",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Last day, yyyy-MM-dd (default: today)",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Base URL of the source",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "ESIOS API token",
				EnvVars: []string{"ESIOS_TOKEN"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "Timeout of a single day",
			},
		},
		Action: runBackfill,
	}
}

func newSource(name, url, token string) (types.PriceSource, error) {
	switch name {
	case "ree":
		return ree.New(url), nil
	case "esios":
		return esios.New(url, token), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

func runBackfill(c *cli.Context) error {
	from, to := c.String("from"), c.String("to")
	if to == "" {
		to = hours.Today()
	}
	if !hours.IsValidDate(from) || !hours.IsValidDate(to) {
		return fmt.Errorf("%w: from and to must match yyyy-MM-dd", types.ErrInvalidInput)
	}

	source, err := newSource(c.String("source"), c.String("url"), c.String("token"))
	if err != nil {
		return err
	}

	db, err := database.New(c.Context, c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetLogger(slog.Default().With("module", "database"))

	// A single invalid payload skips the day, nobody is around to wait for a retry.
	syncer := pricesync.New(slog.Default().With("module", "sync"), db, source, pricesync.SystemClock{}, pricesync.Options{
		MaxValidationRetries: 1,
		Timeout:              c.Duration("timeout"),
	})

	out := newOutput(c.App.Writer, c.String("format"))
	state := pricesync.StartingAt(from)
	for state.Next() <= to {
		if err := c.Context.Err(); err != nil {
			return err
		}
		var res pricesync.Result
		state, res = syncer.Step(c.Context, state)
		if err := out.SyncResult(res); err != nil {
			return err
		}

		switch res.Outcome {
		case pricesync.OutcomeNotYetAvailable:
			return nil
		case pricesync.OutcomeFailed:
			return res.Err
		}
	}
	return nil
}
