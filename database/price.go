package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

// Query returns the prices from the hour from up to, not including, the
// hour to, ordered by hour.
func (d *Database) Query(ctx context.Context, from, to hours.DateHour) ([]types.PricePoint, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT date, hour, id, price
		FROM price
		WHERE ((date = ? AND hour >= ?) OR date > ?)
		  AND ((date = ? AND hour < ?) OR date < ?)
		ORDER BY date, hour ASC`,
		from.Date, from.Hour, from.Date,
		to.Date, to.Hour, to.Date)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

func (d *Database) QueryDay(ctx context.Context, date string) ([]types.PricePoint, error) {
	return d.Query(ctx, hours.At(date, 0), hours.At(hours.AddDays(date, 1), 0))
}

// ReplaceDay deletes whatever is stored for date and writes prices in a
// single transaction.
func (d *Database) ReplaceDay(ctx context.Context, date string, prices []types.PricePoint) error {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM price WHERE date = ?`, date); err != nil {
		return fmt.Errorf("deleting prices of %s: %w", date, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO price (date, hour, id, price) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing price insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if p.When.Date != date {
			return fmt.Errorf("%w: price for %s does not belong to %s", types.ErrInvalidInput, p.When, date)
		}
		if _, err := stmt.ExecContext(ctx, p.When.Date, p.When.Hour, p.When.Key(), p.Price.String()); err != nil {
			return fmt.Errorf("saving price for %s: %w", p.When, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing prices of %s: %w", date, err)
	}

	d.logger.Debug("replaced prices", slog.String("date", date), slog.Int("count", len(prices)))
	return nil
}

// ThirtyDayAverage is the mean price of every stored hour from thirty days
// before date up to and including date.
func (d *Database) ThirtyDayAverage(ctx context.Context, date string) (decimal.Decimal, error) {
	prices, err := d.Query(ctx, hours.At(hours.AddDays(date, -30), 0), hours.At(hours.AddDays(date, 1), 0))
	if err != nil {
		return decimal.Zero, err
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("no prices in the thirty days up to %s: %w", date, types.ErrNotYetAvailable)
	}
	return types.Period(prices).Average(), nil
}

// DailyAverages returns the average price of every stored day in [from, to],
// ordered by date.
func (d *Database) DailyAverages(ctx context.Context, from, to string) ([]types.DailyAverage, error) {
	prices, err := d.Query(ctx, hours.At(from, 0), hours.At(hours.AddDays(to, 1), 0))
	if err != nil {
		return nil, err
	}

	averages := []types.DailyAverage{}
	for start := 0; start < len(prices); {
		end := start
		for end < len(prices) && prices[end].When.Date == prices[start].When.Date {
			end++
		}
		averages = append(averages, types.DailyAverage{
			Date:    prices[start].When.Date,
			Average: types.Period(prices[start:end]).Average(),
		})
		start = end
	}
	return averages, nil
}

// PurgePrices deletes prices older than retentionDays. Zero keeps everything.
func (d *Database) PurgePrices(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	_, err := d.purgeTable(ctx, "price", hours.AddDays(hours.Today(), -retentionDays))
	return err
}

func scanPrices(rows *sql.Rows) ([]types.PricePoint, error) {
	prices := []types.PricePoint{}
	for rows.Next() {
		var p types.PricePoint
		var raw string
		if err := rows.Scan(&p.When.Date, &p.When.Hour, &p.ID, &raw); err != nil {
			return nil, fmt.Errorf("scanning price row: %w", err)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing price %q of %s: %w", raw, p.When, err)
		}
		p.Price = price
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading price rows: %w", err)
	}
	return prices, nil
}
