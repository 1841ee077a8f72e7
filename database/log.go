package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultLogPageSize = 25
	maxLogPageSize     = 500
)

type LogEntryRow struct {
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"level"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs"`
}

// LogPage is one page of log entries, newest first.
type LogPage struct {
	Entries  []LogEntryRow `json:"entries"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
}

func (d *Database) SaveLogEntry(ctx context.Context, r LogEntryRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO log (timestamp, level, message, attrs)
		VALUES (?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(time.RFC3339Nano), r.Level, r.Message, r.Attrs)
	if err != nil {
		return fmt.Errorf("saving log entry: %w", err)
	}
	return nil
}

// GetLogEntries returns the entries at minLvl or above. Pages start at 1.
func (d *Database) GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) (LogPage, error) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = defaultLogPageSize
	}
	pageSize = min(pageSize, maxLogPageSize)
	result := LogPage{Entries: []LogEntryRow{}, Page: page, PageSize: pageSize}

	err := d.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM log WHERE level >= ?`, int(minLvl)).Scan(&result.Total)
	if err != nil {
		return result, fmt.Errorf("counting log entries: %w", err)
	}
	if result.Total <= (page-1)*pageSize {
		return result, nil
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT timestamp, level, message, attrs
		FROM log
		WHERE level >= ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		int(minLvl), pageSize, (page-1)*pageSize)
	if err != nil {
		return result, fmt.Errorf("fetching log entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r LogEntryRow
		var ts string
		if err := rows.Scan(&ts, &r.Level, &r.Message, &r.Attrs); err != nil {
			return result, fmt.Errorf("scanning log row: %w", err)
		}
		if r.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return result, fmt.Errorf("parsing timestamp %q: %w", ts, err)
		}
		result.Entries = append(result.Entries, r)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("reading log rows: %w", err)
	}
	return result, nil
}

// PurgeLog keeps the newest maxLogEntries entries, zero keeps all.
func (d *Database) PurgeLog(ctx context.Context, maxLogEntries int) error {
	if maxLogEntries < 1 {
		return nil
	}
	res, err := d.write.ExecContext(ctx, `
		DELETE FROM log WHERE id <= (SELECT id FROM log ORDER BY id DESC LIMIT 1 OFFSET ?)`, maxLogEntries)
	if err != nil {
		return fmt.Errorf("purging log: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.logger.Debug("purged log", slog.Int64("rows", n))
	}
	return nil
}
