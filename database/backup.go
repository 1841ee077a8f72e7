package database

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	backupPrefix = "pvpc_"
	backupSuffix = ".db.zip"
	backupLayout = "20060102_150405"
)

// BackupManifest is stored next to the database copy in every backup archive.
type BackupManifest struct {
	CreatedAt time.Time `json:"createdAt"`
	FirstDay  string    `json:"firstDay,omitempty"`
	LastDay   string    `json:"lastDay,omitempty"`
	Days      int       `json:"days"`
}

type BackupFile struct {
	Path      string
	CreatedAt time.Time
}

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a zipped copy of the database and a manifest of the stored
// price days to the backups directory next to the database file.
func (d *Database) Backup(ctx context.Context) error {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	manifest, err := d.manifest(ctx)
	if err != nil {
		return err
	}

	stamp := manifest.CreatedAt.Format(backupLayout)
	snapshot := filepath.Join(dir, backupPrefix+stamp+".db")
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("vacuuming database into '%s': %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil {
			d.logger.Warn("could not remove uncompressed snapshot", slog.String("path", snapshot), slog.Any("error", err))
		}
	}()

	archive := filepath.Join(dir, backupPrefix+stamp+backupSuffix)
	if err := writeArchive(archive, snapshot, filepath.Base(d.path), manifest); err != nil {
		os.Remove(archive)
		return err
	}

	d.logger.Info("database backup complete",
		slog.String("filename", archive),
		slog.Int("days", manifest.Days),
		slog.String("lastDay", manifest.LastDay))
	return nil
}

func (d *Database) manifest(ctx context.Context) (BackupManifest, error) {
	m := BackupManifest{CreatedAt: time.Now()}
	var first, last sql.NullString
	err := d.read.QueryRowContext(ctx, `SELECT MIN(date), MAX(date), COUNT(DISTINCT date) FROM price`).
		Scan(&first, &last, &m.Days)
	if err != nil {
		return m, fmt.Errorf("reading price range: %w", err)
	}
	m.FirstDay, m.LastDay = first.String, last.String
	return m, nil
}

func writeArchive(archive, snapshot, name string, manifest BackupManifest) error {
	f, err := os.Create(archive)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	src, err := os.Open(snapshot)
	if err != nil {
		return fmt.Errorf("open snapshot for compression: %w", err)
	}
	defer src.Close()

	dbEntry, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: manifest.CreatedAt})
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(dbEntry, src); err != nil {
		return fmt.Errorf("write database to zip: %w", err)
	}

	manifestEntry, err := zw.Create("manifest.json")
	if err != nil {
		return fmt.Errorf("create manifest entry: %w", err)
	}
	if err := json.NewEncoder(manifestEntry).Encode(manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return f.Close()
}

// Backups lists the backup archives, oldest first. Other files are ignored.
func (d *Database) Backups() ([]BackupFile, error) {
	entries, err := os.ReadDir(d.backupDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []BackupFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
		t, err := time.ParseInLocation(backupLayout, stamp, time.Local)
		if err != nil {
			d.logger.Debug("not a backup file", slog.String("filename", name))
			continue
		}
		backups = append(backups, BackupFile{Path: filepath.Join(d.backupDir(), name), CreatedAt: t})
	}
	// ReadDir sorts by name, the timestamp layout keeps that chronological.
	return backups, nil
}

// PurgeBackups deletes archives older than retentionDays, zero keeps all.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	backups, err := d.Backups()
	if err != nil {
		return err
	}

	purged := 0
	for _, b := range backups {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		d.logger.Debug("deleting old backup", slog.String("path", b.Path))
		if err := os.Remove(b.Path); err != nil {
			return fmt.Errorf("remove old backup '%s': %w", b.Path, err)
		}
		purged++
	}

	d.logger.Info("backup purge complete", slog.Int("purged", purged), slog.Int("kept", len(backups)-purged))
	return nil
}
