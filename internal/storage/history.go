package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ytqdgo/internal/models"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY,
	url TEXT,
	title TEXT,
	path TEXT,
	status TEXT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
)`

const (
	busyRetryAttempts = 5
	busyRetryBackoff  = 20 * time.Millisecond
)

// History is the append-only download log backed by SQLite.
type History struct {
	db   *sql.DB
	path string
}

func OpenHistory(dataDir string) (*History, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}

	return &History{db: db, path: dbPath}, nil
}

func (h *History) Path() string {
	return h.path
}

// Append records one download outcome. The row is committed when Append returns.
func (h *History) Append(ctx context.Context, locator, title, path, status string) error {
	return retryOnBusy(ctx, func() error {
		_, err := h.db.ExecContext(ctx,
			"INSERT INTO history (url, title, path, status) VALUES (?, ?, ?, ?)",
			locator, title, path, status,
		)
		return err
	})
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		"SELECT id, url, title, path, status, timestamp FROM history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var (
			rec       models.HistoryRecord
			url       sql.NullString
			title     sql.NullString
			path      sql.NullString
			status    sql.NullString
			timestamp sql.NullTime
		)
		if err := rows.Scan(&rec.Id, &url, &title, &path, &status, &timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.Locator = url.String
		rec.Title = title.String
		rec.Path = path.String
		rec.Status = status.String
		if timestamp.Valid {
			rec.Timestamp = timestamp.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if !isBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(busyRetryBackoff * time.Duration(attempt+1)):
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		}
	}
	return lastErr
}
