// Package db implements SQLite persistence for studios, services, schedules,
// blocked periods and bookings.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is returned when a booking would overlap an active one.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrPastDate is returned for bookings scheduled before the allowed window.
	ErrPastDate = errors.New("cannot book in the past")
	// ErrDateTooFar is returned for bookings beyond the advance limit.
	ErrDateTooFar = errors.New("date is too far in the future")
	// ErrInvalidTransition is returned for illegal booking status changes.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// New opens (and if needed creates) the database at path, applying WAL mode
// and the schema.
func New(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// _txlock=immediate takes the write lock at BEGIN, so the overlap
	// re-check inside CreateBooking is serialized against racing writers.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, path: path, logger: logger}
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS studios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'America/Sao_Paulo',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			duration_minutes INTEGER NOT NULL,
			price_cents INTEGER NOT NULL DEFAULT 0,
			conflict_group_id TEXT NOT NULL DEFAULT '',
			conflicting_service_ids TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS week_schedules (
			studio_id TEXT NOT NULL REFERENCES studios(id),
			day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			is_open INTEGER NOT NULL DEFAULT 0,
			open_time TEXT NOT NULL DEFAULT '',
			lunch_start TEXT NOT NULL DEFAULT '',
			lunch_end TEXT NOT NULL DEFAULT '',
			close_time TEXT NOT NULL DEFAULT '',
			interval_minutes INTEGER NOT NULL DEFAULT 30,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (studio_id, day_of_week)
		)`,
		`CREATE TABLE IF NOT EXISTS blocked_periods (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id),
			date TEXT NOT NULL,
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocked_periods_date
			ON blocked_periods (studio_id, date)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT NOT NULL UNIQUE,
			studio_id TEXT NOT NULL REFERENCES studios(id),
			service_ids TEXT NOT NULL,
			service_name TEXT NOT NULL,
			price_cents INTEGER NOT NULL DEFAULT 0,
			duration_minutes INTEGER NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			client_name TEXT NOT NULL,
			client_email TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			email_sent INTEGER NOT NULL DEFAULT 0,
			whatsapp_sent INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date
			ON bookings (studio_id, date, status)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// Backup copies the database file to dest. Safe under WAL because readers do
// not block the copy; a checkpoint is requested first.
func (db *DB) Backup(dest string) error {
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Warn().Err(err).Msg("wal checkpoint before backup failed")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	src, err := os.ReadFile(db.path)
	if err != nil {
		return fmt.Errorf("failed to read database file: %w", err)
	}
	if err := os.WriteFile(dest, src, 0o644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// CleanupOldBackups deletes backups in dir older than retention.
func (db *DB) CleanupOldBackups(dir string, retention time.Duration) {
	files, err := os.ReadDir(dir)
	if err != nil {
		db.logger.Error().Err(err).Msg("failed to read backup directory")
		return
	}

	cutoff := time.Now().Add(-retention)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			db.logger.Info().Str("file", file.Name()).Msg("deleting old backup")
			_ = os.Remove(filepath.Join(dir, file.Name()))
		}
	}
}

// PingContext reports whether the database is reachable.
func (db *DB) PingContext(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}
