package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agenda/internal/config"
	"agenda/internal/model"
)

// UpsertStudio creates or updates a studio record.
func (db *DB) UpsertStudio(ctx context.Context, s model.Studio) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO studios (id, name, timezone, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			timezone = excluded.timezone,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		s.ID, s.Name, s.Timezone, s.Active, time.Now(), time.Now(),
	)
	return err
}

// GetStudio returns a studio by ID.
func (db *DB) GetStudio(ctx context.Context, id string) (*model.Studio, error) {
	var s model.Studio
	err := db.QueryRowContext(ctx,
		"SELECT id, name, timezone, active FROM studios WHERE id = ?",
		id,
	).Scan(&s.ID, &s.Name, &s.Timezone, &s.Active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStudios returns all studios.
func (db *DB) ListStudios(ctx context.Context) ([]model.Studio, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, timezone, active FROM studios ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var studios []model.Studio
	for rows.Next() {
		var s model.Studio
		if err := rows.Scan(&s.ID, &s.Name, &s.Timezone, &s.Active); err != nil {
			return nil, err
		}
		studios = append(studios, s)
	}
	return studios, rows.Err()
}

// SyncStudiosFromConfig applies the studios file to the database: listed
// studios are upserted, studios absent from the file are deactivated (never
// deleted, since bookings reference them).
func (db *DB) SyncStudiosFromConfig(ctx context.Context, cfg *config.StudiosConfig) error {
	if cfg == nil {
		return nil
	}

	listed := make(map[string]bool, len(cfg.Studios))
	for _, s := range cfg.Studios {
		if s.ID == "" {
			return fmt.Errorf("studio with empty id in config")
		}
		listed[s.ID] = true
		if err := db.UpsertStudio(ctx, s); err != nil {
			return fmt.Errorf("upsert studio %s: %w", s.ID, err)
		}
	}

	existing, err := db.ListStudios(ctx)
	if err != nil {
		return fmt.Errorf("list studios: %w", err)
	}
	for _, s := range existing {
		if listed[s.ID] || !s.Active {
			continue
		}
		if _, err := db.ExecContext(ctx,
			"UPDATE studios SET active = 0, updated_at = ? WHERE id = ?",
			time.Now(), s.ID,
		); err != nil {
			return fmt.Errorf("deactivate studio %s: %w", s.ID, err)
		}
		db.logger.Info().Str("studio", s.ID).Msg("studio deactivated (absent from config)")
	}
	return nil
}
