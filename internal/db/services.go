package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"agenda/internal/model"
)

// UpsertService creates or updates a service record.
func (db *DB) UpsertService(ctx context.Context, s model.Service) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (
			id, studio_id, name, description, duration_minutes, price_cents,
			conflict_group_id, conflicting_service_ids, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			duration_minutes = excluded.duration_minutes,
			price_cents = excluded.price_cents,
			conflict_group_id = excluded.conflict_group_id,
			conflicting_service_ids = excluded.conflicting_service_ids,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		s.ID, s.StudioID, s.Name, s.Description, s.DurationMinutes, s.PriceCents,
		s.ConflictGroupID, strings.Join(s.ConflictingServiceIDs, ","),
		s.Active, time.Now(), time.Now(),
	)
	return err
}

// GetService returns a service by ID.
func (db *DB) GetService(ctx context.Context, id string) (*model.Service, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, studio_id, name, description, duration_minutes, price_cents,
		       conflict_group_id, conflicting_service_ids, active, created_at, updated_at
		FROM services WHERE id = ?`, id)
	return scanService(row)
}

// ListServices returns the active services of a studio.
func (db *DB) ListServices(ctx context.Context, studioID string) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, studio_id, name, description, duration_minutes, price_cents,
		       conflict_group_id, conflicting_service_ids, active, created_at, updated_at
		FROM services
		WHERE studio_id = ? AND active = 1
		ORDER BY name`, studioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}
	return services, rows.Err()
}

// GetServices resolves a list of service IDs, preserving order. Missing or
// inactive services yield ErrNotFound.
func (db *DB) GetServices(ctx context.Context, ids []string) ([]model.Service, error) {
	services := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		svc, err := db.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		if !svc.Active {
			return nil, ErrNotFound
		}
		services = append(services, *svc)
	}
	return services, nil
}

// DeactivateService hides a service from new bookings. Bookings keep their
// snapshots, so the record is never deleted.
func (db *DB) DeactivateService(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE services SET active = 0, updated_at = ? WHERE id = ?",
		time.Now(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*model.Service, error) {
	var s model.Service
	var conflicts string
	err := row.Scan(
		&s.ID, &s.StudioID, &s.Name, &s.Description, &s.DurationMinutes,
		&s.PriceCents, &s.ConflictGroupID, &conflicts, &s.Active,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if conflicts != "" {
		for _, id := range strings.Split(conflicts, ",") {
			if id = strings.TrimSpace(id); id != "" {
				s.ConflictingServiceIDs = append(s.ConflictingServiceIDs, id)
			}
		}
	}
	return &s, nil
}
