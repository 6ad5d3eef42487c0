package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agenda/internal/model"
)

// DefaultDaySchedule provides the hours applied when a studio has no
// configured entry yet.
var DefaultDaySchedule = model.DaySchedule{
	IsOpen:          true,
	OpenTime:        "09:00",
	LunchStart:      "12:00",
	LunchEnd:        "13:00",
	CloseTime:       "18:00",
	IntervalMinutes: 30,
}

// EnsureWeekSchedule creates default entries for every weekday a studio is
// missing. Sunday defaults to closed.
func (db *DB) EnsureWeekSchedule(ctx context.Context, studioID string) error {
	for day := 0; day < 7; day++ {
		var count int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM week_schedules WHERE studio_id = ? AND day_of_week = ?",
			studioID, day,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check schedule: %w", err)
		}
		if count > 0 {
			continue
		}

		entry := DefaultDaySchedule
		entry.DayOfWeek = day
		if day == 0 {
			entry.IsOpen = false
		}
		if err := db.SetDaySchedule(ctx, studioID, entry); err != nil {
			return fmt.Errorf("create schedule for studio %s day %d: %w", studioID, day, err)
		}
	}
	return nil
}

// SetDaySchedule writes one weekday entry for a studio.
func (db *DB) SetDaySchedule(ctx context.Context, studioID string, d model.DaySchedule) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("day schedule: %w", err)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO week_schedules (
			studio_id, day_of_week, is_open, open_time, lunch_start, lunch_end,
			close_time, interval_minutes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(studio_id, day_of_week) DO UPDATE SET
			is_open = excluded.is_open,
			open_time = excluded.open_time,
			lunch_start = excluded.lunch_start,
			lunch_end = excluded.lunch_end,
			close_time = excluded.close_time,
			interval_minutes = excluded.interval_minutes,
			updated_at = excluded.updated_at`,
		studioID, d.DayOfWeek, d.IsOpen, d.OpenTime, d.LunchStart, d.LunchEnd,
		d.CloseTime, d.IntervalMinutes, time.Now(),
	)
	return err
}

// GetWeekSchedule loads all seven weekday entries for a studio. An incomplete
// table yields ErrNotFound; callers treat that as closed.
func (db *DB) GetWeekSchedule(ctx context.Context, studioID string) (model.WeekSchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, is_open, open_time, lunch_start, lunch_end,
		       close_time, interval_minutes
		FROM week_schedules
		WHERE studio_id = ?
		ORDER BY day_of_week`, studioID)
	if err != nil {
		return model.WeekSchedule{}, err
	}
	defer rows.Close()

	var days []model.DaySchedule
	for rows.Next() {
		var d model.DaySchedule
		if err := rows.Scan(
			&d.DayOfWeek, &d.IsOpen, &d.OpenTime, &d.LunchStart, &d.LunchEnd,
			&d.CloseTime, &d.IntervalMinutes,
		); err != nil {
			return model.WeekSchedule{}, err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return model.WeekSchedule{}, err
	}
	if len(days) == 0 {
		return model.WeekSchedule{}, ErrNotFound
	}

	week, err := model.NewWeekSchedule(days)
	if err != nil {
		return model.WeekSchedule{}, fmt.Errorf("studio %s: %w", studioID, err)
	}
	return week, nil
}

// CreateBlockedPeriod inserts a blocked period after validation.
func (db *DB) CreateBlockedPeriod(ctx context.Context, b model.BlockedPeriod) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO blocked_periods (id, studio_id, date, start_time, end_time, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StudioID, b.Date, b.StartTime, b.EndTime, b.Reason, time.Now(),
	)
	return err
}

// ListBlockedPeriods returns blocks for a studio; date filters to one day
// when non-empty.
func (db *DB) ListBlockedPeriods(ctx context.Context, studioID, date string) ([]model.BlockedPeriod, error) {
	query := `
		SELECT id, studio_id, date, start_time, end_time, reason, created_at
		FROM blocked_periods WHERE studio_id = ?`
	args := []any{studioID}
	if date != "" {
		query += " AND date = ?"
		args = append(args, date)
	}
	query += " ORDER BY date, start_time"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.BlockedPeriod
	for rows.Next() {
		var b model.BlockedPeriod
		if err := rows.Scan(
			&b.ID, &b.StudioID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// GetBlockedPeriod returns a block by ID.
func (db *DB) GetBlockedPeriod(ctx context.Context, id string) (*model.BlockedPeriod, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, studio_id, date, start_time, end_time, reason, created_at
		FROM blocked_periods WHERE id = ?`, id)

	var b model.BlockedPeriod
	err := row.Scan(&b.ID, &b.StudioID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBlockedPeriod removes a block by ID.
func (db *DB) DeleteBlockedPeriod(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM blocked_periods WHERE id = ?", id)
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
