package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agenda/internal/model"
	"agenda/internal/timeutil"
)

// CreateBooking inserts a booking after re-checking, inside the transaction,
// that no active booking overlaps its interval. The check runs here and not
// only in the availability computation because a competing booking may land
// between compute and insert.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	start, err := timeutil.TimeToMinutes(b.Time)
	if err != nil {
		return fmt.Errorf("booking time: %w", err)
	}
	if b.DurationMinutes <= 0 {
		return fmt.Errorf("booking duration must be positive")
	}
	end := start + b.DurationMinutes

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT time, duration_minutes FROM bookings
		WHERE studio_id = ? AND date = ? AND status != ?`,
		b.StudioID, b.Date, model.StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("query existing bookings: %w", err)
	}
	for rows.Next() {
		var hhmm string
		var duration int
		if err := rows.Scan(&hhmm, &duration); err != nil {
			rows.Close()
			return err
		}
		existingStart, err := timeutil.TimeToMinutes(hhmm)
		if err != nil {
			continue
		}
		if start < existingStart+duration && end > existingStart {
			rows.Close()
			return ErrSlotTaken
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = model.StatusPending
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			reference, studio_id, service_ids, service_name, price_cents,
			duration_minutes, date, time, client_name, client_email, client_phone,
			status, email_sent, whatsapp_sent, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.StudioID, b.ServiceIDs, b.ServiceName, b.PriceCents,
		b.DurationMinutes, b.Date, b.Time, b.ClientName, b.ClientEmail,
		b.ClientPhone, b.Status, b.EmailSent, b.WhatsAppSent, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const bookingColumns = `
	id, reference, studio_id, service_ids, service_name, price_cents,
	duration_minutes, date, time, client_name, client_email, client_phone,
	status, email_sent, whatsapp_sent, created_at, updated_at`

// GetBooking returns a booking by numeric ID.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx,
		"SELECT"+bookingColumns+" FROM bookings WHERE id = ?", id)
	return scanBooking(row)
}

// GetBookingByReference returns a booking by its public reference.
func (db *DB) GetBookingByReference(ctx context.Context, ref string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx,
		"SELECT"+bookingColumns+" FROM bookings WHERE reference = ?", ref)
	return scanBooking(row)
}

// ListBookingsForDate returns all bookings for a studio on a date, any status.
func (db *DB) ListBookingsForDate(ctx context.Context, studioID, date string) ([]*model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT`+bookingColumns+`
		FROM bookings
		WHERE studio_id = ? AND date = ?
		ORDER BY time`, studioID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// allowedTransitions maps a booking status to the statuses it may move to.
// Status changes are driven by the admin dashboard; the slot computation
// never creates or mutates bookings.
var allowedTransitions = map[string][]string{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
	model.StatusCancelled: {},
	model.StatusCompleted: {},
}

// UpdateBookingStatus applies a status transition, rejecting illegal ones.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) (*model.Booking, error) {
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("unknown status %q", status)
	}

	b, err := db.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	legal := false
	for _, next := range allowedTransitions[b.Status] {
		if next == status {
			legal = true
			break
		}
	}
	if !legal {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, status)
	}

	_, err = db.ExecContext(ctx,
		"UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	if err != nil {
		return nil, err
	}
	return db.GetBooking(ctx, id)
}

// MarkNotificationSent sets a channel's sent flag. Channels succeed
// independently, so each flag is set on its own.
func (db *DB) MarkNotificationSent(ctx context.Context, id int64, channel string) error {
	var column string
	switch channel {
	case "email":
		column = "email_sent"
	case "whatsapp":
		column = "whatsapp_sent"
	default:
		return fmt.Errorf("unknown notification channel %q", channel)
	}

	res, err := db.ExecContext(ctx,
		"UPDATE bookings SET "+column+" = 1, updated_at = ? WHERE id = ?",
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

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.Reference, &b.StudioID, &b.ServiceIDs, &b.ServiceName,
		&b.PriceCents, &b.DurationMinutes, &b.Date, &b.Time, &b.ClientName,
		&b.ClientEmail, &b.ClientPhone, &b.Status, &b.EmailSent, &b.WhatsAppSent,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
