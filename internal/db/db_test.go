package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/config"
	"agenda/internal/model"
)

func studiosConfigWith(ids ...string) *config.StudiosConfig {
	cfg := &config.StudiosConfig{}
	for _, id := range ids {
		cfg.Studios = append(cfg.Studios, model.Studio{
			ID: id, Name: "Studio " + id, Timezone: "America/Sao_Paulo", Active: true,
		})
	}
	return cfg
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	database, err := New(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func seedStudio(t *testing.T, database *DB, id string) {
	t.Helper()
	require.NoError(t, database.UpsertStudio(context.Background(), model.Studio{
		ID: id, Name: "Studio " + id, Timezone: "America/Sao_Paulo", Active: true,
	}))
}

func newBooking(studioID, date, hhmm string, duration int) *model.Booking {
	return &model.Booking{
		Reference:       uuid.NewString(),
		StudioID:        studioID,
		ServiceIDs:      "corte",
		ServiceName:     "Corte",
		PriceCents:      4990,
		DurationMinutes: duration,
		Date:            date,
		Time:            hhmm,
		ClientName:      "Ana Souza",
		ClientEmail:     "ana@example.com",
	}
}

func TestStudioUpsertAndSync(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	seedStudio(t, database, "centro")
	seedStudio(t, database, "jardins")

	s, err := database.GetStudio(ctx, "centro")
	require.NoError(t, err)
	assert.True(t, s.Active)

	// Sync with only one studio listed deactivates the other.
	err = database.SyncStudiosFromConfig(ctx, studiosConfigWith("centro"))
	require.NoError(t, err)

	s, err = database.GetStudio(ctx, "jardins")
	require.NoError(t, err)
	assert.False(t, s.Active)

	_, err = database.GetStudio(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedStudio(t, database, "centro")

	svc := model.Service{
		ID:                    "coloracao",
		StudioID:              "centro",
		Name:                  "Coloração",
		DurationMinutes:       90,
		PriceCents:            12000,
		ConflictGroupID:       "quimica",
		ConflictingServiceIDs: []string{"alisamento", "luzes"},
		Active:                true,
	}
	require.NoError(t, database.UpsertService(ctx, svc))

	got, err := database.GetService(ctx, "coloracao")
	require.NoError(t, err)
	assert.Equal(t, "quimica", got.ConflictGroupID)
	assert.Equal(t, []string{"alisamento", "luzes"}, got.ConflictingServiceIDs)

	require.NoError(t, database.DeactivateService(ctx, "coloracao"))

	list, err := database.ListServices(ctx, "centro")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = database.GetServices(ctx, []string{"coloracao"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWeekScheduleDefaults(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedStudio(t, database, "centro")

	_, err := database.GetWeekSchedule(ctx, "centro")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, database.EnsureWeekSchedule(ctx, "centro"))

	week, err := database.GetWeekSchedule(ctx, "centro")
	require.NoError(t, err)

	sunday := week.Day(0)
	assert.False(t, sunday.IsOpen)

	monday := week.Day(1)
	assert.True(t, monday.IsOpen)
	assert.Equal(t, "09:00", monday.OpenTime)
	assert.Equal(t, 30, monday.IntervalMinutes)

	// Overwrite one day; the rest stay untouched.
	tuesday := monday
	tuesday.DayOfWeek = 2
	tuesday.OpenTime = "10:00"
	require.NoError(t, database.SetDaySchedule(ctx, "centro", tuesday))
	require.NoError(t, database.EnsureWeekSchedule(ctx, "centro"))

	week, err = database.GetWeekSchedule(ctx, "centro")
	require.NoError(t, err)
	assert.Equal(t, "10:00", week.Day(2).OpenTime)
}

func TestBlockedPeriods(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedStudio(t, database, "centro")

	block := model.BlockedPeriod{
		ID:       uuid.NewString(),
		StudioID: "centro",
		Date:     "2026-09-07",
		Reason:   "feriado",
	}
	require.NoError(t, database.CreateBlockedPeriod(ctx, block))

	blocks, err := database.ListBlockedPeriods(ctx, "centro", "2026-09-07")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].WholeDay())

	blocks, err = database.ListBlockedPeriods(ctx, "centro", "2026-09-08")
	require.NoError(t, err)
	assert.Empty(t, blocks)

	require.NoError(t, database.DeleteBlockedPeriod(ctx, block.ID))
	assert.ErrorIs(t, database.DeleteBlockedPeriod(ctx, block.ID), ErrNotFound)
}

func TestCreateBookingRejectsOverlap(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedStudio(t, database, "centro")

	first := newBooking("centro", "2026-09-07", "10:00", 60)
	require.NoError(t, database.CreateBooking(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, model.StatusPending, first.Status)

	// Overlapping start inside the first booking.
	err := database.CreateBooking(ctx, newBooking("centro", "2026-09-07", "10:30", 60))
	assert.ErrorIs(t, err, ErrSlotTaken)

	// Ending exactly at the first booking's start is fine.
	require.NoError(t, database.CreateBooking(ctx, newBooking("centro", "2026-09-07", "09:00", 60)))

	// Starting exactly at the first booking's end is fine.
	require.NoError(t, database.CreateBooking(ctx, newBooking("centro", "2026-09-07", "11:00", 30)))

	// Other studios and other dates do not collide.
	seedStudio(t, database, "jardins")
	require.NoError(t, database.CreateBooking(ctx, newBooking("jardins", "2026-09-07", "10:00", 60)))
	require.NoError(t, database.CreateBooking(ctx, newBooking("centro", "2026-09-08", "10:00", 60)))
}

func TestConcurrentOverlappingCreates(t *testing.T) {
	database := newTestDB(t)
	seedStudio(t, database, "centro")
	ctx := context.Background()

	const writers = 4
	start := make(chan struct{})
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			<-start
			errs <- database.CreateBooking(ctx, newBooking("centro", "2026-09-07", "10:00", 60))
		}()
	}
	close(start)

	created, taken := 0, 0
	for i := 0; i < writers; i++ {
		switch err := <-errs; {
		case err == nil:
			created++
		case errors.Is(err, ErrSlotTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, taken)
}

func TestCancelledBookingFreesSlot(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedStudio(t, database, "centro")

	b := newBooking("centro", "2026-09-07", "10:00", 60)
	require.NoError(t, database.CreateBooking(ctx, b))

	_, err := database.UpdateBookingStatus(ctx, b.ID, model.StatusCancelled)
	require.NoError(t, err)

	require.NoError(t, database.CreateBooking(ctx, newBooking("centro", "2026-09-07", "10:00", 60)))
}

func TestBookingStatusTransitions(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedStudio(t, database, "centro")

	b := newBooking("centro", "2026-09-07", "10:00", 60)
	require.NoError(t, database.CreateBooking(ctx, b))

	got, err := database.UpdateBookingStatus(ctx, b.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	// pending-only transitions are now illegal.
	_, err = database.UpdateBookingStatus(ctx, b.ID, model.StatusPending)
	assert.Error(t, err)

	got, err = database.UpdateBookingStatus(ctx, b.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	_, err = database.UpdateBookingStatus(ctx, b.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBookingLookupAndNotificationFlags(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	seedStudio(t, database, "centro")

	b := newBooking("centro", "2026-09-07", "14:00", 45)
	require.NoError(t, database.CreateBooking(ctx, b))

	got, err := database.GetBookingByReference(ctx, b.Reference)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.False(t, got.EmailSent)

	require.NoError(t, database.MarkNotificationSent(ctx, b.ID, "email"))
	got, err = database.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailSent)
	assert.False(t, got.WhatsAppSent)

	assert.Error(t, database.MarkNotificationSent(ctx, b.ID, "sms"))

	list, err := database.ListBookingsForDate(ctx, "centro", "2026-09-07")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestBackupAndCleanup(t *testing.T) {
	database := newTestDB(t)
	seedStudio(t, database, "centro")

	dir := t.TempDir()
	dest := filepath.Join(dir, "agenda-backup.db")
	require.NoError(t, database.Backup(dest))
	assert.FileExists(t, dest)

	// Fresh backups survive cleanup.
	database.CleanupOldBackups(dir, 24*time.Hour)
	assert.FileExists(t, dest)
}
