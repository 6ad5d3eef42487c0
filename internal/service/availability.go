// Package service orchestrates availability computation and booking
// creation on top of the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"agenda/internal/booking"
	"agenda/internal/cache"
	"agenda/internal/db"
	"agenda/internal/events"
	"agenda/internal/metrics"
	"agenda/internal/model"
	"agenda/internal/schedule"
	"agenda/internal/slots"
)

// ErrInvalidInput marks validation failures of caller-supplied parameters.
var ErrInvalidInput = errors.New("invalid input")

// ScheduleStore is the persistence surface the availability computation
// needs. *db.DB satisfies it.
type ScheduleStore interface {
	GetStudio(ctx context.Context, id string) (*model.Studio, error)
	GetWeekSchedule(ctx context.Context, studioID string) (model.WeekSchedule, error)
	ListBlockedPeriods(ctx context.Context, studioID, date string) ([]model.BlockedPeriod, error)
	ListBookingsForDate(ctx context.Context, studioID, date string) ([]*model.Booking, error)
}

// Availability computes time slots for a studio, date and duration. Reads go
// through an optional cache; the availability check used during booking
// always recomputes from live data.
type Availability struct {
	store  ScheduleStore
	cache  *cache.Cache
	logger *zerolog.Logger
}

func NewAvailability(store ScheduleStore, c *cache.Cache, logger *zerolog.Logger) *Availability {
	return &Availability{store: store, cache: c, logger: logger}
}

// SubscribeInvalidation drops cached slot lists whenever settings change:
// the whole studio when the change has no date scope, a single day when it
// does. Schedule, block and service mutations publish these events.
func (a *Availability) SubscribeInvalidation(bus *events.Bus) {
	bus.Subscribe(events.TypeSettingsUpdated, func(e events.Event) {
		ctx := context.Background()
		change, ok := e.Payload.(events.SettingsChange)
		if !ok || change.Date == "" {
			a.cache.InvalidateStudio(ctx, e.StudioID)
			return
		}
		a.cache.InvalidateDay(ctx, change.StudioID, change.Date)
	})
}

// dayData is the joined result of the three storage reads a computation
// needs. The week schedule may be legitimately absent.
type dayData struct {
	week     model.WeekSchedule
	noWeek   bool
	blocks   []model.BlockedPeriod
	bookings []*model.Booking
}

// gather fetches schedule, blocks and bookings concurrently. Any storage
// failure poisons the whole result: availability is never guessed from
// partial data.
func (a *Availability) gather(ctx context.Context, studioID, date string) (dayData, error) {
	var (
		wg   sync.WaitGroup
		data dayData
		errs [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		week, err := a.store.GetWeekSchedule(ctx, studioID)
		if errors.Is(err, db.ErrNotFound) {
			data.noWeek = true
			return
		}
		data.week, errs[0] = week, err
	}()
	go func() {
		defer wg.Done()
		data.blocks, errs[1] = a.store.ListBlockedPeriods(ctx, studioID, date)
	}()
	go func() {
		defer wg.Done()
		data.bookings, errs[2] = a.store.ListBookingsForDate(ctx, studioID, date)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return dayData{}, fmt.Errorf("%w: %v", booking.ErrAvailabilityUnknown, err)
		}
	}
	return data, nil
}

// ComputeSlots returns every candidate slot for the date with its
// availability for the given total duration. A studio without usable hours
// yields an empty list, not an error.
func (a *Availability) ComputeSlots(ctx context.Context, studioID, date string, durationMinutes int) ([]model.TimeSlot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	studio, err := a.store.GetStudio(ctx, studioID)
	if err != nil {
		return nil, err
	}
	if !studio.Active {
		return nil, db.ErrNotFound
	}

	key := cache.SlotsKey(studioID, date, durationMinutes)
	var cached []model.TimeSlot
	if a.cache.Read(ctx, key, &cached) {
		return cached, nil
	}

	data, err := a.gather(ctx, studioID, date)
	if err != nil {
		return nil, err
	}

	resolved := schedule.ClosedDay(date)
	if !data.noWeek {
		resolved = schedule.Resolve(day, data.week, data.blocks)
	}

	result := slots.Compute(resolved, durationMinutes, data.bookings)
	metrics.IncSlotsComputed()
	a.cache.Write(ctx, key, result)
	return result, nil
}

// SlotAvailable reports whether hhmm is an available candidate for the
// duration. It bypasses the cache: this is the check the booking flow relies
// on, and it must see bookings created since the last computation.
func (a *Availability) SlotAvailable(ctx context.Context, studioID, date, hhmm string, durationMinutes int) (bool, error) {
	if durationMinutes <= 0 {
		return false, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	day, err := schedule.ParseDate(date)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	data, err := a.gather(ctx, studioID, date)
	if err != nil {
		return false, err
	}
	if data.noWeek {
		return false, nil
	}

	resolved := schedule.Resolve(day, data.week, data.blocks)
	for _, slot := range slots.Compute(resolved, durationMinutes, data.bookings) {
		if slot.Time == hhmm {
			return slot.Available, nil
		}
	}
	return false, nil
}
