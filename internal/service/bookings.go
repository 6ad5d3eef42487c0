package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agenda/internal/booking"
	"agenda/internal/cache"
	"agenda/internal/db"
	"agenda/internal/events"
	"agenda/internal/metrics"
	"agenda/internal/model"
)

// BookingStore is the persistence surface booking creation needs. *db.DB
// satisfies it.
type BookingStore interface {
	GetStudio(ctx context.Context, id string) (*model.Studio, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	GetBookingByReference(ctx context.Context, ref string) (*model.Booking, error)
	ListBookingsForDate(ctx context.Context, studioID, date string) ([]*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) (*model.Booking, error)
}

// Rules bound how far in advance bookings may be placed.
type Rules struct {
	MinAdvance time.Duration
	MaxAdvance time.Duration
}

// Bookings persists confirmed appointments and drives status changes. It
// implements booking.AppointmentCreator for the flow.
type Bookings struct {
	store   BookingStore
	checker booking.AvailabilityChecker
	bus     *events.Bus
	cache   *cache.Cache
	rules   Rules
	logger  *zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func NewBookings(store BookingStore, checker booking.AvailabilityChecker, bus *events.Bus, c *cache.Cache, rules Rules, logger *zerolog.Logger) *Bookings {
	return &Bookings{
		store:   store,
		checker: checker,
		bus:     bus,
		cache:   c,
		rules:   rules,
		logger:  logger,
		now:     time.Now,
	}
}

// startAt resolves the booking start in the studio's timezone. An unknown
// timezone falls back to the server's; an unknown studio is an error.
func (s *Bookings) startAt(ctx context.Context, studioID, date, hhmm string) (time.Time, error) {
	studio, err := s.store.GetStudio(ctx, studioID)
	if err != nil {
		return time.Time{}, err
	}
	if !studio.Active {
		return time.Time{}, db.ErrNotFound
	}

	loc := time.Local
	if studio.Timezone != "" {
		if l, err := time.LoadLocation(studio.Timezone); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, loc)
}

// CreateAppointment verifies the advance rules and slot availability, then
// persists the booking and publishes a created event. The storage layer
// re-checks for overlap inside its transaction, so two racing confirmations
// cannot both land.
func (s *Bookings) CreateAppointment(ctx context.Context, req booking.CreateRequest) (*model.Booking, error) {
	start, err := s.startAt(ctx, req.StudioID, req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	if start.Before(now.Add(s.rules.MinAdvance)) {
		return nil, db.ErrPastDate
	}
	if s.rules.MaxAdvance > 0 && start.After(now.Add(s.rules.MaxAdvance)) {
		return nil, db.ErrDateTooFar
	}

	ok, err := s.checker.SlotAvailable(ctx, req.StudioID, req.Date, req.Time, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, db.ErrSlotTaken
	}

	b := &model.Booking{
		Reference:       uuid.NewString(),
		StudioID:        req.StudioID,
		ServiceIDs:      strings.Join(req.ServiceIDs, ","),
		ServiceName:     req.ServiceName,
		PriceCents:      req.PriceCents,
		DurationMinutes: req.DurationMinutes,
		Date:            req.Date,
		Time:            req.Time,
		ClientName:      req.Customer.Name,
		ClientEmail:     req.Customer.Email,
		ClientPhone:     req.Customer.Phone,
		Status:          model.StatusPending,
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	metrics.IncBookingCreated(b.Status)
	s.cache.InvalidateDay(ctx, b.StudioID, b.Date)
	s.publish(events.TypeBookingCreated, b)

	s.logger.Info().
		Str("reference", b.Reference).
		Str("studio", b.StudioID).
		Str("date", b.Date).
		Str("time", b.Time).
		Msg("booking created")
	return b, nil
}

// SetStatus applies a status transition and handles the side effects of a
// cancellation: freed slots must become visible again.
func (s *Bookings) SetStatus(ctx context.Context, id int64, status string) (*model.Booking, error) {
	b, err := s.store.UpdateBookingStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if status == model.StatusCancelled {
		metrics.IncBookingCancelled()
		s.cache.InvalidateDay(ctx, b.StudioID, b.Date)
		s.publish(events.TypeBookingCancelled, b)
	}
	return b, nil
}

func (s *Bookings) Get(ctx context.Context, id int64) (*model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *Bookings) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	return s.store.GetBookingByReference(ctx, ref)
}

func (s *Bookings) ListForDate(ctx context.Context, studioID, date string) ([]*model.Booking, error) {
	return s.store.ListBookingsForDate(ctx, studioID, date)
}

func (s *Bookings) publish(eventType string, b *model.Booking) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: eventType, StudioID: b.StudioID, Payload: b})
}
