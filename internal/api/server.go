// Package api exposes the availability, conflict and booking operations as a
// JSON HTTP API under /api/v1.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"agenda/internal/booking"
	"agenda/internal/conflict"
	"agenda/internal/db"
	"agenda/internal/events"
	"agenda/internal/service"
)

// HTTPServer holds the dependencies of the API handlers.
type HTTPServer struct {
	db           *db.DB
	availability *service.Availability
	bookings     *service.Bookings
	flow         *booking.Flow
	bus          *events.Bus
	apiKey       string
	logger       *zerolog.Logger
}

func NewHTTPServer(database *db.DB, availability *service.Availability, bookings *service.Bookings, flow *booking.Flow, bus *events.Bus, apiKey string, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		db:           database,
		availability: availability,
		bookings:     bookings,
		flow:         flow,
		bus:          bus,
		apiKey:       apiKey,
		logger:       logger,
	}
}

// publishSettings announces a settings mutation so subscribers can react,
// the slot cache invalidation among them. A date scopes the change to one
// day; empty covers the whole studio.
func (s *HTTPServer) publishSettings(studioID, date string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:     events.TypeSettingsUpdated,
		StudioID: studioID,
		Payload:  events.SettingsChange{StudioID: studioID, Date: date},
	})
}

// Handler builds the route table. Admin routes require the API key; the
// public routes are what a booking widget calls.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/studios", s.handleListStudios)
	mux.HandleFunc("GET /api/v1/studios/{id}/services", s.handleListServices)
	mux.HandleFunc("GET /api/v1/slots", s.handleSlots)
	mux.HandleFunc("POST /api/v1/conflicts/check", s.handleConflictCheck)
	mux.HandleFunc("POST /api/v1/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{ref}", s.handleGetBooking)

	mux.HandleFunc("POST /api/v1/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/services", s.handleSessionToggleService)
	mux.HandleFunc("POST /api/v1/sessions/{id}/date", s.handleSessionDate)
	mux.HandleFunc("POST /api/v1/sessions/{id}/time", s.handleSessionTime)
	mux.HandleFunc("POST /api/v1/sessions/{id}/customer", s.handleSessionCustomer)
	mux.HandleFunc("POST /api/v1/sessions/{id}/back", s.handleSessionBack)
	mux.HandleFunc("POST /api/v1/sessions/{id}/confirm", s.handleSessionConfirm)

	mux.HandleFunc("GET /api/v1/admin/bookings", s.requireKey(s.handleListBookings))
	mux.HandleFunc("POST /api/v1/admin/bookings/{ref}/status", s.requireKey(s.handleBookingStatus))
	mux.HandleFunc("GET /api/v1/admin/studios/{id}/schedule", s.requireKey(s.handleGetSchedule))
	mux.HandleFunc("PUT /api/v1/admin/studios/{id}/schedule", s.requireKey(s.handleSetSchedule))
	mux.HandleFunc("POST /api/v1/admin/blocked-periods", s.requireKey(s.handleCreateBlock))
	mux.HandleFunc("GET /api/v1/admin/blocked-periods", s.requireKey(s.handleListBlocks))
	mux.HandleFunc("DELETE /api/v1/admin/blocked-periods/{id}", s.requireKey(s.handleDeleteBlock))
	mux.HandleFunc("PUT /api/v1/admin/services/{id}", s.requireKey(s.handleUpsertService))
	mux.HandleFunc("DELETE /api/v1/admin/services/{id}", s.requireKey(s.handleDeactivateService))

	return mux
}

// requireKey guards admin routes. An empty configured key disables the
// check, which is only acceptable in development.
func (s *HTTPServer) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var conflictErr *conflict.Error
	switch {
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      conflictErr.Reason,
			"service_id": conflictErr.ServiceID,
			"other_id":   conflictErr.OtherID,
		})
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, db.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot is no longer available")
	case errors.Is(err, db.ErrPastDate), errors.Is(err, db.ErrDateTooFar),
		errors.Is(err, db.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrAvailabilityUnknown):
		writeError(w, http.StatusServiceUnavailable, "availability could not be verified, try again")
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}
