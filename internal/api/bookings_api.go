package api

import (
	"net/http"
	"strings"

	"agenda/internal/booking"
	"agenda/internal/conflict"
	"agenda/internal/metrics"
	"agenda/internal/model"
)

// CreateBookingRequest is the request body for POST /api/v1/bookings.
type CreateBookingRequest struct {
	StudioID   string   `json:"studio_id"`
	ServiceIDs []string `json:"service_ids"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Time       string   `json:"time"` // HH:mm
	Customer   struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
}

// handleCreateBooking books an appointment in one shot: resolve services,
// check conflicts, aggregate duration and price, then hand off to the
// booking service which re-verifies availability.
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req CreateBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.StudioID == "" || len(req.ServiceIDs) == 0 || req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "studio_id, service_ids, date and time are required")
		return
	}

	customer := booking.Customer{
		Name:  strings.TrimSpace(req.Customer.Name),
		Email: strings.TrimSpace(req.Customer.Email),
		Phone: strings.TrimSpace(req.Customer.Phone),
	}
	if !customer.Complete() {
		writeError(w, http.StatusBadRequest, "customer name and an email or phone are required")
		return
	}

	services, err := s.db.GetServices(r.Context(), req.ServiceIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if cerr := conflict.ValidateSet(services); cerr != nil {
		metrics.IncConflictRejected()
		s.writeServiceError(w, cerr)
		return
	}

	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.Name)
	}

	created, err := s.bookings.CreateAppointment(r.Context(), booking.CreateRequest{
		StudioID:        req.StudioID,
		ServiceIDs:      req.ServiceIDs,
		ServiceName:     strings.Join(names, " + "),
		DurationMinutes: conflict.TotalDuration(services),
		PriceCents:      conflict.TotalPriceCents(services),
		Date:            req.Date,
		Time:            req.Time,
		Customer:        customer,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleGetBooking returns a booking by its public reference.
// GET /api/v1/bookings/{ref}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking")

	b, err := s.bookings.GetByReference(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleListBookings returns a studio's bookings for a date.
// GET /api/v1/admin/bookings?studio_id=centro&date=2026-09-07
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	studioID := r.URL.Query().Get("studio_id")
	date := r.URL.Query().Get("date")
	if studioID == "" || date == "" {
		writeError(w, http.StatusBadRequest, "studio_id and date are required")
		return
	}

	bookings, err := s.bookings.ListForDate(r.Context(), studioID, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// BookingStatusRequest is the request body for the admin status endpoint.
type BookingStatusRequest struct {
	Status string `json:"status"`
}

// handleBookingStatus applies a status transition to a booking found by
// reference. POST /api/v1/admin/bookings/{ref}/status
func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_status")

	var req BookingStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	b, err := s.bookings.GetByReference(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	updated, err := s.bookings.SetStatus(r.Context(), b.ID, req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
