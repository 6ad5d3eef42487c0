package api

import (
	"errors"
	"net/http"
	"strings"

	"agenda/internal/booking"
	"agenda/internal/conflict"
	"agenda/internal/db"
	"agenda/internal/metrics"
	"agenda/internal/model"
)

// SessionResponse is the client view of a booking flow session.
type SessionResponse struct {
	ID        string          `json:"id"`
	StudioID  string          `json:"studio_id"`
	Step      booking.Step    `json:"step"`
	Services  []model.Service `json:"services"`
	Date      string          `json:"date,omitempty"`
	Time      string          `json:"time,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	Booking   *model.Booking  `json:"booking,omitempty"`
}

func sessionView(s *booking.Session) SessionResponse {
	date, hhmm := s.DateTime()
	return SessionResponse{
		ID:        s.ID,
		StudioID:  s.StudioID,
		Step:      s.Step(),
		Services:  s.Selection(),
		Date:      date,
		Time:      hhmm,
		LastError: s.LastError(),
		Booking:   s.Booking(),
	}
}

// handleStartSession opens a flow session for a studio.
// POST /api/v1/sessions
func (s *HTTPServer) handleStartSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_start")

	var req struct {
		StudioID string `json:"studio_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	studio, err := s.db.GetStudio(r.Context(), req.StudioID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !studio.Active {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	session := s.flow.Start(studio.ID)
	writeJSON(w, http.StatusCreated, sessionView(session))
}

// handleGetSession returns the session's current state.
// GET /api/v1/sessions/{id}
func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_get")

	session := s.flow.Sessions().Get(r.PathValue("id"))
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

// session loads the session from the path or writes a 404.
func (s *HTTPServer) session(w http.ResponseWriter, r *http.Request) *booking.Session {
	session := s.flow.Sessions().Get(r.PathValue("id"))
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found or expired")
	}
	return session
}

// handleSessionToggleService adds or removes a service from the selection.
// POST /api/v1/sessions/{id}/services
func (s *HTTPServer) handleSessionToggleService(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_toggle_service")

	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		ServiceID string `json:"service_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}

	svc, err := s.db.GetService(r.Context(), req.ServiceID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if svc.StudioID != session.StudioID || !svc.Active {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.flow.ToggleService(r.Context(), session, *svc); err != nil {
		var conflictErr *conflict.Error
		if errors.As(err, &conflictErr) {
			metrics.IncConflictRejected()
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

// handleSessionDate records the chosen date.
// POST /api/v1/sessions/{id}/date
func (s *HTTPServer) handleSessionDate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_date")

	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.flow.ChooseDate(session, req.Date); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

// handleSessionTime records the chosen time after an availability check.
// POST /api/v1/sessions/{id}/time
func (s *HTTPServer) handleSessionTime(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_time")

	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		Time string `json:"time"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.flow.ChooseTime(r.Context(), session, req.Time); err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

// handleSessionCustomer records the contact form.
// POST /api/v1/sessions/{id}/customer
func (s *HTTPServer) handleSessionCustomer(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_customer")

	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	customer := booking.Customer{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	}
	if err := s.flow.SetCustomer(session, customer); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

// handleSessionBack steps the session one stage backward.
// POST /api/v1/sessions/{id}/back
func (s *HTTPServer) handleSessionBack(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_back")

	session := s.session(w, r)
	if session == nil {
		return
	}
	s.flow.Back(session)
	writeJSON(w, http.StatusOK, sessionView(session))
}

// handleSessionConfirm submits the booking. On failure the session stays at
// the customer form with its state intact, so the client can retry.
// POST /api/v1/sessions/{id}/confirm
func (s *HTTPServer) handleSessionConfirm(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_confirm")

	session := s.session(w, r)
	if session == nil {
		return
	}
	if _, err := s.flow.Confirm(r.Context(), session); err != nil {
		s.writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(session))
}

// writeFlowError maps flow failures. Domain sentinels reuse the shared
// mapping; anything else from the flow is a user-facing rejection, such as
// a time that is no longer free.
func (s *HTTPServer) writeFlowError(w http.ResponseWriter, err error) {
	var conflictErr *conflict.Error
	switch {
	case errors.As(err, &conflictErr),
		errors.Is(err, booking.ErrAvailabilityUnknown),
		errors.Is(err, db.ErrNotFound),
		errors.Is(err, db.ErrSlotTaken),
		errors.Is(err, db.ErrPastDate),
		errors.Is(err, db.ErrDateTooFar):
		s.writeServiceError(w, err)
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}
