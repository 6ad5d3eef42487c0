package api

import (
	"net/http"
	"strconv"
	"strings"

	"agenda/internal/conflict"
	"agenda/internal/metrics"
	"agenda/internal/model"
)

// SlotsResponse is the response for GET /api/v1/slots.
type SlotsResponse struct {
	StudioID        string           `json:"studio_id"`
	Date            string           `json:"date"`
	DurationMinutes int              `json:"duration_minutes"`
	Slots           []model.TimeSlot `json:"slots"`
}

// handleSlots computes availability for a studio and date. The duration
// comes either from service_ids (aggregated, conflict-checked) or from an
// explicit duration parameter.
// GET /api/v1/slots?studio_id=centro&date=2026-09-07&service_ids=corte,escova
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	q := r.URL.Query()
	studioID := q.Get("studio_id")
	date := q.Get("date")
	if studioID == "" || date == "" {
		writeError(w, http.StatusBadRequest, "studio_id and date are required")
		return
	}

	duration := 0
	if ids := splitIDs(q.Get("service_ids")); len(ids) > 0 {
		services, err := s.db.GetServices(r.Context(), ids)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if cerr := conflict.ValidateSet(services); cerr != nil {
			metrics.IncConflictRejected()
			s.writeServiceError(w, cerr)
			return
		}
		duration = conflict.TotalDuration(services)
	} else if raw := q.Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "duration must be a positive integer of minutes")
			return
		}
		duration = d
	} else {
		writeError(w, http.StatusBadRequest, "service_ids or duration is required")
		return
	}

	result, err := s.availability.ComputeSlots(r.Context(), studioID, date, duration)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result == nil {
		result = []model.TimeSlot{}
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		StudioID:        studioID,
		Date:            date,
		DurationMinutes: duration,
		Slots:           result,
	})
}

// ConflictCheckRequest is the request body for POST /api/v1/conflicts/check.
type ConflictCheckRequest struct {
	ServiceIDs []string `json:"service_ids"`
}

// handleConflictCheck validates a service combination without touching any
// booking state, so clients can disable incompatible options up front.
func (s *HTTPServer) handleConflictCheck(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("conflict_check")

	var req ConflictCheckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.ServiceIDs) == 0 {
		writeError(w, http.StatusBadRequest, "service_ids is required")
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

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"duration_minutes": conflict.TotalDuration(services),
		"price_cents":      conflict.TotalPriceCents(services),
	})
}

func (s *HTTPServer) handleListStudios(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("studios")

	studios, err := s.db.ListStudios(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	active := make([]model.Studio, 0, len(studios))
	for _, st := range studios {
		if st.Active {
			active = append(active, st)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"studios": active})
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("services")

	services, err := s.db.ListServices(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
