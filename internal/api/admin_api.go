package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"agenda/internal/metrics"
	"agenda/internal/model"
)

// handleGetSchedule returns the weekly schedule of a studio.
// GET /api/v1/admin/studios/{id}/schedule
func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_schedule")

	week, err := s.db.GetWeekSchedule(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	days := make([]model.DaySchedule, 0, 7)
	for day := 0; day < 7; day++ {
		days = append(days, week.Day(time.Weekday(day)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// ScheduleRequest is the request body for PUT .../schedule. Days omitted
// from the request keep their stored values.
type ScheduleRequest struct {
	Days []model.DaySchedule `json:"days"`
}

// handleSetSchedule writes weekday entries for a studio and announces the
// settings change, which in turn drops the studio's cached availability.
func (s *HTTPServer) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_schedule")
	studioID := r.PathValue("id")

	if _, err := s.db.GetStudio(r.Context(), studioID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	var req ScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Days) == 0 {
		writeError(w, http.StatusBadRequest, "days is required")
		return
	}

	for _, d := range req.Days {
		if d.DayOfWeek < 0 || d.DayOfWeek > 6 {
			writeError(w, http.StatusBadRequest, "day_of_week must be 0 (Sunday) through 6 (Saturday)")
			return
		}
		if err := s.db.SetDaySchedule(r.Context(), studioID, d); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	s.publishSettings(studioID, "")
	w.WriteHeader(http.StatusNoContent)
}

// BlockRequest is the request body for POST /api/v1/admin/blocked-periods.
// Empty start/end times block the whole day.
type BlockRequest struct {
	StudioID  string `json:"studio_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func (s *HTTPServer) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_block")

	var req BlockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := s.db.GetStudio(r.Context(), req.StudioID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	block := model.BlockedPeriod{
		ID:        uuid.NewString(),
		StudioID:  req.StudioID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	}
	if err := block.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.CreateBlockedPeriod(r.Context(), block); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.publishSettings(block.StudioID, block.Date)
	writeJSON(w, http.StatusCreated, block)
}

func (s *HTTPServer) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_blocks")

	studioID := r.URL.Query().Get("studio_id")
	if studioID == "" {
		writeError(w, http.StatusBadRequest, "studio_id is required")
		return
	}

	blocks, err := s.db.ListBlockedPeriods(r.Context(), studioID, r.URL.Query().Get("date"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if blocks == nil {
		blocks = []model.BlockedPeriod{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_periods": blocks})
}

func (s *HTTPServer) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_block")

	block, err := s.db.GetBlockedPeriod(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if err := s.db.DeleteBlockedPeriod(r.Context(), block.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.publishSettings(block.StudioID, block.Date)
	w.WriteHeader(http.StatusNoContent)
}

// handleUpsertService accepts the raw external representation and stores the
// normalized record. PUT /api/v1/admin/services/{id}
func (s *HTTPServer) handleUpsertService(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("upsert_service")

	var raw model.RawService
	if err := decodeBody(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	raw.ID = r.PathValue("id")

	if _, err := s.db.GetStudio(r.Context(), raw.StudioID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	svc, err := model.NormalizeService(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc.Active = true

	if err := s.db.UpsertService(r.Context(), svc); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.publishSettings(svc.StudioID, "")
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleDeactivateService(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("deactivate_service")

	svc, err := s.db.GetService(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if err := s.db.DeactivateService(r.Context(), svc.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.publishSettings(svc.StudioID, "")
	w.WriteHeader(http.StatusNoContent)
}
