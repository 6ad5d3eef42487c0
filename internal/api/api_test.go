package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/booking"
	"agenda/internal/db"
	"agenda/internal/events"
	"agenda/internal/model"
	"agenda/internal/service"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) (*db.DB, http.Handler) {
	t.Helper()
	database, _, handler := newTestServerWithBus(t)
	return database, handler
}

func newTestServerWithBus(t *testing.T) (*db.DB, *events.Bus, http.Handler) {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.UpsertStudio(ctx, model.Studio{
		ID: "centro", Name: "Studio Centro", Active: true,
	}))
	require.NoError(t, database.EnsureWeekSchedule(ctx, "centro"))

	for _, svc := range []model.Service{
		{ID: "corte", StudioID: "centro", Name: "Corte", DurationMinutes: 60, PriceCents: 4990, Active: true},
		{ID: "escova", StudioID: "centro", Name: "Escova", DurationMinutes: 45, PriceCents: 3500, Active: true},
		{ID: "coloracao", StudioID: "centro", Name: "Coloração", DurationMinutes: 90, PriceCents: 12000, ConflictGroupID: "quimica", Active: true},
		{ID: "alisamento", StudioID: "centro", Name: "Alisamento", DurationMinutes: 120, PriceCents: 18000, ConflictGroupID: "quimica", Active: true},
	} {
		require.NoError(t, database.UpsertService(ctx, svc))
	}

	bus := events.NewBus()
	avail := service.NewAvailability(database, nil, &logger)
	bookings := service.NewBookings(database, avail, bus, nil, service.Rules{
		MinAdvance: time.Hour,
		MaxAdvance: 60 * 24 * time.Hour,
	}, &logger)

	flow := booking.NewFlow(avail, bookings, 30*time.Minute)
	srv := NewHTTPServer(database, avail, bookings, flow, bus, testAPIKey, &logger)
	return database, bus, srv.Handler()
}

// futureDate returns an open weekday comfortably inside the booking window.
func futureDate() string {
	d := time.Now().AddDate(0, 0, 7)
	if d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSlotsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)
	date := futureDate()

	rec := doJSON(t, handler, http.MethodGet,
		"/api/v1/slots?studio_id=centro&date="+date+"&service_ids=corte", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.DurationMinutes)
	require.NotEmpty(t, resp.Slots)
	assert.Equal(t, "09:00", resp.Slots[0].Time)
	assert.True(t, resp.Slots[0].Available)

	for _, s := range resp.Slots {
		assert.NotEqual(t, "12:00", s.Time)
		assert.NotEqual(t, "12:30", s.Time)
	}
}

func TestSlotsEndpointValidation(t *testing.T) {
	_, handler := newTestServer(t)
	date := futureDate()

	tests := []struct {
		name string
		path string
		code int
	}{
		{"missing params", "/api/v1/slots", http.StatusBadRequest},
		{"missing duration", "/api/v1/slots?studio_id=centro&date=" + date, http.StatusBadRequest},
		{"bad duration", "/api/v1/slots?studio_id=centro&date=" + date + "&duration=-5", http.StatusBadRequest},
		{"bad date", "/api/v1/slots?studio_id=centro&date=07/09/2026&duration=60", http.StatusBadRequest},
		{"unknown studio", "/api/v1/slots?studio_id=nope&date=" + date + "&duration=60", http.StatusNotFound},
		{"unknown service", "/api/v1/slots?studio_id=centro&date=" + date + "&service_ids=nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestConflictCheckEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/conflicts/check",
		ConflictCheckRequest{ServiceIDs: []string{"corte", "escova"}}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var ok struct {
		OK              bool  `json:"ok"`
		DurationMinutes int   `json:"duration_minutes"`
		PriceCents      int64 `json:"price_cents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.True(t, ok.OK)
	assert.Equal(t, 105, ok.DurationMinutes)
	assert.Equal(t, int64(8490), ok.PriceCents)

	// Same chemical group: rejected with the group named in the reason.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/conflicts/check",
		ConflictCheckRequest{ServiceIDs: []string{"coloracao", "alisamento"}}, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "quimica")
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	_, handler := newTestServer(t)
	date := futureDate()

	create := CreateBookingRequest{
		StudioID:   "centro",
		ServiceIDs: []string{"corte"},
		Date:       date,
		Time:       "10:00",
	}
	create.Customer.Name = "Ana Souza"
	create.Customer.Email = "ana@example.com"

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bookings", create, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, "Corte", created.ServiceName)

	// The same slot is now rejected.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/bookings", create, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Public lookup by reference.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/bookings/"+created.Reference, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Admin: confirm, then cancel.
	statusPath := fmt.Sprintf("/api/v1/admin/bookings/%s/status", created.Reference)
	rec = doJSON(t, handler, http.MethodPost, statusPath,
		BookingStatusRequest{Status: model.StatusConfirmed}, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, statusPath,
		BookingStatusRequest{Status: model.StatusCancelled}, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	// Cancelled: the slot opens up again.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/bookings", create, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminRoutesRequireAPIKey(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet,
		"/api/v1/admin/bookings?studio_id=centro&date="+futureDate(), nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet,
		"/api/v1/admin/bookings?studio_id=centro&date="+futureDate(), nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet,
		"/api/v1/admin/bookings?studio_id=centro&date="+futureDate(), nil, testAPIKey)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBlockedPeriodAffectsSlots(t *testing.T) {
	_, handler := newTestServer(t)
	date := futureDate()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/admin/blocked-periods",
		BlockRequest{StudioID: "centro", Date: date, Reason: "feriado"}, testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet,
		"/api/v1/slots?studio_id=centro&date="+date+"&duration=60", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Slots)
}

func TestServiceUpsertNormalizesRawInput(t *testing.T) {
	_, handler := newTestServer(t)

	raw := model.RawService{
		StudioID: "centro",
		Name:     "Depilação",
		Duration: "01:30",
		Price:    "89,90",
	}
	rec := doJSON(t, handler, http.MethodPut, "/api/v1/admin/services/depilacao", raw, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var svc model.Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &svc))
	assert.Equal(t, 90, svc.DurationMinutes)
	assert.Equal(t, int64(8990), svc.PriceCents)

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/admin/services/depilacao", nil, testAPIKey)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/studios/centro/services", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "depilacao")
}

func TestScheduleUpdate(t *testing.T) {
	_, handler := newTestServer(t)
	date := futureDate()

	// Shrink every open day to a morning-only window.
	days := make([]model.DaySchedule, 0, 7)
	for day := 1; day <= 6; day++ {
		days = append(days, model.DaySchedule{
			DayOfWeek: day, IsOpen: true,
			OpenTime: "09:00", CloseTime: "12:00", IntervalMinutes: 30,
		})
	}
	rec := doJSON(t, handler, http.MethodPut, "/api/v1/admin/studios/centro/schedule",
		ScheduleRequest{Days: days}, testAPIKey)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet,
		"/api/v1/slots?studio_id=centro&date="+date+"&duration=60", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Slots)
	last := resp.Slots[len(resp.Slots)-1]
	assert.Equal(t, "11:30", last.Time)
	assert.False(t, last.Available) // an hour no longer fits before close
}

func TestSettingsMutationsPublishEvents(t *testing.T) {
	_, bus, handler := newTestServerWithBus(t)

	var got []events.Event
	bus.Subscribe(events.TypeSettingsUpdated, func(e events.Event) { got = append(got, e) })

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/admin/studios/centro/schedule",
		ScheduleRequest{Days: []model.DaySchedule{{
			DayOfWeek: 2, IsOpen: true,
			OpenTime: "10:00", CloseTime: "16:00", IntervalMinutes: 30,
		}}}, testAPIKey)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Len(t, got, 1)
	assert.Equal(t, "centro", got[0].StudioID)
	change, ok := got[0].Payload.(events.SettingsChange)
	require.True(t, ok)
	assert.Empty(t, change.Date) // schedule changes affect every day

	date := futureDate()
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/admin/blocked-periods",
		BlockRequest{StudioID: "centro", Date: date, Reason: "feriado"}, testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, got, 2)
	change, ok = got[1].Payload.(events.SettingsChange)
	require.True(t, ok)
	assert.Equal(t, date, change.Date) // blocks are scoped to their day

	var created model.BlockedPeriod
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	rec = doJSON(t, handler, http.MethodDelete,
		"/api/v1/admin/blocked-periods/"+created.ID, nil, testAPIKey)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, got, 3)

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/admin/services/progressiva",
		model.RawService{StudioID: "centro", Name: "Progressiva", Duration: "120", Price: "250,00"},
		testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, got, 4)
	assert.Equal(t, "centro", got[3].StudioID)
}
