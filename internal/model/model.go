// Package model defines the domain types shared across the service.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"agenda/internal/timeutil"
)

// Booking status values.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Service is a bookable service offered by a studio. Duration and conflict
// relations are normalized at the parsing boundary, so the rest of the code
// only ever sees integer minutes and explicit ID lists.
type Service struct {
	ID                    string    `json:"id"`
	StudioID              string    `json:"studio_id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description,omitempty"`
	DurationMinutes       int       `json:"duration_minutes"`
	PriceCents            int64     `json:"price_cents"`
	ConflictGroupID       string    `json:"conflict_group_id,omitempty"`
	ConflictingServiceIDs []string  `json:"conflicting_service_ids,omitempty"`
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// RawService is a service record as received from external sources, before
// normalization. Duration arrives either as raw minutes ("60") or as an
// "HH:mm" string; price as a decimal string ("49.90").
type RawService struct {
	ID                    string   `json:"id"`
	StudioID              string   `json:"studio_id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	Duration              string   `json:"duration"`
	Price                 string   `json:"price"`
	ConflictGroupID       string   `json:"conflict_group_id"`
	ConflictingServiceIDs []string `json:"conflicting_service_ids"`
}

// NormalizeService converts a RawService into a normalized Service.
func NormalizeService(raw RawService) (Service, error) {
	if raw.ID == "" {
		return Service{}, fmt.Errorf("service id is required")
	}
	if raw.Name == "" {
		return Service{}, fmt.Errorf("service %s: name is required", raw.ID)
	}

	duration, err := timeutil.ParseDuration(raw.Duration)
	if err != nil {
		return Service{}, fmt.Errorf("service %s: %w", raw.ID, err)
	}
	if duration <= 0 {
		return Service{}, fmt.Errorf("service %s: duration must be positive", raw.ID)
	}

	price, err := ParsePriceCents(raw.Price)
	if err != nil {
		return Service{}, fmt.Errorf("service %s: %w", raw.ID, err)
	}

	conflicts := make([]string, 0, len(raw.ConflictingServiceIDs))
	for _, id := range raw.ConflictingServiceIDs {
		id = strings.TrimSpace(id)
		if id != "" && id != raw.ID {
			conflicts = append(conflicts, id)
		}
	}
	sort.Strings(conflicts)

	return Service{
		ID:                    raw.ID,
		StudioID:              raw.StudioID,
		Name:                  raw.Name,
		Description:           raw.Description,
		DurationMinutes:       duration,
		PriceCents:            price,
		ConflictGroupID:       strings.TrimSpace(raw.ConflictGroupID),
		ConflictingServiceIDs: conflicts,
		Active:                true,
	}, nil
}

// ParsePriceCents parses a decimal price string ("49.90", "120") into cents.
func ParsePriceCents(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	neg := strings.HasPrefix(value, "-")
	if neg {
		return 0, fmt.Errorf("negative price: %q", value)
	}

	whole := value
	frac := "0"
	if i := strings.IndexAny(value, ".,"); i >= 0 {
		whole = value[:i]
		frac = value[i+1:]
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price: %q", value)
	}

	switch len(frac) {
	case 1:
		frac += "0"
	case 2:
	default:
		if len(frac) > 2 {
			frac = frac[:2]
		}
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price: %q", value)
	}

	return units*100 + cents, nil
}

// FormatPrice renders cents as a decimal string.
func FormatPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// DaySchedule describes operating hours for one weekday.
// Times are "HH:mm" 24h strings; DayOfWeek follows time.Weekday (0 = Sunday).
type DaySchedule struct {
	DayOfWeek       int    `json:"day_of_week"`
	IsOpen          bool   `json:"is_open"`
	OpenTime        string `json:"open_time"`
	LunchStart      string `json:"lunch_start,omitempty"`
	LunchEnd        string `json:"lunch_end,omitempty"`
	CloseTime       string `json:"close_time"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// HasLunch reports whether the day defines a lunch break.
func (d DaySchedule) HasLunch() bool {
	return d.LunchStart != "" && d.LunchEnd != "" && d.LunchStart != d.LunchEnd
}

// Validate checks the open <= lunchStart <= lunchEnd <= close invariant.
// Fields are ignored when the day is closed.
func (d DaySchedule) Validate() error {
	if d.DayOfWeek < 0 || d.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week out of range: %d", d.DayOfWeek)
	}
	if !d.IsOpen {
		return nil
	}

	open, err := timeutil.TimeToMinutes(d.OpenTime)
	if err != nil {
		return fmt.Errorf("open_time: %w", err)
	}
	close, err := timeutil.TimeToMinutes(d.CloseTime)
	if err != nil {
		return fmt.Errorf("close_time: %w", err)
	}
	if open > close {
		return fmt.Errorf("open_time %s after close_time %s", d.OpenTime, d.CloseTime)
	}

	if d.HasLunch() {
		lunchStart, err := timeutil.TimeToMinutes(d.LunchStart)
		if err != nil {
			return fmt.Errorf("lunch_start: %w", err)
		}
		lunchEnd, err := timeutil.TimeToMinutes(d.LunchEnd)
		if err != nil {
			return fmt.Errorf("lunch_end: %w", err)
		}
		if open > lunchStart || lunchStart > lunchEnd || lunchEnd > close {
			return fmt.Errorf("lunch window %s-%s outside %s-%s",
				d.LunchStart, d.LunchEnd, d.OpenTime, d.CloseTime)
		}
	}

	if d.IntervalMinutes <= 0 {
		return fmt.Errorf("interval must be positive, got %d", d.IntervalMinutes)
	}
	return nil
}

// WeekSchedule holds exactly one DaySchedule per weekday, keyed by DayOfWeek.
type WeekSchedule struct {
	Days [7]DaySchedule `json:"days"`
}

// NewWeekSchedule builds a WeekSchedule from a list of day entries. Each
// weekday must appear exactly once; missing days are rejected rather than
// defaulted, since a malformed schedule must read as closed, never as open.
func NewWeekSchedule(days []DaySchedule) (WeekSchedule, error) {
	var ws WeekSchedule
	seen := [7]bool{}
	for _, d := range days {
		if d.DayOfWeek < 0 || d.DayOfWeek > 6 {
			return WeekSchedule{}, fmt.Errorf("day_of_week out of range: %d", d.DayOfWeek)
		}
		if seen[d.DayOfWeek] {
			return WeekSchedule{}, fmt.Errorf("duplicate entry for day %d", d.DayOfWeek)
		}
		if err := d.Validate(); err != nil {
			return WeekSchedule{}, fmt.Errorf("day %d: %w", d.DayOfWeek, err)
		}
		seen[d.DayOfWeek] = true
		ws.Days[d.DayOfWeek] = d
	}
	for i, ok := range seen {
		if !ok {
			return WeekSchedule{}, fmt.Errorf("missing entry for day %d", i)
		}
	}
	return ws, nil
}

// Day returns the schedule entry for a weekday.
func (w WeekSchedule) Day(weekday time.Weekday) DaySchedule {
	return w.Days[int(weekday)]
}

// BlockedPeriod removes availability for a date or a date+time range,
// independent of the weekly schedule (vacations, holidays, ad-hoc closures).
// Absence of both StartTime and EndTime means the whole day is blocked.
type BlockedPeriod struct {
	ID        string    `json:"id"`
	StudioID  string    `json:"studio_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WholeDay reports whether the block removes the entire day.
func (b BlockedPeriod) WholeDay() bool {
	return b.StartTime == "" && b.EndTime == ""
}

// Validate checks date and time formats. A block with only one of
// start/end is malformed.
func (b BlockedPeriod) Validate() error {
	if _, err := time.Parse("2006-01-02", b.Date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", b.Date)
	}
	if b.WholeDay() {
		return nil
	}
	if b.StartTime == "" || b.EndTime == "" {
		return fmt.Errorf("blocked period must set both start_time and end_time or neither")
	}
	start, err := timeutil.TimeToMinutes(b.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := timeutil.TimeToMinutes(b.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	if start >= end {
		return fmt.Errorf("start_time %s not before end_time %s", b.StartTime, b.EndTime)
	}
	return nil
}

// Booking is a confirmed or pending appointment. Service name, price and
// duration are snapshots taken at creation time, immune to later edits of the
// Service records.
type Booking struct {
	ID              int64     `json:"id"`
	Reference       string    `json:"reference"`
	StudioID        string    `json:"studio_id"`
	ServiceIDs      string    `json:"service_ids"` // comma-joined for aggregated bookings
	ServiceName     string    `json:"service_name"`
	PriceCents      int64     `json:"price_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	Date            string    `json:"date"` // YYYY-MM-DD
	Time            string    `json:"time"` // HH:mm
	ClientName      string    `json:"client_name"`
	ClientEmail     string    `json:"client_email"`
	ClientPhone     string    `json:"client_phone"`
	Status          string    `json:"status"`
	EmailSent       bool      `json:"email_sent"`
	WhatsAppSent    bool      `json:"whatsapp_sent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsActive reports whether the booking still occupies its slot.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// StartMinutes returns the booking start as minutes since midnight.
func (b *Booking) StartMinutes() (int, error) {
	return timeutil.TimeToMinutes(b.Time)
}

// OverlapsWith checks whether the half-open interval [start, start+duration)
// of this booking intersects [otherStart, otherEnd), all in minutes.
func (b *Booking) OverlapsWith(otherStart, otherEnd int) bool {
	start, err := b.StartMinutes()
	if err != nil {
		return false
	}
	end := start + b.DurationMinutes
	return otherStart < end && otherEnd > start
}

// ServiceIDList splits the comma-joined ServiceIDs field.
func (b *Booking) ServiceIDList() []string {
	if b.ServiceIDs == "" {
		return nil
	}
	parts := strings.Split(b.ServiceIDs, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TimeSlot is a derived candidate start time with its availability flag.
// Slots are recomputed on every query and never persisted.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Studio is a tenant of the booking platform.
type Studio struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Timezone string `json:"timezone" yaml:"timezone"`
	Active   bool   `json:"active" yaml:"active"`
}
