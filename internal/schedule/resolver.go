// Package schedule resolves the effective operating window for a date from
// the weekly schedule and any blocked-period overrides.
package schedule

import (
	"fmt"
	"time"

	"agenda/internal/model"
	"agenda/internal/timeutil"
)

// Span is a half-open [Start, End) interval in minutes since midnight.
type Span struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open spans intersect.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// ResolvedDay is the effective schedule for a single date: the operating
// window in minutes, the slot interval, and any blocked sub-intervals layered
// on top of it. A closed day carries no window at all.
type ResolvedDay struct {
	Date     string // YYYY-MM-DD
	Closed   bool
	Open     int
	Close    int
	Lunch    *Span
	Interval int
	Blocked  []Span
}

// ClosedDay returns a resolved day marked closed.
func ClosedDay(date string) ResolvedDay {
	return ResolvedDay{Date: date, Closed: true}
}

// Resolve returns the effective day window for a date. The weekday entry is
// looked up by date.Weekday(); a day with IsOpen=false, or any malformed hour
// field, resolves to closed, never to assumed default hours. Blocked periods
// matching the date are folded in: a whole-day block forces closed, a partial
// block becomes an unavailable sub-interval clipped to the operating window.
func Resolve(date time.Time, week model.WeekSchedule, blocks []model.BlockedPeriod) ResolvedDay {
	dateStr := date.Format("2006-01-02")
	day := week.Day(date.Weekday())

	if !day.IsOpen {
		return ClosedDay(dateStr)
	}

	open, err := timeutil.TimeToMinutes(day.OpenTime)
	if err != nil {
		return ClosedDay(dateStr)
	}
	close, err := timeutil.TimeToMinutes(day.CloseTime)
	if err != nil {
		return ClosedDay(dateStr)
	}
	if open >= close || day.IntervalMinutes <= 0 {
		return ClosedDay(dateStr)
	}

	resolved := ResolvedDay{
		Date:     dateStr,
		Open:     open,
		Close:    close,
		Interval: day.IntervalMinutes,
	}

	if day.HasLunch() {
		lunchStart, err := timeutil.TimeToMinutes(day.LunchStart)
		if err != nil {
			return ClosedDay(dateStr)
		}
		lunchEnd, err := timeutil.TimeToMinutes(day.LunchEnd)
		if err != nil {
			return ClosedDay(dateStr)
		}
		if open > lunchStart || lunchStart > lunchEnd || lunchEnd > close {
			return ClosedDay(dateStr)
		}
		if lunchStart < lunchEnd {
			resolved.Lunch = &Span{Start: lunchStart, End: lunchEnd}
		}
	}

	for _, b := range blocks {
		if b.Date != dateStr {
			continue
		}
		if b.WholeDay() {
			return ClosedDay(dateStr)
		}
		span, ok := blockSpan(b, open, close)
		if ok {
			resolved.Blocked = append(resolved.Blocked, span)
		}
	}

	return resolved
}

// blockSpan converts a partial blocked period into a span clipped to the
// operating window. Ranges that miss the window entirely are dropped.
func blockSpan(b model.BlockedPeriod, open, close int) (Span, bool) {
	start, err := timeutil.TimeToMinutes(b.StartTime)
	if err != nil {
		return Span{}, false
	}
	end, err := timeutil.TimeToMinutes(b.EndTime)
	if err != nil {
		return Span{}, false
	}
	if start < open {
		start = open
	}
	if end > close {
		end = close
	}
	if start >= end {
		return Span{}, false
	}
	return Span{Start: start, End: end}, true
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return d, nil
}
