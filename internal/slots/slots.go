// Package slots generates candidate appointment start times and decides their
// availability for a requested service duration.
package slots

import (
	"agenda/internal/model"
	"agenda/internal/schedule"
	"agenda/internal/timeutil"
)

// Generate enumerates candidate start times (minutes since midnight) for a
// resolved day: ascending over [open, lunchStart) and [lunchEnd, close),
// stepping by the day's interval. Afternoon candidates restart at lunchEnd, so
// they stay interval-aligned to the window they belong to. A closed day yields
// no candidates, which is what the UI uses to render "closed" rather than
// "fully booked". The sequence is rebuilt on every call.
func Generate(day schedule.ResolvedDay) []int {
	if day.Closed || day.Interval <= 0 {
		return nil
	}

	var candidates []int

	morningEnd := day.Close
	if day.Lunch != nil {
		morningEnd = day.Lunch.Start
	}
	for t := day.Open; t < morningEnd; t += day.Interval {
		candidates = append(candidates, t)
	}

	if day.Lunch != nil {
		for t := day.Lunch.End; t < day.Close; t += day.Interval {
			candidates = append(candidates, t)
		}
	}

	return candidates
}

// Compute returns the full ordered slot list for a day and a required
// duration. Every candidate is kept, flagged available or not, so callers can
// grey out taken times instead of hiding them. Availability of a candidate t
// requires all of:
//
//   - t+duration does not spill past closing time
//   - [t, t+duration) does not overlap the lunch window
//   - [t, t+duration) does not overlap any active booking on the date
//   - [t, t+duration) does not overlap any blocked sub-range
//
// The result is a pure function of its inputs; it is recomputed on every
// query because any new booking immediately invalidates neighboring slots.
func Compute(day schedule.ResolvedDay, duration int, bookings []*model.Booking) []model.TimeSlot {
	candidates := Generate(day)
	if len(candidates) == 0 {
		return []model.TimeSlot{}
	}

	result := make([]model.TimeSlot, 0, len(candidates))
	for _, t := range candidates {
		hhmm, err := timeutil.MinutesToTime(t)
		if err != nil {
			continue
		}
		result = append(result, model.TimeSlot{
			Time:      hhmm,
			Available: fits(day, t, duration, bookings),
		})
	}
	return result
}

// fits applies the availability checks for one candidate start time.
func fits(day schedule.ResolvedDay, start, duration int, bookings []*model.Booking) bool {
	if duration <= 0 {
		return false
	}

	end := start + duration
	if end > day.Close {
		return false
	}

	span := schedule.Span{Start: start, End: end}
	if day.Lunch != nil && span.Overlaps(*day.Lunch) {
		return false
	}

	for _, blocked := range day.Blocked {
		if span.Overlaps(blocked) {
			return false
		}
	}

	for _, b := range bookings {
		if !b.IsActive() || b.Date != day.Date {
			continue
		}
		if b.OverlapsWith(start, end) {
			return false
		}
	}

	return true
}

// Available filters a computed slot list down to the bookable times.
func Available(all []model.TimeSlot) []model.TimeSlot {
	out := make([]model.TimeSlot, 0, len(all))
	for _, s := range all {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}
