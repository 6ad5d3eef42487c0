// Package timeutil provides minute-offset arithmetic for "HH:mm" clock values.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the number of minutes in a single day.
const MinutesPerDay = 24 * 60

// TimeToMinutes converts an "HH:mm" string to minutes since midnight.
func TimeToMinutes(hhmm string) (int, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", hhmm)
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", hhmm, err)
	}

	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", hhmm, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %q", hhmm)
	}

	return hour*60 + minute, nil
}

// MinutesToTime converts minutes since midnight to a zero-padded "HH:mm"
// string. Valid input is [0, MinutesPerDay); values outside that range are a
// caller bug and are rejected.
func MinutesToTime(minutes int) (string, error) {
	if minutes < 0 || minutes >= MinutesPerDay {
		return "", fmt.Errorf("minutes out of range: %d", minutes)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// ParseDuration normalizes a duration value to integer minutes. It accepts a
// raw number of minutes ("90") or a compound "HH:mm" duration ("01:30").
// Aggregated multi-service durations arrive already summed in "HH:mm" form and
// may exceed 23:59, so unlike clock times the hour field is unbounded.
func ParseDuration(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if !strings.Contains(value, ":") {
		minutes, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		if minutes < 0 {
			return 0, fmt.Errorf("negative duration: %d", minutes)
		}
		return minutes, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid duration format: %q", value)
	}

	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid duration hours in %q: %w", value, err)
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("invalid duration minutes in %q: %w", value, err)
	}

	if hours < 0 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("duration out of range: %q", value)
	}

	return hours*60 + minutes, nil
}

// FormatDuration renders minutes as an "HH:mm" duration string. Used for
// booking snapshots where several service durations are summed into one value.
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
