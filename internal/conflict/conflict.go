// Package conflict decides whether services may be combined in one booking.
package conflict

import (
	"fmt"

	"agenda/internal/model"
)

// Error is returned when a service combination is rejected. Reason is a
// human-readable explanation suitable for showing next to the greyed-out
// option.
type Error struct {
	ServiceID string
	OtherID   string
	Reason    string
}

func (e *Error) Error() string {
	return e.Reason
}

// Check decides whether adding candidate to the already-selected services is
// legal. The rules, evaluated against every selected service s, are:
//
//   - candidate and s share a non-empty conflict group
//   - candidate's block list names s
//   - s's block list names candidate (storage is directional, the check is not)
//
// The first matching rule terminates the check. A nil return means the
// combination is legal. Check is cheap enough to run on every toggle, so the
// UI can disable incompatible options live rather than failing at submission.
func Check(candidate model.Service, selected []model.Service) *Error {
	for _, s := range selected {
		if s.ID == candidate.ID {
			return &Error{
				ServiceID: candidate.ID,
				OtherID:   s.ID,
				Reason:    fmt.Sprintf("%s is already selected", candidate.Name),
			}
		}

		if candidate.ConflictGroupID != "" && candidate.ConflictGroupID == s.ConflictGroupID {
			return &Error{
				ServiceID: candidate.ID,
				OtherID:   s.ID,
				Reason: fmt.Sprintf("%s cannot be combined with %s: both belong to the %q group",
					candidate.Name, s.Name, candidate.ConflictGroupID),
			}
		}

		if contains(candidate.ConflictingServiceIDs, s.ID) || contains(s.ConflictingServiceIDs, candidate.ID) {
			return &Error{
				ServiceID: candidate.ID,
				OtherID:   s.ID,
				Reason:    fmt.Sprintf("%s cannot be combined with %s", candidate.Name, s.Name),
			}
		}
	}
	return nil
}

// ValidateSet checks a whole selection pairwise. Used as a final gate at
// submission; the incremental Check covers the interactive path.
func ValidateSet(services []model.Service) *Error {
	for i := range services {
		if err := Check(services[i], services[:i]); err != nil {
			return err
		}
	}
	return nil
}

// TotalDuration sums the durations of a selection. Aggregated bookings are
// scheduled as one atomic interval of this length.
func TotalDuration(services []model.Service) int {
	total := 0
	for _, s := range services {
		total += s.DurationMinutes
	}
	return total
}

// TotalPriceCents sums the price snapshot for a selection.
func TotalPriceCents(services []model.Service) int64 {
	var total int64
	for _, s := range services {
		total += s.PriceCents
	}
	return total
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
