package conflict

import (
	"strings"
	"testing"

	"agenda/internal/model"
)

var (
	waxing = model.Service{ID: "wax", Name: "Depilação com cera", ConflictGroupID: "epilation", DurationMinutes: 30, PriceCents: 8000}
	laser  = model.Service{ID: "laser", Name: "Depilação a laser", ConflictGroupID: "epilation", DurationMinutes: 45, PriceCents: 20000}
	cut    = model.Service{ID: "cut", Name: "Corte", DurationMinutes: 45, PriceCents: 6000}
	color  = model.Service{ID: "color", Name: "Coloração", DurationMinutes: 90, PriceCents: 18000, ConflictingServiceIDs: []string{"peel"}}
	peel   = model.Service{ID: "peel", Name: "Peeling", DurationMinutes: 60, PriceCents: 15000}
)

func TestCheckSharedConflictGroup(t *testing.T) {
	err := Check(laser, []model.Service{waxing})
	if err == nil {
		t.Fatal("expected rejection for shared conflict group")
	}
	if !strings.Contains(err.Reason, "epilation") {
		t.Errorf("reason should name the shared group, got %q", err.Reason)
	}
}

func TestCheckSymmetric(t *testing.T) {
	// If A is rejected against selected B, then B must be rejected against
	// selected A, for both the group rule and the directional block list.
	cases := [][2]model.Service{
		{waxing, laser},
		{color, peel}, // block list stored only on color
	}
	for _, pair := range cases {
		ab := Check(pair[0], []model.Service{pair[1]})
		ba := Check(pair[1], []model.Service{pair[0]})
		if (ab == nil) != (ba == nil) {
			t.Errorf("asymmetric verdict for %s/%s: %v vs %v",
				pair[0].ID, pair[1].ID, ab, ba)
		}
		if ab == nil {
			t.Errorf("expected %s/%s to conflict", pair[0].ID, pair[1].ID)
		}
	}
}

func TestCheckLegalCombination(t *testing.T) {
	if err := Check(cut, []model.Service{color}); err != nil {
		t.Errorf("cut+color should be legal, got %q", err.Reason)
	}
	if err := Check(waxing, nil); err != nil {
		t.Errorf("first selection is always legal, got %q", err.Reason)
	}
	// Group rule only applies to non-empty groups.
	plain := model.Service{ID: "other", Name: "Outro"}
	if err := Check(cut, []model.Service{plain}); err != nil {
		t.Errorf("empty groups must not conflict, got %q", err.Reason)
	}
}

func TestCheckDuplicateSelection(t *testing.T) {
	if err := Check(cut, []model.Service{cut}); err == nil {
		t.Error("selecting the same service twice should be rejected")
	}
}

func TestValidateSet(t *testing.T) {
	if err := ValidateSet([]model.Service{cut, color}); err != nil {
		t.Errorf("legal set rejected: %q", err.Reason)
	}
	if err := ValidateSet([]model.Service{cut, waxing, laser}); err == nil {
		t.Error("set with conflicting pair should be rejected")
	}
}

func TestTotals(t *testing.T) {
	set := []model.Service{cut, color}
	if got := TotalDuration(set); got != 135 {
		t.Errorf("TotalDuration = %d, want 135", got)
	}
	if got := TotalPriceCents(set); got != 24000 {
		t.Errorf("TotalPriceCents = %d, want 24000", got)
	}
}
