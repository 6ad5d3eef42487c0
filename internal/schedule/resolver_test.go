package schedule

import (
	"testing"
	"time"

	"agenda/internal/model"
)

func testWeek() model.WeekSchedule {
	days := make([]model.DaySchedule, 0, 7)
	for d := 0; d < 7; d++ {
		days = append(days, model.DaySchedule{
			DayOfWeek:       d,
			IsOpen:          d != 0, // closed on Sundays
			OpenTime:        "09:00",
			LunchStart:      "12:00",
			LunchEnd:        "13:00",
			CloseTime:       "18:00",
			IntervalMinutes: 30,
		})
	}
	week, err := model.NewWeekSchedule(days)
	if err != nil {
		panic(err)
	}
	return week
}

// 2026-09-07 is a Monday.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
var sunday = time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)

func TestResolveOpenDay(t *testing.T) {
	day := Resolve(monday, testWeek(), nil)

	if day.Closed {
		t.Fatal("expected Monday open")
	}
	if day.Open != 540 || day.Close != 1080 {
		t.Errorf("window = [%d, %d], want [540, 1080]", day.Open, day.Close)
	}
	if day.Lunch == nil || day.Lunch.Start != 720 || day.Lunch.End != 780 {
		t.Errorf("lunch = %+v, want [720, 780]", day.Lunch)
	}
	if day.Interval != 30 {
		t.Errorf("interval = %d, want 30", day.Interval)
	}
}

func TestResolveClosedWeekday(t *testing.T) {
	day := Resolve(sunday, testWeek(), nil)
	if !day.Closed {
		t.Error("expected Sunday closed")
	}
}

func TestResolveMalformedScheduleIsClosed(t *testing.T) {
	week := testWeek()
	week.Days[1].OpenTime = "nine"

	if day := Resolve(monday, week, nil); !day.Closed {
		t.Error("malformed open_time should resolve to closed")
	}

	week = testWeek()
	week.Days[1].OpenTime = "19:00" // open after close
	if day := Resolve(monday, week, nil); !day.Closed {
		t.Error("inverted window should resolve to closed")
	}

	week = testWeek()
	week.Days[1].IntervalMinutes = 0
	if day := Resolve(monday, week, nil); !day.Closed {
		t.Error("zero interval should resolve to closed")
	}
}

func TestResolveWholeDayBlock(t *testing.T) {
	blocks := []model.BlockedPeriod{
		{ID: "1", Date: "2026-09-07", Reason: "feriado"},
	}
	if day := Resolve(monday, testWeek(), blocks); !day.Closed {
		t.Error("whole-day block should force closed")
	}
}

func TestResolvePartialBlock(t *testing.T) {
	blocks := []model.BlockedPeriod{
		{ID: "1", Date: "2026-09-07", StartTime: "14:00", EndTime: "16:00"},
		{ID: "2", Date: "2026-09-08", StartTime: "09:00", EndTime: "10:00"}, // other date
	}
	day := Resolve(monday, testWeek(), blocks)

	if day.Closed {
		t.Fatal("partial block should not close the day")
	}
	if len(day.Blocked) != 1 {
		t.Fatalf("blocked spans = %d, want 1", len(day.Blocked))
	}
	if day.Blocked[0] != (Span{Start: 840, End: 960}) {
		t.Errorf("blocked span = %+v, want [840, 960]", day.Blocked[0])
	}
}

func TestResolveBlockClippedToWindow(t *testing.T) {
	// Block extends past closing; only the intersection with the operating
	// window survives.
	blocks := []model.BlockedPeriod{
		{ID: "1", Date: "2026-09-07", StartTime: "17:00", EndTime: "20:00"},
	}
	day := Resolve(monday, testWeek(), blocks)
	if len(day.Blocked) != 1 || day.Blocked[0].End != 1080 {
		t.Errorf("blocked = %+v, want clipped to close 1080", day.Blocked)
	}

	// Block entirely outside the window is dropped.
	blocks = []model.BlockedPeriod{
		{ID: "2", Date: "2026-09-07", StartTime: "19:00", EndTime: "21:00"},
	}
	day = Resolve(monday, testWeek(), blocks)
	if len(day.Blocked) != 0 {
		t.Errorf("out-of-window block should be dropped, got %+v", day.Blocked)
	}
}

func TestSpanOverlaps(t *testing.T) {
	base := Span{Start: 600, End: 660}
	tests := []struct {
		other Span
		want  bool
	}{
		{Span{630, 690}, true},
		{Span{570, 630}, true},
		{Span{600, 660}, true},
		{Span{540, 600}, false}, // touches start
		{Span{660, 720}, false}, // touches end
	}
	for _, tt := range tests {
		if got := base.Overlaps(tt.other); got != tt.want {
			t.Errorf("Overlaps(%+v) = %v, want %v", tt.other, got, tt.want)
		}
	}
}
