package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func weeklyWindow(trainerID uuid.UUID, wd time.Weekday, start, end MinuteOfDay) AvailabilityWindow {
	return AvailabilityWindow{
		ID:          uuid.New(),
		TrainerID:   trainerID,
		Weekday:     &wd,
		StartMinute: start,
		EndMinute:   end,
	}
}

func datedWindow(trainerID uuid.UUID, date time.Time, start, end MinuteOfDay, blocked bool) AvailabilityWindow {
	d := DateOnly(date)
	return AvailabilityWindow{
		ID:          uuid.New(),
		TrainerID:   trainerID,
		Date:        &d,
		StartMinute: start,
		EndMinute:   end,
		Blocked:     blocked,
	}
}

func mustMinute(t *testing.T, s string) MinuteOfDay {
	t.Helper()
	m, err := ParseMinuteOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return m
}

func TestGenerateSlotsScenario(t *testing.T) {
	// Weekly window Monday 09:00-10:00, duration 30, granularity 15:
	// 09:45 is excluded because 09:45+30 runs past 10:00.
	trainerID := uuid.New()
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "10:00")),
	}

	slots := GenerateSlots(windows, monday, 30, 15)

	want := []string{"09:00", "09:15", "09:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %+v", len(want), len(slots), slots)
	}
	for i, w := range want {
		if slots[i].StartMinute.String() != w {
			t.Errorf("slot %d: expected start %s, got %s", i, w, slots[i].StartMinute)
		}
		if slots[i].EndMinute != slots[i].StartMinute+30 {
			t.Errorf("slot %d: end %s does not match start+30", i, slots[i].EndMinute)
		}
	}
}

func TestGenerateSlotsStayWithinWindows(t *testing.T) {
	trainerID := uuid.New()
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "06:30"), mustMinute(t, "08:00")),
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "17:00"), mustMinute(t, "20:00")),
	}

	slots := GenerateSlots(windows, monday, 45, 15)
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}

	for _, s := range slots {
		inSome := false
		for _, w := range windows {
			if s.StartMinute >= w.StartMinute && s.EndMinute <= w.EndMinute {
				inSome = true
				break
			}
		}
		if !inSome {
			t.Errorf("slot %s-%s lies outside every window", s.StartMinute, s.EndMinute)
		}
	}
}

func TestGenerateSlotsGranularitySpacing(t *testing.T) {
	trainerID := uuid.New()
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "12:00")),
	}

	slots := GenerateSlots(windows, monday, 30, 20)
	if len(slots) < 2 {
		t.Fatalf("expected at least 2 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].StartMinute-slots[i-1].StartMinute != 20 {
			t.Errorf("slots %d..%d are %d minutes apart, want 20",
				i-1, i, slots[i].StartMinute-slots[i-1].StartMinute)
		}
	}
}

func TestGenerateSlotsBlockedDateSuppressesWeekly(t *testing.T) {
	trainerID := uuid.New()
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "17:00")),
		datedWindow(trainerID, monday, mustMinute(t, "00:00"), mustMinute(t, "23:59"), true),
	}

	if slots := GenerateSlots(windows, monday, 60, 15); len(slots) != 0 {
		t.Fatalf("blocked override should suppress weekly windows, got %d slots", len(slots))
	}

	// The following Monday is unaffected by the one-off block.
	nextMonday := monday.AddDate(0, 0, 7)
	if slots := GenerateSlots(windows, nextMonday, 60, 15); len(slots) == 0 {
		t.Fatal("next week should still have slots from the weekly window")
	}
}

func TestGenerateSlotsDatedOverridesWeekly(t *testing.T) {
	trainerID := uuid.New()
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "17:00")),
		datedWindow(trainerID, monday, mustMinute(t, "14:00"), mustMinute(t, "16:00"), false),
	}

	slots := GenerateSlots(windows, monday, 60, 30)
	if len(slots) == 0 {
		t.Fatal("expected slots from the date-specific window")
	}
	for _, s := range slots {
		if s.StartMinute < mustMinute(t, "14:00") || s.EndMinute > mustMinute(t, "16:00") {
			t.Errorf("slot %s-%s came from the suppressed weekly window", s.StartMinute, s.EndMinute)
		}
	}
}

func TestGenerateSlotsDeduplicatesOverlappingWindows(t *testing.T) {
	trainerID := uuid.New()
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "11:00")),
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "12:00")),
	}

	slots := GenerateSlots(windows, monday, 60, 30)

	seen := make(map[MinuteOfDay]bool)
	for _, s := range slots {
		if seen[s.StartMinute] {
			t.Errorf("duplicate start %s", s.StartMinute)
		}
		seen[s.StartMinute] = true
	}

	for i := 1; i < len(slots); i++ {
		if slots[i].StartMinute <= slots[i-1].StartMinute {
			t.Errorf("slots out of order at %d: %s after %s", i, slots[i].StartMinute, slots[i-1].StartMinute)
		}
	}
}

func TestGenerateSlotsEmptyCases(t *testing.T) {
	trainerID := uuid.New()

	// No windows for the date at all.
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Wednesday, mustMinute(t, "09:00"), mustMinute(t, "17:00")),
	}
	if slots := GenerateSlots(windows, monday, 60, 15); len(slots) != 0 {
		t.Fatalf("expected no slots on a day without windows, got %d", len(slots))
	}

	// Duration longer than every window.
	windows = []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "09:45")),
	}
	if slots := GenerateSlots(windows, monday, 60, 15); len(slots) != 0 {
		t.Fatalf("expected no slots when duration exceeds the window, got %d", len(slots))
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd MinuteOfDay
		want                       bool
	}{
		{"identical", 540, 600, 540, 600, true},
		{"partial", 540, 600, 570, 630, true},
		{"contained", 540, 600, 550, 560, true},
		{"back_to_back", 540, 600, 600, 660, false},
		{"disjoint", 540, 600, 700, 760, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("Overlaps(%d,%d,%d,%d) = %v, want %v", tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
		})
	}
}

func TestAnnotateSlots(t *testing.T) {
	trainerID := uuid.New()
	windows := []AvailabilityWindow{
		weeklyWindow(trainerID, time.Monday, mustMinute(t, "09:00"), mustMinute(t, "11:00")),
	}
	candidates := GenerateSlots(windows, monday, 60, 30)
	// starts: 09:00 09:30 10:00

	active := []Booking{
		{
			ID: uuid.New(), TrainerID: trainerID, Date: monday,
			StartMinute: mustMinute(t, "09:00"), EndMinute: mustMinute(t, "10:00"),
			Status: StatusConfirmed,
		},
		{
			ID: uuid.New(), TrainerID: trainerID, Date: monday,
			StartMinute: mustMinute(t, "10:00"), EndMinute: mustMinute(t, "11:00"),
			Status: StatusPending,
		},
	}

	out := AnnotateSlots(candidates, active)

	// 09:00 and 09:30 collide with the confirmed range; only 10:00 survives,
	// flagged with the pending request that overlaps it.
	if len(out) != 1 {
		t.Fatalf("expected 1 open slot, got %d: %+v", len(out), out)
	}
	if out[0].StartMinute.String() != "10:00" {
		t.Errorf("expected surviving slot 10:00, got %s", out[0].StartMinute)
	}
	if out[0].PendingRequests != 1 {
		t.Errorf("expected 1 pending request on 10:00, got %d", out[0].PendingRequests)
	}
}

func TestParseMinuteOfDay(t *testing.T) {
	m, err := ParseMinuteOfDay("09:05:00.000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != 9*60+5 {
		t.Errorf("expected 545, got %d", m)
	}
	if m.String() != "09:05" {
		t.Errorf("expected 09:05, got %s", m)
	}

	if _, err := ParseMinuteOfDay("9am"); err == nil {
		t.Error("expected error for malformed time")
	}
}
