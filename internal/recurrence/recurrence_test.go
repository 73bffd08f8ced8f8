package recurrence

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/store"
)

func strPtr(s string) *string { return &s }

func baseEvent(start time.Time, dur time.Duration, rule string) *store.Event {
	ev := &store.Event{
		ID:      uuid.New(),
		Title:   "standup",
		StartAt: start,
		EndAt:   start.Add(dur),
	}
	if rule != "" {
		ev.RRule = strPtr(rule)
	}
	return ev
}

func TestExpandNonRecurring(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ev := baseEvent(start, time.Hour, "")

	occ, err := Expand(ev, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occ) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(occ))
	}
	if !occ[0].Start.Equal(start) || !occ[0].End.Equal(start.Add(time.Hour)) {
		t.Fatalf("occurrence %v-%v, want %v-%v", occ[0].Start, occ[0].End, start, start.Add(time.Hour))
	}
}

func TestExpandNonRecurringOutsideWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ev := baseEvent(start, time.Hour, "")

	occ, err := Expand(ev, start.AddDate(0, 1, 0), start.AddDate(0, 2, 0))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occ) != 0 {
		t.Fatalf("got %d occurrences, want 0", len(occ))
	}
}

func TestExpandDailyPreservesDuration(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	ev := baseEvent(start, 90*time.Minute, "FREQ=DAILY;COUNT=10")

	occ, err := Expand(ev, start, start.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occ) != 5 {
		t.Fatalf("got %d occurrences, want 5", len(occ))
	}
	for i, o := range occ {
		wantStart := start.AddDate(0, 0, i)
		if !o.Start.Equal(wantStart) {
			t.Fatalf("occurrence %d starts %v, want %v", i, o.Start, wantStart)
		}
		if o.End.Sub(o.Start) != 90*time.Minute {
			t.Fatalf("occurrence %d duration %v, want 90m", i, o.End.Sub(o.Start))
		}
		if o.EventID != ev.ID {
			t.Fatalf("occurrence %d event id %s, want %s", i, o.EventID, ev.ID)
		}
	}
}

func TestExpandWeeklyWindowed(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) // a Monday
	ev := baseEvent(start, time.Hour, "FREQ=WEEKLY;BYDAY=MO")

	windowStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)
	occ, err := Expand(ev, windowStart, windowEnd)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	// Mondays in February 2026: 2, 9, 16, 23.
	if len(occ) != 4 {
		t.Fatalf("got %d occurrences, want 4", len(occ))
	}
	first := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	if !occ[0].Start.Equal(first) {
		t.Fatalf("first occurrence %v, want %v", occ[0].Start, first)
	}
}

func TestExpandAllDayNormalized(t *testing.T) {
	start := time.Date(2026, 6, 1, 8, 15, 0, 0, time.UTC)
	ev := baseEvent(start, time.Hour, "FREQ=DAILY;COUNT=3")
	ev.AllDay = true

	occ, err := Expand(ev, start.AddDate(0, 0, -1), start.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occ) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(occ))
	}
	for i, o := range occ {
		if !o.AllDay {
			t.Fatalf("occurrence %d not marked all-day", i)
		}
		if o.Start.Hour() != 0 || o.Start.Minute() != 0 {
			t.Fatalf("occurrence %d starts %v, want midnight", i, o.Start)
		}
		if o.End.Sub(o.Start) != 24*time.Hour {
			t.Fatalf("occurrence %d spans %v, want 24h", i, o.End.Sub(o.Start))
		}
	}
}

func TestExpandCapped(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := baseEvent(start, time.Hour, "FREQ=HOURLY")

	occ, err := Expand(ev, start, start.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occ) != maxOccurrences {
		t.Fatalf("got %d occurrences, want cap %d", len(occ), maxOccurrences)
	}
}

func TestValidateRule(t *testing.T) {
	if err := ValidateRule(""); err != nil {
		t.Errorf("empty rule: %v", err)
	}
	if err := ValidateRule("FREQ=WEEKLY;BYDAY=MO"); err != nil {
		t.Errorf("weekly rule: %v", err)
	}
	if err := ValidateRule("FREQ=NOPE"); err == nil {
		t.Error("unknown frequency accepted")
	}
}

func TestExpandInvalidRule(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ev := baseEvent(start, time.Hour, "FREQ=SOMETIMES")

	if _, err := Expand(ev, start, start.AddDate(0, 1, 0)); err == nil {
		t.Fatal("Expand accepted an invalid rule")
	}
}

func TestExpandInvalidWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ev := baseEvent(start, time.Hour, "")

	if _, err := Expand(ev, start, start.Add(-time.Hour)); err != ErrInvalidWindow {
		t.Fatalf("got %v, want ErrInvalidWindow", err)
	}
}
