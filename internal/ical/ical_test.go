package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/store"
)

func sampleEvent() store.Event {
	loc := "Salle 3"
	rule := "FREQ=WEEKLY;BYDAY=TU"
	return store.Event{
		ID:        uuid.New(),
		Title:     "Réunion d'équipe",
		StartAt:   time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC),
		EndAt:     time.Date(2026, 4, 7, 10, 0, 0, 0, time.UTC),
		Location:  &loc,
		RRule:     &rule,
		CreatedAt: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportCalendar(t *testing.T) {
	cal := &store.Calendar{Slug: "asso", Title: "Agenda de l'asso", Timezone: "Europe/Paris"}
	events := []store.Event{sampleEvent(), sampleEvent()}

	out := ExportCalendar(cal, events)

	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "END:VCALENDAR") {
		t.Fatal("missing VCALENDAR envelope")
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Fatalf("got %d VEVENT blocks, want 2", got)
	}
	if !strings.Contains(out, "RRULE:FREQ=WEEKLY;BYDAY=TU") {
		t.Fatal("missing RRULE property")
	}
	if !strings.Contains(out, "LOCATION:Salle 3") {
		t.Fatal("missing LOCATION property")
	}
}

func TestExportEventAllDay(t *testing.T) {
	cal := &store.Calendar{Slug: "asso", Title: "Agenda"}
	ev := sampleEvent()
	ev.AllDay = true
	ev.RRule = nil

	out := ExportEvent(cal, &ev)

	if !strings.Contains(out, "DTSTART;VALUE=DATE:20260407") {
		t.Fatalf("missing all-day DTSTART in:\n%s", out)
	}
	if strings.Contains(out, "RRULE") {
		t.Fatal("unexpected RRULE on non-recurring event")
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, 4, 7, 15, 0, 0, 0, time.UTC)
	if got := Filename("asso", at); got != "asso-20260407.ics" {
		t.Fatalf("got %q", got)
	}
}
