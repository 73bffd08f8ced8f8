// Package recurrence expands an event's RRULE into concrete occurrences.
//
// The stored event row describes the whole series; rule edits or removals
// apply to every occurrence. There is no per-occurrence override or
// exception-date support.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/plabarre/agenda/internal/store"
)

// maxOccurrences caps expansion so a runaway rule cannot blow up a response.
const maxOccurrences = 1000

// ErrInvalidWindow reports an end bound before the start bound.
var ErrInvalidWindow = errors.New("recurrence: window end before start")

// Occurrence is one concrete instance of an event within a window. EventID
// and the start time together identify it.
type Occurrence struct {
	EventID uuid.UUID `json:"event_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"all_day"`
}

// ValidateRule reports whether raw parses as an RRULE; the empty string is
// valid. Called at the write boundary so a bad rule never reaches storage.
func ValidateRule(raw string) error {
	if raw == "" {
		return nil
	}
	if _, err := rrule.StrToRRule(raw); err != nil {
		return fmt.Errorf("recurrence: parse rule %q: %w", raw, err)
	}
	return nil
}

// Expand returns the event's occurrences intersecting [start, end]. A
// non-recurring event yields at most its single instance. Expansion preserves
// the stored duration; all-day occurrences are normalized to whole days in
// the event's start location. Output is capped at maxOccurrences.
func Expand(ev *store.Event, start, end time.Time) ([]Occurrence, error) {
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}

	if ev.RRule == nil || *ev.RRule == "" {
		if ev.EndAt.Before(start) || ev.StartAt.After(end) {
			return nil, nil
		}
		return []Occurrence{occurrenceAt(ev, ev.StartAt)}, nil
	}

	rule, err := rrule.StrToRRule(*ev.RRule)
	if err != nil {
		return nil, fmt.Errorf("recurrence: parse rule %q: %w", *ev.RRule, err)
	}
	rule.DTStart(ev.StartAt)

	// Between works in the rule's own location; align the window with the
	// series start.
	loc := ev.StartAt.Location()
	times := rule.Between(start.In(loc), end.In(loc), true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}

	occurrences := make([]Occurrence, 0, len(times))
	for _, t := range times {
		occurrences = append(occurrences, occurrenceAt(ev, t))
	}
	return occurrences, nil
}

func occurrenceAt(ev *store.Event, start time.Time) Occurrence {
	if ev.AllDay {
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		return Occurrence{EventID: ev.ID, Start: day, End: day.Add(24 * time.Hour), AllDay: true}
	}
	return Occurrence{
		EventID: ev.ID,
		Start:   start,
		End:     start.Add(ev.EndAt.Sub(ev.StartAt)),
	}
}
