// Package ical renders calendars and events as RFC 5545 iCalendar documents.
package ical

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/plabarre/agenda/internal/store"
)

const prodID = "-//agenda//calendar export//EN"

// ContentType is the MIME type for serialized documents.
const ContentType = "text/calendar; charset=utf-8"

// ExportCalendar serializes the given events as one VCALENDAR.
func ExportCalendar(cal *store.Calendar, events []store.Event) string {
	doc := ics.NewCalendar()
	doc.SetMethod(ics.MethodPublish)
	doc.SetProductId(prodID)
	doc.SetXWRCalName(cal.Title)
	doc.SetXWRTimezone(cal.Timezone)

	for i := range events {
		addEvent(doc, &events[i])
	}
	return doc.Serialize()
}

// ExportEvent serializes a single event as its own VCALENDAR.
func ExportEvent(cal *store.Calendar, ev *store.Event) string {
	doc := ics.NewCalendar()
	doc.SetMethod(ics.MethodPublish)
	doc.SetProductId(prodID)
	doc.SetXWRCalName(cal.Title)

	addEvent(doc, ev)
	return doc.Serialize()
}

func addEvent(doc *ics.Calendar, ev *store.Event) {
	ve := doc.AddEvent(ev.ID.String())
	ve.SetDtStampTime(ev.UpdatedAt.UTC())
	ve.SetSummary(ev.Title)

	if ev.AllDay {
		ve.SetAllDayStartAt(ev.StartAt)
		ve.SetAllDayEndAt(ev.EndAt)
	} else {
		ve.SetStartAt(ev.StartAt.UTC())
		ve.SetEndAt(ev.EndAt.UTC())
	}

	if ev.Location != nil && *ev.Location != "" {
		ve.SetLocation(*ev.Location)
	}
	if ev.Notes != nil && *ev.Notes != "" {
		ve.SetDescription(*ev.Notes)
	}
	if ev.Latitude != nil && ev.Longitude != nil {
		ve.SetGeo(*ev.Latitude, *ev.Longitude)
	}
	if ev.RRule != nil && *ev.RRule != "" {
		// Stored rules may carry the RRULE: prefix; the property adds its own.
		rule := strings.TrimPrefix(*ev.RRule, "RRULE:")
		ve.AddRrule(rule)
	}
	ve.SetCreatedTime(ev.CreatedAt.UTC())
	ve.SetModifiedAt(ev.UpdatedAt.UTC())
}

// Filename builds a download filename for the exported document.
func Filename(slug string, at time.Time) string {
	return fmt.Sprintf("%s-%s.ics", slug, at.UTC().Format("20060102"))
}
