package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	ical "github.com/arran4/golang-ical"

	"homedash/internal/model"
)

// Export serializes events as a VCALENDAR feed named name. All-day
// events get an exclusive DTEND one day after their last day.
func Export(events []model.CalendarEvent, name string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//homedash//calendar export//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ev := cal.AddEvent(eventUID(e))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(e.Summary)
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if e.AllDay {
			ev.SetAllDayStartAt(e.Start)
			ev.SetAllDayEndAt(e.End.AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(e.Start)
			ev.SetEndAt(e.End)
		}
		cat := string(e.Source)
		if e.Category != "" {
			cat = e.Category
		}
		ev.SetProperty(ical.ComponentPropertyCategories, cat)
	}

	return cal.Serialize()
}

// eventUID is stable for the same event across exports.
func eventUID(e model.CalendarEvent) string {
	if e.ID != "" {
		return e.ID + "@homedash"
	}
	sum := sha256.Sum256([]byte(string(e.Source) + "|" + e.Start.UTC().Format(time.RFC3339) + "|" + e.Summary))
	return hex.EncodeToString(sum[:8]) + "@homedash"
}
