package calendar

import (
	"slices"
	"strings"
	"time"

	"homedash/internal/model"
)

const stampLayout = model.DateLayout + " " + model.TimeLayout

// FromPersisted converts a stored event into a CalendarEvent in loc.
//
// Start is date+time (midnight when time is empty). End is endDate, or
// date when only endTime is set, at endTime or 23:59; with neither, End
// equals Start. ok is false when the stored date does not parse.
func FromPersisted(ev model.PersistedEvent, loc *time.Location) (model.CalendarEvent, bool) {
	if loc == nil {
		loc = time.Local
	}
	startClock := ev.Time
	if startClock == "" {
		startClock = "00:00"
	}
	start, err := time.ParseInLocation(stampLayout, ev.Date+" "+startClock, loc)
	if err != nil {
		return model.CalendarEvent{}, false
	}

	end := start
	endDate := ev.EndDate
	if endDate == "" && ev.EndTime != "" {
		endDate = ev.Date
	}
	if endDate != "" {
		endClock := ev.EndTime
		if endClock == "" {
			endClock = "23:59"
		}
		if t, err := time.ParseInLocation(stampLayout, endDate+" "+endClock, loc); err == nil && !t.Before(start) {
			end = t
		}
	}

	return model.CalendarEvent{
		ID:          ev.ID,
		Summary:     ev.Details,
		Start:       start,
		End:         end,
		AllDay:      ev.Time == "",
		Source:      model.SourceCustom,
		CalendarKey: strings.ToLower(ev.Calendar),
		Priority:    model.PriorityNormal,
	}, true
}

// FromPersistedAll converts every parsable stored event.
func FromPersistedAll(events []model.PersistedEvent, loc *time.Location) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ce, ok := FromPersisted(ev, loc); ok {
			out = append(out, ce)
		}
	}
	return out
}

// Window bounds a view. A zero Start or End leaves that side open.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow covers whole days from first to last inclusive.
func DayWindow(first, last time.Time) Window {
	return Window{Start: startOfDay(first), End: endOfDay(last)}
}

// Overlaps reports whether ev intersects the window.
func (w Window) Overlaps(ev model.CalendarEvent) bool {
	if !w.End.IsZero() && ev.Start.After(w.End) {
		return false
	}
	if !w.Start.IsZero() && ev.End.Before(w.Start) {
		return false
	}
	return true
}

// Rules toggles derived events in BuildView.
type Rules struct {
	// SummerBreak adds the derived break when the school source is enabled.
	SummerBreak bool
	// LetterDays adds letter-day markers and school add-ons for every day in
	// the window that has a letter.
	LetterDays bool
}

// BuildView merges custom and remote events, applies filters, adds the
// derived events selected by rules, clips to window and sorts by start.
//
// Derived events are computed from the unfiltered remote events and are not
// subject to the filters themselves.
func BuildView(custom []model.CalendarEvent, remote map[model.Source][]model.CalendarEvent, filters model.FilterSettings, rules Rules, window Window) []model.CalendarEvent {
	size := len(custom)
	for _, evs := range remote {
		size += len(evs)
	}
	merged := make([]model.CalendarEvent, 0, size)
	merged = append(merged, custom...)
	for _, src := range model.RemoteSources {
		merged = append(merged, remote[src]...)
	}
	for src, evs := range remote {
		if !slices.Contains(model.RemoteSources, src) {
			merged = append(merged, evs...)
		}
	}

	out := ApplyFilters(merged, filters)

	if rules.SummerBreak && filters.SourceEnabled(model.SourceSchool) {
		if sb, ok := SummerBreak(remote[model.SourceSchool]); ok {
			out = append(out, sb)
		}
	}

	if rules.LetterDays {
		for key, letter := range LetterDays(remote[model.SourceLetter]) {
			day, err := time.ParseInLocation(model.DateLayout, key, windowLocation(window, remote[model.SourceLetter]))
			if err != nil {
				continue
			}
			out = append(out, LetterDayEvents(letter, day)...)
		}
	}

	clipped := out[:0]
	for _, ev := range out {
		if window.Overlaps(ev) {
			clipped = append(clipped, ev)
		}
	}
	SortByStart(clipped)
	return clipped
}

func windowLocation(w Window, events []model.CalendarEvent) *time.Location {
	switch {
	case !w.Start.IsZero():
		return w.Start.Location()
	case len(events) > 0:
		return events[0].Start.Location()
	}
	return time.Local
}
