package ics

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"homedash/internal/model"
)

// dateValue matches DATE and DATE-TIME values: YYYYMMDD[THHMM[SS]][Z].
var dateValue = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(T(\d{2})(\d{2})(\d{2})?)?(Z)?$`)

// icsTime is a decoded DTSTART/DTEND value.
type icsTime struct {
	t      time.Time
	allDay bool
	utc    bool
}

// rawEvent collects the recognized properties of one VEVENT.
type rawEvent struct {
	summary     string
	location    string
	start       string
	startParams string
	end         string
	endParams   string
}

// Parse parses ICS text in the process-local time zone.
func Parse(text string, source model.Source) []model.CalendarEvent {
	return ParseIn(text, source, time.Local)
}

// ParseIn turns raw ICS text into calendar events tagged with source.
//
// Only SUMMARY, DTSTART, DTEND and LOCATION are read. Floating and
// date-only values are placed in loc. Records whose DTSTART cannot be
// decoded are dropped; they are not errors. Output keeps input order.
func ParseIn(text string, source model.Source, loc *time.Location) []model.CalendarEvent {
	if loc == nil {
		loc = time.Local
	}

	events := make([]model.CalendarEvent, 0)
	var cur *rawEvent

	for _, line := range strings.Split(unfold(text), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "BEGIN:VEVENT":
			cur = &rawEvent{}
			continue
		case "END:VEVENT":
			if cur != nil {
				if ev, ok := cur.normalize(source, loc); ok {
					events = append(events, ev)
				}
			}
			cur = nil
			continue
		}
		if cur == nil {
			continue
		}

		name, params, value, ok := splitProperty(line)
		if !ok {
			continue
		}
		switch name {
		case "SUMMARY":
			cur.summary = unescapeText(value)
		case "LOCATION":
			cur.location = unescapeText(value)
		case "DTSTART":
			cur.start, cur.startParams = value, params
		case "DTEND":
			cur.end, cur.endParams = value, params
		}
	}

	return events
}

// unfold normalizes line endings and joins RFC 5545 continuation lines.
func unfold(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n ", "")
	return strings.ReplaceAll(text, "\n\t", "")
}

// splitProperty splits "NAME;PARAM=X:VALUE" into its parts. The value is
// everything after the first colon.
func splitProperty(line string) (name, params, value string, ok bool) {
	head, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", "", false
	}
	name, params, _ = strings.Cut(head, ";")
	return strings.ToUpper(strings.TrimSpace(name)), params, strings.TrimSpace(value), true
}

func hasDateParam(params string) bool {
	for _, p := range strings.Split(params, ";") {
		k, v, _ := strings.Cut(p, "=")
		if strings.EqualFold(strings.TrimSpace(k), "VALUE") && strings.EqualFold(strings.TrimSpace(v), "DATE") {
			return true
		}
	}
	return false
}

func (r *rawEvent) normalize(source model.Source, loc *time.Location) (model.CalendarEvent, bool) {
	start, ok := parseDate(r.start, hasDateParam(r.startParams), loc)
	if !ok {
		return model.CalendarEvent{}, false
	}

	end := start.t
	if r.end != "" {
		if e, ok := parseDate(r.end, hasDateParam(r.endParams), loc); ok {
			end = e.t
			// DTEND of an all-day value is exclusive.
			if e.allDay {
				end = end.AddDate(0, 0, -1)
			}
		}
		if end.Before(start.t) {
			end = start.t
		}
	}

	return model.CalendarEvent{
		Summary:  r.summary,
		Location: r.location,
		Start:    start.t,
		End:      end,
		AllDay:   start.allDay,
		IsUTC:    start.utc,
		Source:   source,
		Priority: model.PriorityNormal,
	}, true
}

// parseDate decodes a DATE or DATE-TIME value, rejecting impossible
// calendar dates such as 20240230.
func parseDate(value string, dateOnly bool, loc *time.Location) (icsTime, bool) {
	m := dateValue.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return icsTime{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, minute, sec := 0, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[5])
		minute, _ = strconv.Atoi(m[6])
		if m[7] != "" {
			sec, _ = strconv.Atoi(m[7])
		}
	}
	if hour > 23 || minute > 59 || sec > 59 {
		return icsTime{}, false
	}

	utc := m[8] != ""
	allDay := dateOnly || m[4] == ""

	zone := loc
	if utc {
		zone = time.UTC
	}
	if allDay {
		hour, minute, sec = 0, 0, 0
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, zone)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return icsTime{}, false
	}
	if allDay && utc {
		// Keep the calendar date; a date carries no instant.
		t = time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	}

	return icsTime{t: t, allDay: allDay, utc: utc}, true
}

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, `,`, `\;`, `;`, `\n`, "\n", `\N`, "\n")

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
