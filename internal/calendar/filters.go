// Package calendar merges user-authored and remote events into the
// filtered views the dashboard renders.
package calendar

import (
	"regexp"
	"strings"

	"homedash/internal/model"
)

// UpcomingKeywords are the summary fragments that mark a remote event as
// worth showing when FilterSettings.UseUpcomingKeywords is on.
var UpcomingKeywords = []string{
	"show",
	"concert",
	"closed",
	"5th",
	"6th",
	"all schools",
	"conference",
	"applause",
	"musical",
	"spring",
	"fall",
	"winter",
	"break",
}

var dailyDetailPattern = regexp.MustCompile(`(?i)\b[ABCD] Day\b|K/A:|\bGym\b|\bOrchestra\b|\bLibrary\b|\bChallenge\b|\bK:|\bA:`)

// MatchesUpcomingKeyword reports whether summary contains any of
// UpcomingKeywords, ignoring case.
func MatchesUpcomingKeyword(summary string) bool {
	text := strings.ToLower(summary)
	for _, kw := range UpcomingKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// IsDailySchoolDetail reports whether summary is routine letter-day noise.
func IsDailySchoolDetail(summary string) bool {
	return dailyDetailPattern.MatchString(summary)
}

// Keep reports whether ev survives filters.
//
// Custom events are gated by IncludeCustom and an explicit false in
// IncludeCalendars. Everything else is gated by an explicit false in
// IncludeSources, then by the keyword and daily-detail rules.
func Keep(ev model.CalendarEvent, filters model.FilterSettings) bool {
	if ev.Source == model.SourceCustom {
		if !filters.IncludeCustom {
			return false
		}
		if ev.CalendarKey != "" {
			if on, ok := filters.IncludeCalendars[ev.CalendarKey]; ok && !on {
				return false
			}
		}
		return true
	}

	if on, ok := filters.IncludeSources[string(ev.Source)]; ok && !on {
		return false
	}
	if filters.UseUpcomingKeywords && !MatchesUpcomingKeyword(ev.Summary) {
		return false
	}
	if filters.HideDailySchoolDetails && IsDailySchoolDetail(ev.Summary) {
		return false
	}
	return true
}

// ApplyFilters returns the events that Keep accepts, in input order.
// The input slice is not modified.
func ApplyFilters(events []model.CalendarEvent, filters model.FilterSettings) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if Keep(ev, filters) {
			out = append(out, ev)
		}
	}
	return out
}
