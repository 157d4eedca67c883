package model

import (
	"maps"
	"time"
)

// SettingsID is the key of the singleton settings record.
const SettingsID = "default"

// FilterSettings controls which events the calendar views show.
// Map entries express explicit choices; a missing key means "no opinion".
type FilterSettings struct {
	IncludeCustom          bool            `json:"includeCustom"`
	IncludeSources         map[string]bool `json:"includeSources"`
	IncludeCalendars       map[string]bool `json:"includeCalendars"`
	UseUpcomingKeywords    bool            `json:"useUpcomingKeywords"`
	HideDailySchoolDetails bool            `json:"hideDailySchoolDetails"`
}

// DefaultFilters returns the filters used before an admin saves any.
func DefaultFilters() FilterSettings {
	return FilterSettings{
		IncludeCustom: true,
		IncludeSources: map[string]bool{
			string(SourceSchool): true,
			string(SourceHockey): true,
			string(SourceLetter): false,
			string(SourceQGenda): false,
		},
		IncludeCalendars: map[string]bool{
			"family": true,
			"dave":   true,
			"lorna":  true,
			"school": true,
			"meals":  false,
		},
		UseUpcomingKeywords:    true,
		HideDailySchoolDetails: true,
	}
}

// Clone returns a deep copy so callers can mutate maps freely.
func (f FilterSettings) Clone() FilterSettings {
	out := f
	out.IncludeSources = maps.Clone(f.IncludeSources)
	out.IncludeCalendars = maps.Clone(f.IncludeCalendars)
	if out.IncludeSources == nil {
		out.IncludeSources = map[string]bool{}
	}
	if out.IncludeCalendars == nil {
		out.IncludeCalendars = map[string]bool{}
	}
	return out
}

// SourceEnabled is true only for an explicit true entry.
func (f FilterSettings) SourceEnabled(s Source) bool {
	return f.IncludeSources[string(s)]
}

// Settings is the persisted singleton wrapping FilterSettings.
type Settings struct {
	Version   int            `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Filters   FilterSettings `json:"filters"`
}

// DefaultSettings wraps DefaultFilters stamped with now.
func DefaultSettings(now time.Time) Settings {
	return Settings{Version: 1, UpdatedAt: now.UTC(), Filters: DefaultFilters()}
}
