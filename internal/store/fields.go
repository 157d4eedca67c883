package store

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"
	"time"

	"homedash/internal/model"
)

// Optional records whether a JSON field was present at all. A present
// null leaves Set true and Value zero.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// parseDateValue returns the trimmed YYYY-MM-DD value and whether it is a
// real calendar date. Empty input yields ("", true).
func parseDateValue(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", true
	}
	if !datePattern.MatchString(v) {
		return "", false
	}
	if _, err := time.Parse(model.DateLayout, v); err != nil {
		return "", false
	}
	return v, true
}

// parseTimeValue is parseDateValue for HH:MM.
func parseTimeValue(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", true
	}
	if !timePattern.MatchString(v) {
		return "", false
	}
	if _, err := time.Parse(model.TimeLayout, v); err != nil {
		return "", false
	}
	return v, true
}

// NormalizeName trims and lowercases a user or calendar name.
func NormalizeName(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Fixed calendar names beyond the family members.
const (
	CalendarFamily = "family"
	CalendarSchool = "school"
	CalendarMeals  = "meals"
)

// Calendars is the allow-list of names a custom event may be filed under.
type Calendars struct {
	names []string
}

// NewCalendars builds the allow-list from the family user names and any
// configured extras.
func NewCalendars(users []string, extra []string) Calendars {
	names := []string{CalendarFamily, CalendarSchool, CalendarMeals}
	for _, n := range append(append([]string(nil), users...), extra...) {
		n = NormalizeName(n)
		if n != "" && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return Calendars{names: names}
}

// Allowed reports whether name (already normalized) is on the list.
func (c Calendars) Allowed(name string) bool {
	return slices.Contains(c.names, name)
}

// Names returns the allow-list.
func (c Calendars) Names() []string {
	return slices.Clone(c.names)
}
