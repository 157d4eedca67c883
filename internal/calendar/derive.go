package calendar

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"homedash/internal/model"
)

var (
	lastDayPattern  = regexp.MustCompile(`(?i)last day of school`)
	firstDayPattern = regexp.MustCompile(`(?i)first day of school`)
	letterPattern   = regexp.MustCompile(`(?i)\b([A-D])\s*Day\b`)
	bracketPattern  = regexp.MustCompile(`\[[^\]]*\]\s*`)
)

// SummerBreak derives the gap between the latest "last day of school" and
// the first "first day of school" that follows it. Only school events are
// considered. ok is false when either marker is missing or the gap is empty.
func SummerBreak(events []model.CalendarEvent) (model.CalendarEvent, bool) {
	var last *model.CalendarEvent
	for i := range events {
		ev := &events[i]
		if ev.Source != model.SourceSchool || !lastDayPattern.MatchString(ev.Summary) {
			continue
		}
		if last == nil || ev.Start.After(last.Start) {
			last = ev
		}
	}
	if last == nil {
		return model.CalendarEvent{}, false
	}

	var first *model.CalendarEvent
	for i := range events {
		ev := &events[i]
		if ev.Source != model.SourceSchool || !firstDayPattern.MatchString(ev.Summary) {
			continue
		}
		if !ev.Start.After(last.Start) {
			continue
		}
		if first == nil || ev.Start.Before(first.Start) {
			first = ev
		}
	}
	if first == nil {
		return model.CalendarEvent{}, false
	}

	start := addDays(startOfDay(last.Start), 1)
	end := addDays(startOfDay(first.Start.In(start.Location())), -1)
	if end.Before(start) {
		return model.CalendarEvent{}, false
	}
	return model.CalendarEvent{
		ID:       "summer-break-" + model.DayKey(start),
		Summary:  "Summer Break",
		Start:    start,
		End:      end,
		AllDay:   true,
		Source:   model.SourceGenerated,
		Category: model.CategorySummerBreak,
		Priority: model.PriorityNormal,
	}, true
}

// ExtractLetter returns the upper-case rotation letter in summaries like
// "B Day", or "" when there is none.
func ExtractLetter(summary string) string {
	m := letterPattern.FindStringSubmatch(summary)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// LetterDays maps day keys to the rotation letter announced by events of
// the letter source. Later events win on the same day.
func LetterDays(events []model.CalendarEvent) map[string]string {
	days := make(map[string]string)
	for _, ev := range events {
		if ev.Source != model.SourceLetter {
			continue
		}
		if letter := ExtractLetter(ev.Summary); letter != "" {
			days[model.DayKey(ev.Start)] = letter
		}
	}
	return days
}

type addOnSet struct {
	school   []string
	students map[string][]string
}

// Students that receive per-letter add-ons.
const (
	StudentKatherine = "katherine"
	StudentAlistair  = "alistair"
)

var letterAddOns = map[string]addOnSet{
	"A": {
		school:   []string{"K/A: Gym"},
		students: map[string][]string{StudentKatherine: {"Gym"}, StudentAlistair: {"Gym"}},
	},
	"B": {
		school:   []string{"K: Challenge", "A: Library"},
		students: map[string][]string{StudentKatherine: {"Challenge"}, StudentAlistair: {"Library"}},
	},
	"C": {
		school:   []string{"K/A: Orchestra"},
		students: map[string][]string{StudentKatherine: {"Orchestra"}, StudentAlistair: {"Orchestra"}},
	},
	"D": {
		school:   []string{"K/A: Orchestra"},
		students: map[string][]string{StudentKatherine: {"Orchestra"}, StudentAlistair: {"Orchestra"}},
	},
}

func allDayEvent(summary string, day time.Time, source model.Source, category string, priority int) model.CalendarEvent {
	d := startOfDay(day)
	return model.CalendarEvent{
		Summary:  summary,
		Start:    d,
		End:      d,
		AllDay:   true,
		Source:   source,
		Category: category,
		Priority: priority,
	}
}

// LetterDayEvents returns the "X Day" marker followed by the school
// add-ons for letter on day. An unknown or empty letter yields nil.
func LetterDayEvents(letter string, day time.Time) []model.CalendarEvent {
	set, ok := letterAddOns[letter]
	if !ok {
		return nil
	}
	out := make([]model.CalendarEvent, 0, 1+len(set.school))
	out = append(out, allDayEvent(letter+" Day", day, model.SourceLetter, model.CategoryLetterDay, model.PriorityLetterDay))
	for _, summary := range set.school {
		out = append(out, allDayEvent(summary, day, model.SourceSchool, model.CategoryAddOn, model.PriorityAddOn))
	}
	return out
}

// StudentAddOns returns the add-ons for each student on day. Both students
// are always present in the map, possibly with empty lists.
func StudentAddOns(letter string, day time.Time) map[string][]model.CalendarEvent {
	out := map[string][]model.CalendarEvent{
		StudentKatherine: {},
		StudentAlistair:  {},
	}
	set, ok := letterAddOns[letter]
	if !ok {
		return out
	}
	for student := range out {
		for _, summary := range set.students[student] {
			out[student] = append(out[student], allDayEvent(summary, day, model.SourceSchool, model.CategoryAddOn, model.PriorityAddOn))
		}
	}
	return out
}

// Students lists the add-on recipients in display order.
func Students() []string {
	return []string{StudentKatherine, StudentAlistair}
}

// CleanTitle shortens titles for the per-person lists. Shift titles on the
// dave calendar drop bracketed tags and keep eight characters.
func CleanTitle(title, person string) string {
	if person != "dave" {
		return strings.TrimSpace(title)
	}
	cleaned := strings.TrimSpace(bracketPattern.ReplaceAllString(title, ""))
	r := []rune(cleaned)
	if len(r) > 8 {
		r = r[:8]
	}
	return strings.TrimRight(string(r), " \t")
}

// SortByStart orders events by start, then priority, keeping input order
// for ties.
func SortByStart(events []model.CalendarEvent) {
	slices.SortStableFunc(events, func(a, b model.CalendarEvent) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.Priority - b.Priority
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return addDays(startOfDay(t), 1).Add(-time.Millisecond)
}

func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, m, d+n, h, mi, s, t.Nanosecond(), t.Location())
}
