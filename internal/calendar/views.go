package calendar

import (
	"slices"
	"time"

	"homedash/internal/model"
)

const (
	// MonthCellMax is how many events a month cell lists before "+N more".
	MonthCellMax = 3
	// WeekDayMax is the default per-day limit for the week strip.
	WeekDayMax = 4
	// SchoolDays is the length of the school week strip.
	SchoolDays = 5

	monthCells = 42
)

// Entry is an event as placed in a rendered view.
type Entry struct {
	model.CalendarEvent
	Class string `json:"class"`
	// Continues marks multi-day events in month cells.
	Continues bool `json:"continues,omitempty"`
}

// NewEntry wraps ev with its styling class.
func NewEntry(ev model.CalendarEvent) Entry {
	return Entry{CalendarEvent: ev, Class: ClassFor(ev), Continues: ev.MultiDay()}
}

// Intersects reports whether ev touches the calendar day containing day.
func Intersects(ev model.CalendarEvent, day time.Time) bool {
	return !ev.Start.After(endOfDay(day)) && !ev.End.Before(startOfDay(day))
}

// DayCell is one square of the month grid.
type DayCell struct {
	Date    string  `json:"date"`
	Day     int     `json:"day"`
	InMonth bool    `json:"inMonth"`
	IsToday bool    `json:"isToday"`
	Events  []Entry `json:"events"`
	More    int     `json:"more"`
}

// MonthView is a six-week grid anchored on the Sunday on or before the 1st.
type MonthView struct {
	Year  int       `json:"year"`
	Month int       `json:"month"`
	Label string    `json:"label"`
	Cells []DayCell `json:"cells"`
}

// MonthGrid lays out events over 42 day cells. today selects the location
// and the highlighted cell.
func MonthGrid(events []model.CalendarEvent, year int, month time.Month, today time.Time) MonthView {
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	anchor := addDays(first, -int(first.Weekday()))
	todayKey := model.DayKey(today)

	view := MonthView{
		Year:  year,
		Month: int(month),
		Label: first.Format("January 2006"),
		Cells: make([]DayCell, 0, monthCells),
	}
	for i := range monthCells {
		day := addDays(anchor, i)
		cell := DayCell{
			Date:    model.DayKey(day),
			Day:     day.Day(),
			InMonth: day.Month() == month,
			IsToday: model.DayKey(day) == todayKey,
			Events:  []Entry{},
		}
		var hits int
		for _, ev := range events {
			if !Intersects(ev, day) {
				continue
			}
			hits++
			if len(cell.Events) < MonthCellMax {
				cell.Events = append(cell.Events, NewEntry(ev))
			}
		}
		cell.More = hits - len(cell.Events)
		view.Cells = append(view.Cells, cell)
	}
	return view
}

// Segment is an event clipped to one month of the year timeline. Days are
// 1-based day-of-month; Lane is 0-based.
type Segment struct {
	Entry
	StartDay int `json:"startDay"`
	EndDay   int `json:"endDay"`
	Lane     int `json:"lane"`
}

// MonthRow is one month of the year timeline.
type MonthRow struct {
	Month    int       `json:"month"`
	Label    string    `json:"label"`
	Days     int       `json:"days"`
	Lanes    int       `json:"lanes"`
	Segments []Segment `json:"segments"`
}

// YearView is the twelve-row timeline.
type YearView struct {
	Year   int        `json:"year"`
	Months []MonthRow `json:"months"`
}

// YearTimeline clips events to each month of year in loc and packs the
// segments into lanes so that no two segments in a lane share a day.
func YearTimeline(events []model.CalendarEvent, year int, loc *time.Location) YearView {
	if loc == nil {
		loc = time.Local
	}
	view := YearView{Year: year, Months: make([]MonthRow, 0, 12)}
	for m := time.January; m <= time.December; m++ {
		monthStart := time.Date(year, m, 1, 0, 0, 0, 0, loc)
		next := time.Date(year, m+1, 1, 0, 0, 0, 0, loc)
		monthEnd := next.Add(-time.Millisecond)
		days := next.AddDate(0, 0, -1).Day()

		segs := []Segment{}
		for _, ev := range events {
			if ev.Start.After(monthEnd) || ev.End.Before(monthStart) {
				continue
			}
			startDay, endDay := 1, days
			if !ev.Start.Before(monthStart) {
				startDay = ev.Start.In(loc).Day()
			}
			if !ev.End.After(monthEnd) {
				endDay = ev.End.In(loc).Day()
			}
			segs = append(segs, Segment{Entry: NewEntry(ev), StartDay: startDay, EndDay: endDay})
		}

		lanes := PackLanes(segs)
		view.Months = append(view.Months, MonthRow{
			Month:    int(m),
			Label:    monthStart.Format("Jan"),
			Days:     days,
			Lanes:    lanes,
			Segments: segs,
		})
	}
	return view
}

// PackLanes sorts segs by start then end day and assigns each the first lane
// whose last segment ended before it starts. It returns the lane count.
func PackLanes(segs []Segment) int {
	slices.SortStableFunc(segs, func(a, b Segment) int {
		if a.StartDay != b.StartDay {
			return a.StartDay - b.StartDay
		}
		return a.EndDay - b.EndDay
	})
	var laneEnds []int
	for i := range segs {
		lane := -1
		for l, end := range laneEnds {
			if segs[i].StartDay > end {
				lane = l
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, 0)
		}
		laneEnds[lane] = segs[i].EndDay
		segs[i].Lane = lane
	}
	return len(laneEnds)
}

// StripDay is one day of the week strip.
type StripDay struct {
	Date    string  `json:"date"`
	Weekday string  `json:"weekday"`
	Events  []Entry `json:"events"`
	More    int     `json:"more"`
}

// WeekStrip lists, for each of days, the events touching that day ordered
// by priority then start. At most limit are kept; limit <= 0 means WeekDayMax.
func WeekStrip(events []model.CalendarEvent, days []time.Time, limit int) []StripDay {
	if limit <= 0 {
		limit = WeekDayMax
	}
	out := make([]StripDay, 0, len(days))
	for _, day := range days {
		var hits []model.CalendarEvent
		for _, ev := range events {
			if Intersects(ev, day) {
				hits = append(hits, ev)
			}
		}
		slices.SortStableFunc(hits, func(a, b model.CalendarEvent) int {
			if a.Priority != b.Priority {
				return a.Priority - b.Priority
			}
			return a.Start.Compare(b.Start)
		})
		sd := StripDay{
			Date:    model.DayKey(day),
			Weekday: day.Weekday().String()[:3],
			Events:  make([]Entry, 0, min(len(hits), limit)),
		}
		for i, ev := range hits {
			if i == limit {
				break
			}
			sd.Events = append(sd.Events, NewEntry(ev))
		}
		sd.More = len(hits) - len(sd.Events)
		out = append(out, sd)
	}
	return out
}

// Days returns n consecutive midnights starting at the day of start.
func Days(start time.Time, n int) []time.Time {
	first := startOfDay(start)
	out := make([]time.Time, n)
	for i := range n {
		out[i] = addDays(first, i)
	}
	return out
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfWeek returns midnight of the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	diff := (int(t.Weekday()) + 6) % 7
	return addDays(startOfDay(t), -diff)
}

// SchoolWeekStart is the Monday of the current week, or of next week when
// now is a weekend.
func SchoolWeekStart(now time.Time) time.Time {
	start := StartOfWeek(now)
	if IsWeekend(now) {
		start = addDays(start, 7)
	}
	return start
}

// HockeySaturday is today on Saturday, yesterday on Sunday and the coming
// Saturday otherwise.
func HockeySaturday(now time.Time) time.Time {
	day := startOfDay(now)
	switch now.Weekday() {
	case time.Saturday:
		return day
	case time.Sunday:
		return addDays(day, -1)
	}
	return addDays(day, int(time.Saturday-now.Weekday()))
}

// ClassFor returns the styling class of ev.
func ClassFor(ev model.CalendarEvent) string {
	if ev.Category == model.CategorySummerBreak {
		return "event-summer"
	}
	if ev.Source == model.SourceCustom {
		switch ev.CalendarKey {
		case "family", "dave", "lorna", "school", "meals":
			return "event-" + ev.CalendarKey
		}
		return "event-custom"
	}
	switch ev.Source {
	case model.SourceSchool, model.SourceHockey, model.SourceQGenda, model.SourceLetter:
		return "event-" + string(ev.Source)
	}
	return "event-external"
}
