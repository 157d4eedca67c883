package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homedash/internal/model"
)

var ny = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ny)
}

func at(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, ny)
}

func remote(src model.Source, summary string, start time.Time) model.CalendarEvent {
	return model.CalendarEvent{Summary: summary, Start: start, End: start, Source: src, Priority: model.PriorityNormal}
}

func custom(cal, summary string, start time.Time) model.CalendarEvent {
	return model.CalendarEvent{Summary: summary, Start: start, End: start, Source: model.SourceCustom, CalendarKey: cal}
}

func summaries(events []model.CalendarEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Summary)
	}
	return out
}

func TestApplyFilters(t *testing.T) {
	d := day(2024, 3, 11)
	events := []model.CalendarEvent{
		custom("family", "Dentist", d),
		custom("meals", "Tacos", d),
		custom("grandma", "Visit", d),
		remote(model.SourceSchool, "Spring Concert", d),
		remote(model.SourceSchool, "Picture day", d),
		remote(model.SourceSchool, "B Day - Spring", d),
		remote(model.SourceHockey, "Winter league game", d),
		remote(model.SourceLetter, "A Day break", d),
		remote(model.SourceQGenda, "Call shift", d),
	}

	got := ApplyFilters(events, model.DefaultFilters())
	assert.Equal(t, []string{"Dentist", "Visit", "Spring Concert", "Winter league game"}, summaries(got))

	loose := model.DefaultFilters()
	loose.UseUpcomingKeywords = false
	loose.HideDailySchoolDetails = false
	loose.IncludeSources["qgenda"] = true
	got = ApplyFilters(events, loose)
	assert.Equal(t, []string{"Dentist", "Visit", "Spring Concert", "Picture day", "B Day - Spring", "Winter league game", "Call shift"}, summaries(got))

	noCustom := model.DefaultFilters()
	noCustom.IncludeCustom = false
	for _, ev := range ApplyFilters(events, noCustom) {
		assert.NotEqual(t, model.SourceCustom, ev.Source)
	}

	// sources missing from the map are not filtered by source
	unknown := model.DefaultFilters()
	unknown.IncludeSources = map[string]bool{}
	unknown.UseUpcomingKeywords = false
	unknown.HideDailySchoolDetails = false
	assert.Len(t, ApplyFilters(events, unknown), 8)
}

func TestApplyFiltersIdempotent(t *testing.T) {
	d := day(2024, 3, 11)
	events := []model.CalendarEvent{
		custom("family", "Dentist", d),
		remote(model.SourceSchool, "Spring Concert", d),
		remote(model.SourceSchool, "K/A: Gym show", d),
		remote(model.SourceHockey, "Practice", d),
	}
	f := model.DefaultFilters()
	once := ApplyFilters(events, f)
	assert.Equal(t, once, ApplyFilters(once, f))
	assert.Len(t, events, 4, "input untouched")
}

func TestDailySchoolDetail(t *testing.T) {
	for _, s := range []string{"A Day", "c day", "K/A: Orchestra", "Gym", "K: Challenge", "A: Library"} {
		assert.True(t, IsDailySchoolDetail(s), s)
	}
	for _, s := range []string{"Spring Concert", "Gymnastics meet", "Holiday", "Data day"} {
		assert.False(t, IsDailySchoolDetail(s), s)
	}
}

func TestSummerBreak(t *testing.T) {
	events := []model.CalendarEvent{
		remote(model.SourceSchool, "First Day of School", day(2023, 9, 5)),
		remote(model.SourceSchool, "Last day of school (early dismissal)", day(2024, 6, 14)),
		remote(model.SourceSchool, "First day of school", day(2024, 9, 3)),
		remote(model.SourceSchool, "First day of school for K", day(2024, 9, 5)),
		remote(model.SourceHockey, "Last day of school party", day(2024, 6, 20)),
	}

	sb, ok := SummerBreak(events)
	require.True(t, ok)
	assert.Equal(t, "Summer Break", sb.Summary)
	assert.Equal(t, model.SourceGenerated, sb.Source)
	assert.Equal(t, model.CategorySummerBreak, sb.Category)
	assert.True(t, sb.AllDay)
	assert.Equal(t, day(2024, 6, 15), sb.Start)
	assert.Equal(t, day(2024, 9, 2), sb.End)

	_, ok = SummerBreak(events[:1])
	assert.False(t, ok, "no last day")

	_, ok = SummerBreak([]model.CalendarEvent{
		remote(model.SourceSchool, "Last day of school", day(2024, 6, 14)),
		remote(model.SourceSchool, "First day of school", day(2024, 6, 15)),
	})
	assert.False(t, ok, "empty gap")
}

func TestLetterDays(t *testing.T) {
	assert.Equal(t, "B", ExtractLetter("b day"))
	assert.Equal(t, "A", ExtractLetter("Today is A  Day!"))
	assert.Equal(t, "", ExtractLetter("E Day"))
	assert.Equal(t, "", ExtractLetter("Holiday"))

	days := LetterDays([]model.CalendarEvent{
		remote(model.SourceLetter, "A Day", day(2024, 3, 11)),
		remote(model.SourceLetter, "No school", day(2024, 3, 12)),
		remote(model.SourceLetter, "C Day", day(2024, 3, 13)),
		remote(model.SourceSchool, "D Day", day(2024, 3, 14)),
	})
	assert.Equal(t, map[string]string{"2024-03-11": "A", "2024-03-13": "C"}, days)

	evs := LetterDayEvents("B", at(2024, 3, 12, 9, 30))
	require.Len(t, evs, 3)
	assert.Equal(t, []string{"B Day", "K: Challenge", "A: Library"}, summaries(evs))
	assert.Equal(t, model.PriorityLetterDay, evs[0].Priority)
	assert.Equal(t, model.PriorityAddOn, evs[1].Priority)
	assert.Equal(t, day(2024, 3, 12), evs[0].Start)
	assert.True(t, evs[2].AllDay)
	assert.Nil(t, LetterDayEvents("", day(2024, 3, 12)))

	addOns := StudentAddOns("B", day(2024, 3, 12))
	assert.Equal(t, []string{"Challenge"}, summaries(addOns[StudentKatherine]))
	assert.Equal(t, []string{"Library"}, summaries(addOns[StudentAlistair]))
	empty := StudentAddOns("", day(2024, 3, 12))
	assert.Empty(t, empty[StudentKatherine])
	assert.Contains(t, empty, StudentAlistair)
}

func TestFromPersisted(t *testing.T) {
	ev, ok := FromPersisted(model.PersistedEvent{ID: "1", Calendar: "Family", Details: "Dentist", Date: "2024-03-12", Time: "15:30"}, ny)
	require.True(t, ok)
	assert.Equal(t, at(2024, 3, 12, 15, 30), ev.Start)
	assert.Equal(t, ev.Start, ev.End)
	assert.Equal(t, "family", ev.CalendarKey)
	assert.False(t, ev.AllDay)

	ev, ok = FromPersisted(model.PersistedEvent{Details: "Trip", Date: "2024-03-12", EndDate: "2024-03-15"}, ny)
	require.True(t, ok)
	assert.True(t, ev.AllDay)
	assert.Equal(t, at(2024, 3, 15, 23, 59), ev.End)

	ev, ok = FromPersisted(model.PersistedEvent{Details: "Lunch", Date: "2024-03-12", Time: "12:00", EndTime: "13:15"}, ny)
	require.True(t, ok)
	assert.Equal(t, at(2024, 3, 12, 13, 15), ev.End)

	_, ok = FromPersisted(model.PersistedEvent{Details: "Bad", Date: "2024-13-01"}, ny)
	assert.False(t, ok)
}

func TestBuildView(t *testing.T) {
	week := DayWindow(day(2024, 3, 11), day(2024, 3, 15))
	customs := []model.CalendarEvent{
		custom("family", "Dentist", at(2024, 3, 12, 15, 0)),
		custom("family", "Out of window", at(2024, 3, 20, 9, 0)),
	}
	trip := custom("family", "Trip", day(2024, 3, 8))
	trip.End = at(2024, 3, 11, 23, 59)
	customs = append(customs, trip)

	remotes := map[model.Source][]model.CalendarEvent{
		model.SourceSchool: {
			remote(model.SourceSchool, "Spring Concert", at(2024, 3, 14, 18, 0)),
			remote(model.SourceSchool, "K/A: Gym", day(2024, 3, 11)),
		},
		model.SourceLetter: {
			remote(model.SourceLetter, "A Day", day(2024, 3, 11)),
			remote(model.SourceLetter, "B Day", day(2024, 3, 25)),
		},
	}

	got := BuildView(customs, remotes, model.DefaultFilters(), Rules{}, week)
	assert.Equal(t, []string{"Trip", "Dentist", "Spring Concert"}, summaries(got))

	got = BuildView(customs, remotes, model.DefaultFilters(), Rules{LetterDays: true}, week)
	assert.Equal(t, []string{"Trip", "A Day", "K/A: Gym", "Dentist", "Spring Concert"}, summaries(got))

	off := model.DefaultFilters()
	off.IncludeSources["school"] = false
	remotes[model.SourceSchool] = append(remotes[model.SourceSchool],
		remote(model.SourceSchool, "Last day of school", day(2024, 3, 1)),
		remote(model.SourceSchool, "First day of school", day(2024, 3, 14)),
	)
	got = BuildView(nil, remotes, off, Rules{SummerBreak: true}, week)
	assert.Empty(t, got, "summer break needs the school source")

	got = BuildView(nil, remotes, model.DefaultFilters(), Rules{SummerBreak: true}, week)
	assert.Equal(t, []string{"Summer Break", "Spring Concert"}, summaries(got))
}

func TestMonthGrid(t *testing.T) {
	long := custom("family", "Trip", day(2024, 3, 1))
	long.End = at(2024, 3, 3, 23, 59)
	events := []model.CalendarEvent{long}
	for i := range 5 {
		events = append(events, custom("family", "Busy", at(2024, 3, 20, 8+i, 0)))
	}

	view := MonthGrid(events, 2024, time.March, at(2024, 3, 20, 10, 0))
	require.Len(t, view.Cells, 42)
	assert.Equal(t, "March 2024", view.Label)
	assert.Equal(t, "2024-02-25", view.Cells[0].Date)
	assert.False(t, view.Cells[0].InMonth)
	assert.True(t, view.Cells[5].InMonth)
	assert.Equal(t, 1, view.Cells[5].Day)

	for _, i := range []int{5, 6, 7} {
		require.Len(t, view.Cells[i].Events, 1)
		assert.True(t, view.Cells[i].Events[0].Continues)
	}
	assert.Empty(t, view.Cells[8].Events)

	busy := view.Cells[5+19]
	assert.Equal(t, "2024-03-20", busy.Date)
	assert.True(t, busy.IsToday)
	assert.Len(t, busy.Events, MonthCellMax)
	assert.Equal(t, 2, busy.More)
}

func TestPackLanes(t *testing.T) {
	segs := []Segment{
		{StartDay: 6, EndDay: 10},
		{StartDay: 1, EndDay: 5},
		{StartDay: 3, EndDay: 7},
	}
	lanes := PackLanes(segs)
	assert.Equal(t, 2, lanes)
	assert.Equal(t, 1, segs[0].StartDay)
	assert.Equal(t, []int{0, 1, 0}, []int{segs[0].Lane, segs[1].Lane, segs[2].Lane})

	touching := []Segment{{StartDay: 1, EndDay: 5}, {StartDay: 5, EndDay: 6}}
	assert.Equal(t, 2, PackLanes(touching), "shared day needs a new lane")
}

func TestYearTimeline(t *testing.T) {
	span := custom("family", "Winter trip", day(2024, 1, 30))
	span.End = at(2024, 2, 2, 23, 59)

	view := YearTimeline([]model.CalendarEvent{span, custom("dave", "Call", at(2024, 2, 1, 9, 0))}, 2024, ny)
	require.Len(t, view.Months, 12)

	jan := view.Months[0]
	require.Len(t, jan.Segments, 1)
	assert.Equal(t, 30, jan.Segments[0].StartDay)
	assert.Equal(t, 31, jan.Segments[0].EndDay)
	assert.Equal(t, 31, jan.Days)

	feb := view.Months[1]
	assert.Equal(t, 29, feb.Days)
	assert.Equal(t, 2, feb.Lanes)
	require.Len(t, feb.Segments, 2)
	assert.Equal(t, 1, feb.Segments[0].StartDay)
	assert.Equal(t, 1, feb.Segments[0].EndDay, "sorted by end within the same start")
	assert.Equal(t, 2, feb.Segments[1].EndDay)

	assert.Empty(t, view.Months[2].Segments)
}

func TestWeekStrip(t *testing.T) {
	d := day(2024, 3, 11)
	events := []model.CalendarEvent{
		remote(model.SourceSchool, "Concert", at(2024, 3, 11, 18, 0)),
		remote(model.SourceSchool, "Assembly", at(2024, 3, 11, 9, 0)),
	}
	events = append(events, LetterDayEvents("B", d)...)

	strip := WeekStrip(events, Days(d, 2), 4)
	require.Len(t, strip, 2)
	assert.Equal(t, "Mon", strip[0].Weekday)
	got := make([]string, 0)
	for _, e := range strip[0].Events {
		got = append(got, e.Summary)
	}
	assert.Equal(t, []string{"B Day", "K: Challenge", "A: Library", "Assembly"}, got)
	assert.Equal(t, 1, strip[0].More)
	assert.Empty(t, strip[1].Events)
	assert.Equal(t, "event-letter", strip[0].Events[0].Class)
}

func TestWeekAnchors(t *testing.T) {
	cases := []struct {
		now    time.Time
		school time.Time
		hockey time.Time
	}{
		{at(2024, 3, 13, 10, 0), day(2024, 3, 11), day(2024, 3, 16)}, // Wednesday
		{at(2024, 3, 11, 0, 0), day(2024, 3, 11), day(2024, 3, 16)},  // Monday
		{at(2024, 3, 16, 8, 0), day(2024, 3, 18), day(2024, 3, 16)},  // Saturday
		{at(2024, 3, 17, 20, 0), day(2024, 3, 18), day(2024, 3, 16)}, // Sunday
	}
	for _, tc := range cases {
		assert.Equal(t, tc.school, SchoolWeekStart(tc.now), tc.now.Weekday().String())
		assert.Equal(t, tc.hockey, HockeySaturday(tc.now), tc.now.Weekday().String())
	}
}

func TestClassFor(t *testing.T) {
	d := day(2024, 3, 11)
	assert.Equal(t, "event-family", ClassFor(custom("family", "x", d)))
	assert.Equal(t, "event-meals", ClassFor(custom("meals", "x", d)))
	assert.Equal(t, "event-custom", ClassFor(custom("grandma", "x", d)))
	assert.Equal(t, "event-hockey", ClassFor(remote(model.SourceHockey, "x", d)))
	assert.Equal(t, "event-external", ClassFor(remote("other", "x", d)))
	assert.Equal(t, "event-summer", ClassFor(model.CalendarEvent{Source: model.SourceGenerated, Category: model.CategorySummerBreak}))
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Call - M", CleanTitle("[OR] Call - Main Campus", "dave"))
	assert.Equal(t, "Off", CleanTitle("[x] Off ", "dave"))
	assert.Equal(t, "Gym class", CleanTitle("  Gym class ", "katherine"))
}
