package dashboard

import (
	"context"
	"slices"
	"time"

	"homedash/internal/calendar"
	"homedash/internal/model"
)

const (
	// HockeyMax is the per-tile limit of the hockey tile.
	HockeyMax = 3
	// PersonMax is how many events each person list shows.
	PersonMax = 4
	// UpcomingDays is how far past next Monday the upcoming list looks.
	UpcomingDays = 30
	// PersonDays is how far ahead the per-person list looks.
	PersonDays = 7

	personDave = "dave"
)

// MonthResponse is the month view plus per-source status.
type MonthResponse struct {
	calendar.MonthView
	Sources map[string]SourceStatus `json:"sources"`
}

// Month renders the month grid for year/month.
func (s *Service) Month(ctx context.Context, year int, month time.Month, force bool) MonthResponse {
	snap := s.Load(ctx, force)
	today := s.Now()
	first := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	anchor := first.AddDate(0, 0, -int(first.Weekday()))
	window := calendar.DayWindow(anchor, anchor.AddDate(0, 0, 41))

	events := calendar.BuildView(snap.Custom, snap.Remote, snap.Filters(), calendar.Rules{SummerBreak: true}, window)
	return MonthResponse{
		MonthView: calendar.MonthGrid(events, year, month, today),
		Sources:   snap.Status,
	}
}

// YearResponse is the year timeline plus per-source status.
type YearResponse struct {
	calendar.YearView
	Sources map[string]SourceStatus `json:"sources"`
}

// Year renders the twelve-month timeline for year.
func (s *Service) Year(ctx context.Context, year int, force bool) YearResponse {
	snap := s.Load(ctx, force)
	window := calendar.DayWindow(
		time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc),
		time.Date(year, time.December, 31, 0, 0, 0, 0, s.loc),
	)
	events := calendar.BuildView(snap.Custom, snap.Remote, snap.Filters(), calendar.Rules{SummerBreak: true}, window)
	return YearResponse{
		YearView: calendar.YearTimeline(events, year, s.loc),
		Sources:  snap.Status,
	}
}

// Tile is one card of the week strip.
type Tile struct {
	calendar.StripDay
	Kind       string `json:"kind"`
	Tag        string `json:"tag,omitempty"`
	EmptyLabel string `json:"emptyLabel"`
	Highlight  bool   `json:"highlight"`
}

// WeekResponse is the school week strip with the hockey tile, the
// upcoming school events and the per-person lists.
type WeekResponse struct {
	WeekStart string                      `json:"weekStart"`
	Tiles     []Tile                      `json:"tiles"`
	Upcoming  []calendar.Entry            `json:"upcoming"`
	People    map[string][]calendar.Entry `json:"people"`
	Sources   map[string]SourceStatus     `json:"sources"`
}

// Week renders the school week strip relative to the service clock.
func (s *Service) Week(ctx context.Context, force bool) WeekResponse {
	snap := s.Load(ctx, force)
	now := s.Now()
	weekStart := calendar.SchoolWeekStart(now)
	days := calendar.Days(weekStart, calendar.SchoolDays)

	schoolOnly := map[model.Source][]model.CalendarEvent{
		model.SourceSchool: snap.Remote[model.SourceSchool],
		model.SourceLetter: snap.Remote[model.SourceLetter],
	}
	schoolEvents := calendar.BuildView(nil, schoolOnly, snap.Filters(), calendar.Rules{LetterDays: true},
		calendar.DayWindow(days[0], days[len(days)-1]))

	schoolAvailable := snap.Available(model.SourceSchool) || snap.Available(model.SourceLetter)
	todayKey := ""
	if !calendar.IsWeekend(now) {
		todayKey = model.DayKey(now)
	}

	tiles := make([]Tile, 0, len(days)+1)
	for _, sd := range calendar.WeekStrip(schoolEvents, days, s.weekMax) {
		tiles = append(tiles, Tile{
			StripDay:   sd,
			Kind:       "school",
			EmptyLabel: emptyLabel(schoolAvailable, "No school", "School unavailable"),
			Highlight:  sd.Date == todayKey,
		})
	}

	hockeyDay := calendar.HockeySaturday(now)
	hockey := calendar.WeekStrip(snap.Remote[model.SourceHockey], []time.Time{hockeyDay}, HockeyMax)[0]
	hockeyTile := Tile{
		StripDay:   hockey,
		Kind:       "hockey",
		Tag:        "Hockey",
		EmptyLabel: emptyLabel(snap.Available(model.SourceHockey), "No games", "Hockey unavailable"),
	}
	if calendar.IsWeekend(now) {
		tiles = append([]Tile{hockeyTile}, tiles...)
	} else {
		tiles = append(tiles, hockeyTile)
	}

	return WeekResponse{
		WeekStart: model.DayKey(weekStart),
		Tiles:     tiles,
		Upcoming:  upcoming(snap.Remote[model.SourceSchool], weekStart.AddDate(0, 0, 7)),
		People:    s.people(snap, now),
		Sources:   snap.Status,
	}
}

// Feed returns the filtered merged events for export, summer break
// included.
func (s *Service) Feed(ctx context.Context) []model.CalendarEvent {
	snap := s.Load(ctx, false)
	return calendar.BuildView(snap.Custom, snap.Remote, snap.Filters(), calendar.Rules{SummerBreak: true}, calendar.Window{})
}

func emptyLabel(available bool, empty, unavailable string) string {
	if available {
		return empty
	}
	return unavailable
}

// upcoming lists keyword-matching school events in the 30 days after from.
func upcoming(school []model.CalendarEvent, from time.Time) []calendar.Entry {
	until := from.AddDate(0, 0, UpcomingDays)
	var hits []model.CalendarEvent
	for _, ev := range school {
		if !calendar.MatchesUpcomingKeyword(ev.Summary) {
			continue
		}
		if ev.Start.Before(from) || !ev.Start.Before(until) {
			continue
		}
		hits = append(hits, ev)
	}
	calendar.SortByStart(hits)
	return entries(hits, 0)
}

// people builds the per-person lists: the students' letter-day add-ons for
// today and the next week of shifts from the qgenda feed.
func (s *Service) people(snap Snapshot, now time.Time) map[string][]calendar.Entry {
	out := make(map[string][]calendar.Entry)
	letter := calendar.LetterDays(snap.Remote[model.SourceLetter])[model.DayKey(now)]
	for student, evs := range calendar.StudentAddOns(letter, now) {
		out[student] = entries(evs, PersonMax)
	}

	if !snap.Available(model.SourceQGenda) {
		return out
	}
	todayKey := model.DayKey(now)
	until := now.AddDate(0, 0, PersonDays)
	var shifts []model.CalendarEvent
	for _, ev := range snap.Remote[model.SourceQGenda] {
		if ev.AllDay && model.DayKey(ev.Start) == todayKey {
			shifts = append(shifts, ev)
			continue
		}
		if !ev.Start.Before(now) && ev.Start.Before(until) {
			shifts = append(shifts, ev)
		}
	}
	slices.SortStableFunc(shifts, func(a, b model.CalendarEvent) int { return a.Start.Compare(b.Start) })
	for i := range shifts {
		shifts[i].Summary = calendar.CleanTitle(shifts[i].Summary, personDave)
	}
	out[personDave] = entries(shifts, PersonMax)
	return out
}

func entries(events []model.CalendarEvent, limit int) []calendar.Entry {
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	out := make([]calendar.Entry, 0, len(events))
	for _, ev := range events {
		out = append(out, calendar.NewEntry(ev))
	}
	return out
}
