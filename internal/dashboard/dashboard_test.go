package dashboard

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homedash/internal/apperr"
	"homedash/internal/ics"
	appLog "homedash/internal/log"
	"homedash/internal/model"
)

func init() {
	appLog.SetOutput(io.Discard)
}

type stubEvents struct {
	events []model.PersistedEvent
	err    error
}

func (s stubEvents) List(context.Context) ([]model.PersistedEvent, error) {
	return s.events, s.err
}

type stubSettings struct {
	settings model.Settings
	err      error
}

func (s stubSettings) Get(context.Context) (model.Settings, error) {
	return s.settings, s.err
}

type stubSources struct {
	order   []string
	results map[string]ics.Result
	errs    map[string]error
}

func (s stubSources) Sources() []string { return s.order }

func (s stubSources) Configured(id string) bool {
	_, ok := s.results[id]
	_, failing := s.errs[id]
	return ok || failing
}

func (s stubSources) FetchSource(_ context.Context, id string, _ bool) (ics.Result, error) {
	if err, ok := s.errs[id]; ok {
		return ics.Result{}, err
	}
	return s.results[id], nil
}

var loc = time.UTC

func at(m time.Month, d, h int) time.Time {
	return time.Date(2024, m, d, h, 0, 0, 0, loc)
}

func ev(src model.Source, summary string, start time.Time) model.CalendarEvent {
	return model.CalendarEvent{Summary: summary, Start: start, End: start, Source: src, Priority: model.PriorityNormal}
}

func fixture(now time.Time) *Service {
	sources := stubSources{
		order: []string{"school", "letter", "hockey", "qgenda"},
		results: map[string]ics.Result{
			"school": {Source: "school", Events: []model.CalendarEvent{
				ev(model.SourceSchool, "Spring Concert", at(3, 14, 18)),
				ev(model.SourceSchool, "Picture day", at(3, 12, 9)),
				ev(model.SourceSchool, "Winter Break Begins", at(3, 25, 0)),
			}},
			"letter": {Source: "letter", Stale: true, Events: []model.CalendarEvent{
				ev(model.SourceLetter, "A Day", at(3, 11, 0)),
				ev(model.SourceLetter, "B Day", at(3, 13, 0)),
			}},
			"hockey": {Source: "hockey", Events: []model.CalendarEvent{
				ev(model.SourceHockey, "Mites vs Flyers", at(3, 16, 9)),
				ev(model.SourceHockey, "Practice", at(3, 23, 9)),
			}},
		},
		errs: map[string]error{"qgenda": apperr.Upstream("Unable to load calendar", errors.New("boom"))},
	}
	stored := []model.PersistedEvent{
		{ID: "e1", Calendar: "family", Details: "Dentist", Date: "2024-03-12", Time: "15:30"},
	}
	return New(stubEvents{events: stored}, stubSettings{err: errors.New("db down")}, sources, loc).
		WithClock(func() time.Time { return now })
}

func TestLoadSettlesAll(t *testing.T) {
	svc := fixture(at(3, 13, 10))
	snap := svc.Load(context.Background(), false)

	assert.Equal(t, model.DefaultFilters(), snap.Settings.Filters, "settings failure falls back to defaults")
	require.Len(t, snap.Custom, 1)
	assert.Equal(t, "Dentist", snap.Custom[0].Summary)

	assert.Equal(t, map[string]SourceStatus{
		"school": StatusOK,
		"letter": StatusStale,
		"hockey": StatusOK,
		"qgenda": StatusUnavailable,
	}, snap.Status)
	assert.Len(t, snap.Remote[model.SourceSchool], 3)
	assert.NotContains(t, snap.Remote, model.SourceQGenda)
}

func TestLoadDisabledSource(t *testing.T) {
	svc := New(stubEvents{err: errors.New("no table")}, stubSettings{settings: model.DefaultSettings(at(1, 1, 0))},
		stubSources{order: []string{"school"}}, loc)
	snap := svc.Load(context.Background(), true)
	assert.Equal(t, StatusDisabled, snap.Status["school"])
	assert.Empty(t, snap.Custom)
	assert.False(t, snap.Available(model.SourceSchool))
}

func TestMonth(t *testing.T) {
	svc := fixture(at(3, 13, 10))
	view := svc.Month(context.Background(), 2024, time.March, false)

	require.Len(t, view.Cells, 42)
	byDate := map[string][]string{}
	for _, c := range view.Cells {
		for _, e := range c.Events {
			byDate[c.Date] = append(byDate[c.Date], e.Summary)
		}
	}
	assert.Equal(t, []string{"Dentist"}, byDate["2024-03-12"])
	assert.Equal(t, []string{"Spring Concert"}, byDate["2024-03-14"])
	assert.Empty(t, byDate["2024-03-16"], "hockey game has no keyword")
	assert.Equal(t, StatusUnavailable, view.Sources["qgenda"])
}

func TestYear(t *testing.T) {
	svc := fixture(at(3, 13, 10))
	view := svc.Year(context.Background(), 2024, false)
	require.Len(t, view.Months, 12)
	assert.Len(t, view.Months[2].Segments, 3)
	assert.Empty(t, view.Months[0].Segments)
}

func TestWeekOnWeekday(t *testing.T) {
	svc := fixture(at(3, 13, 10))
	week := svc.Week(context.Background(), false)

	assert.Equal(t, "2024-03-11", week.WeekStart)
	require.Len(t, week.Tiles, 6)
	assert.Equal(t, "school", week.Tiles[0].Kind)
	assert.Equal(t, "hockey", week.Tiles[5].Kind)

	mon := week.Tiles[0]
	require.NotEmpty(t, mon.Events)
	assert.Equal(t, "A Day", mon.Events[0].Summary)
	assert.Equal(t, "K/A: Gym", mon.Events[1].Summary)

	wed := week.Tiles[2]
	assert.True(t, wed.Highlight)
	assert.Equal(t, "B Day", wed.Events[0].Summary)

	thu := week.Tiles[3]
	require.Len(t, thu.Events, 1)
	assert.Equal(t, "Spring Concert", thu.Events[0].Summary)

	assert.Equal(t, "No school", week.Tiles[4].EmptyLabel)
	assert.Empty(t, week.Tiles[4].Events)

	hockey := week.Tiles[5]
	assert.Equal(t, "2024-03-16", hockey.Date)
	require.Len(t, hockey.Events, 1)
	assert.Equal(t, "Mites vs Flyers", hockey.Events[0].Summary)

	require.Len(t, week.Upcoming, 1)
	assert.Equal(t, "Winter Break Begins", week.Upcoming[0].Summary)

	assert.Equal(t, "Challenge", week.People["katherine"][0].Summary)
	assert.Equal(t, "Library", week.People["alistair"][0].Summary)
	assert.NotContains(t, week.People, "dave", "qgenda unavailable")
}

func TestWeekOnWeekend(t *testing.T) {
	svc := fixture(at(3, 17, 10))
	week := svc.Week(context.Background(), false)

	assert.Equal(t, "2024-03-18", week.WeekStart)
	require.Len(t, week.Tiles, 6)
	assert.Equal(t, "hockey", week.Tiles[0].Kind)
	assert.Equal(t, "2024-03-16", week.Tiles[0].Date)
	for _, tile := range week.Tiles {
		assert.False(t, tile.Highlight)
	}
}

func TestFeed(t *testing.T) {
	svc := fixture(at(3, 13, 10))
	feed := svc.Feed(context.Background())
	names := make([]string, 0, len(feed))
	for _, e := range feed {
		names = append(names, e.Summary)
	}
	assert.Equal(t, []string{"Dentist", "Spring Concert", "Winter Break Begins"}, names)
}
