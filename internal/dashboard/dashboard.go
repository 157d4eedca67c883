// Package dashboard gathers settings, stored events and every remote
// calendar into one snapshot and assembles the rendered views from it.
package dashboard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"homedash/internal/calendar"
	"homedash/internal/ics"
	appLog "homedash/internal/log"
	"homedash/internal/model"
)

// SourceStatus describes how a remote calendar contributed to a snapshot.
type SourceStatus string

const (
	StatusOK          SourceStatus = "ok"
	StatusStale       SourceStatus = "stale"
	StatusUnavailable SourceStatus = "unavailable"
	StatusDisabled    SourceStatus = "disabled"
)

// Available reports whether the source produced events.
func (s SourceStatus) Available() bool {
	return s == StatusOK || s == StatusStale
}

type EventLister interface {
	List(ctx context.Context) ([]model.PersistedEvent, error)
}

type SettingsReader interface {
	Get(ctx context.Context) (model.Settings, error)
}

type SourceFetcher interface {
	Sources() []string
	Configured(id string) bool
	FetchSource(ctx context.Context, id string, force bool) (ics.Result, error)
}

// Snapshot is everything a view needs, loaded once per request.
type Snapshot struct {
	Settings model.Settings
	Custom   []model.CalendarEvent
	Remote   map[model.Source][]model.CalendarEvent
	Status   map[string]SourceStatus
}

// Service loads snapshots and builds views in a fixed location.
type Service struct {
	events   EventLister
	settings SettingsReader
	sources  SourceFetcher
	loc      *time.Location
	now      func() time.Time
	weekMax  int
}

func New(events EventLister, settings SettingsReader, sources SourceFetcher, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		events:   events,
		settings: settings,
		sources:  sources,
		loc:      loc,
		now:      time.Now,
		weekMax:  calendar.WeekDayMax,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithWeekMax sets the per-day limit of the school week strip.
func (s *Service) WithWeekMax(n int) *Service {
	if n > 0 {
		s.weekMax = n
	}
	return s
}

// Location is the display location of every view.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Now is the service clock in the display location.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Load fetches settings, stored events and every configured source
// concurrently. A failing part is logged and contributes nothing; Load
// itself never fails.
func (s *Service) Load(ctx context.Context, force bool) Snapshot {
	snap := Snapshot{
		Settings: model.DefaultSettings(s.now()),
		Remote:   make(map[model.Source][]model.CalendarEvent),
		Status:   make(map[string]SourceStatus),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		settings, err := s.settings.Get(gctx)
		if err != nil {
			appLog.Error("dashboard: settings unavailable, using defaults", err)
			return nil
		}
		mu.Lock()
		snap.Settings = settings
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		stored, err := s.events.List(gctx)
		if err != nil {
			appLog.Error("dashboard: stored events unavailable", err)
			return nil
		}
		custom := calendar.FromPersistedAll(stored, s.loc)
		mu.Lock()
		snap.Custom = custom
		mu.Unlock()
		return nil
	})

	for _, id := range s.sources.Sources() {
		if !s.sources.Configured(id) {
			mu.Lock()
			snap.Status[id] = StatusDisabled
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			res, err := s.sources.FetchSource(gctx, id, force)
			status := StatusOK
			switch {
			case err != nil:
				status = StatusUnavailable
				appLog.Warn("dashboard: source unavailable", "source", id, "err", err.Error())
			case res.Stale:
				status = StatusStale
			}
			mu.Lock()
			defer mu.Unlock()
			snap.Status[id] = status
			if err == nil {
				snap.Remote[model.Source(id)] = res.Events
			}
			return nil
		})
	}

	// settle-all: no goroutine returns an error
	_ = g.Wait()
	return snap
}

// Filters returns the snapshot's filter settings.
func (snap Snapshot) Filters() model.FilterSettings {
	return snap.Settings.Filters
}

// Available reports whether source id produced events.
func (snap Snapshot) Available(id model.Source) bool {
	return snap.Status[string(id)].Available()
}
