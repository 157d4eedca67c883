package web

import (
	"net/http"
	"strings"
	"time"

	"homedash/internal/apperr"
	"homedash/internal/ics"
	"homedash/internal/store"
)

// handleCalendar serves one remote source from the cache.
//
// GET /api/calendar?source=school&refresh=1
//   - refresh: bypass the TTL and refetch now
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	source := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("source")))
	if source == "" {
		writeError(w, r, apperr.Validation("Invalid source"), "")
		return
	}
	res, err := s.deps.Calendars.FetchSource(r.Context(), source, refreshRequested(r))
	if err != nil {
		writeError(w, r, err, "Unable to load calendar")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Store.Settings.Get(r.Context())
	if err != nil {
		writeError(w, r, err, "Unable to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
		return
	}
	var patch store.SettingsPatch
	if err := readJSON(w, r, &patch); err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}
	settings, err := s.deps.Store.Settings.Update(r.Context(), patch, session)
	if err != nil {
		writeError(w, r, err, "Unable to update settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// handleMonthView renders the month grid.
//
// GET /api/views/month?year=2024&month=3 (defaults to the current month)
func (s *Server) handleMonthView(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Dashboard.Now()
	q := r.URL.Query()
	year, okY := parseIntDefault(q.Get("year"), now.Year())
	month, okM := parseIntDefault(q.Get("month"), int(now.Month()))
	if !okY || !okM || month < 1 || month > 12 || year < 1 || year > 9999 {
		writeError(w, r, apperr.Validation("Invalid month"), "")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Dashboard.Month(r.Context(), year, time.Month(month), refreshRequested(r)))
}

// handleYearView renders the twelve-month timeline.
//
// GET /api/views/year?year=2024 (defaults to the current year)
func (s *Server) handleYearView(w http.ResponseWriter, r *http.Request) {
	year, ok := parseIntDefault(r.URL.Query().Get("year"), s.deps.Dashboard.Now().Year())
	if !ok || year < 1 || year > 9999 {
		writeError(w, r, apperr.Validation("Invalid year"), "")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Dashboard.Year(r.Context(), year, refreshRequested(r)))
}

func (s *Server) handleWeekView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Dashboard.Week(r.Context(), refreshRequested(r)))
}

// handleFeed exports the filtered merged calendar as ICS.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	events := s.deps.Dashboard.Feed(r.Context())
	body := ics.Export(events, s.deps.FeedName, s.deps.Dashboard.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
