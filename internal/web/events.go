package web

import (
	"net/http"

	"homedash/internal/store"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Store.Events.List(r.Context())
	if err != nil {
		writeError(w, r, err, "Unable to load events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	var draft store.EventDraft
	if err := readJSON(w, r, &draft); err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}
	ev, err := s.deps.Store.Events.Create(r.Context(), draft, session)
	if err != nil {
		writeError(w, r, err, "Unable to save event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	var patch store.EventPatch
	if err := readJSON(w, r, &patch); err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}
	ev, err := s.deps.Store.Events.Update(r.Context(), patch, session)
	if err != nil {
		writeError(w, r, err, "Unable to update event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	id, err := readID(w, r)
	if err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}
	if err := s.deps.Store.Events.Delete(r.Context(), id, session); err != nil {
		writeError(w, r, err, "Unable to delete event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
