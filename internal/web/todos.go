package web

import (
	"net/http"

	"homedash/internal/store"
)

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.deps.Store.Todos.List(r.Context())
	if err != nil {
		writeError(w, r, err, "Unable to load todos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todos": todos})
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	var draft store.TodoDraft
	if err := readJSON(w, r, &draft); err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}
	todo, err := s.deps.Store.Todos.Create(r.Context(), draft, session)
	if err != nil {
		writeError(w, r, err, "Unable to save todo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todo": todo})
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	var patch store.TodoPatch
	if err := readJSON(w, r, &patch); err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}
	todo, err := s.deps.Store.Todos.Update(r.Context(), patch, session)
	if err != nil {
		writeError(w, r, err, "Unable to update todo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todo": todo})
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := readID(w, r)
	if err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}
	if err := s.deps.Store.Todos.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "Unable to delete todo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
