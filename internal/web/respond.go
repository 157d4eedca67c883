package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"homedash/internal/apperr"
	appLog "homedash/internal/log"
)

type errorBody struct {
	Error string     `json:"error"`
	Debug *debugInfo `json:"debug,omitempty"`
}

type debugInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

// writeError maps err to a status and a {error} body. fallback is the
// message for errors that carry none. With ?debug=1 the cause is included.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := apperr.StatusCode(err)
	body := errorBody{Error: apperr.Message(err, fallback)}
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "method", r.Method, "path", r.URL.Path)
	}
	if debugRequested(r) {
		body.Debug = &debugInfo{Name: apperr.KindOf(err).String(), Message: err.Error()}
	}
	writeJSON(w, status, body)
}

func debugRequested(r *http.Request) bool {
	v := r.URL.Query().Get("debug")
	return v == "1" || v == "true"
}

// readJSON decodes the request body into v. An empty body leaves v untouched.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.E(apperr.KindValidation, "Invalid JSON", err)
	}
	return nil
}

// idRequest is the body of DELETE requests.
type idRequest struct {
	ID string `json:"id"`
}

// readID takes the id from the JSON body, falling back to ?id=.
func readID(w http.ResponseWriter, r *http.Request) (string, error) {
	var req idRequest
	if err := readJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.ID == "" {
		req.ID = r.URL.Query().Get("id")
	}
	return req.ID, nil
}

func parseIntDefault(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func refreshRequested(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	return v == "1" || v == "true"
}
