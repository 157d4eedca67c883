// Package web serves the dashboard JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"homedash/internal/auth"
	"homedash/internal/dashboard"
	"homedash/internal/ics"
	appLog "homedash/internal/log"
	"homedash/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Deps are the services behind the API.
type Deps struct {
	Store     *store.Store
	Calendars *ics.SourceCache
	Dashboard *dashboard.Service
	Auth      *auth.Directory
	// FeedName is the calendar name of the exported ICS feed.
	FeedName string
	// Login tunes the per-IP login limiter; zero values use defaults.
	Login LoginLimit
}

// Server routes API requests to the store, the calendar cache and the
// dashboard views.
type Server struct {
	deps   Deps
	logins *loginLimiter
	router chi.Router
}

// NewServer constructs a Server with all routes registered.
func NewServer(deps Deps) *Server {
	if deps.FeedName == "" {
		deps.FeedName = "Home Dashboard"
	}
	s := &Server{
		deps:   deps,
		logins: newLoginLimiter(deps.Login),
		router: chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(rememberPeer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.sessionMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(noStore)

		r.HandleFunc("/login", methods(endpoint{
			http.MethodPost: s.handleLogin,
		}))
		r.HandleFunc("/events", methods(endpoint{
			http.MethodGet:    s.handleListEvents,
			http.MethodPost:   requireSession(s.handleCreateEvent),
			http.MethodPatch:  requireSession(s.handleUpdateEvent),
			http.MethodDelete: requireSession(s.handleDeleteEvent),
		}))
		r.HandleFunc("/todos", methods(endpoint{
			http.MethodGet:    s.handleListTodos,
			http.MethodPost:   requireSession(s.handleCreateTodo),
			http.MethodPatch:  requireSession(s.handleUpdateTodo),
			http.MethodDelete: requireSession(s.handleDeleteTodo),
		}))
		r.HandleFunc("/calendar", methods(endpoint{
			http.MethodGet: s.handleCalendar,
		}))
		r.HandleFunc("/calendar-settings", methods(endpoint{
			http.MethodGet:   s.handleGetSettings,
			http.MethodPatch: s.handleUpdateSettings,
		}))
		r.HandleFunc("/calendar.ics", methods(endpoint{
			http.MethodGet: s.handleFeed,
		}))
		r.Route("/views", func(r chi.Router) {
			r.HandleFunc("/month", methods(endpoint{http.MethodGet: s.handleMonthView}))
			r.HandleFunc("/year", methods(endpoint{http.MethodGet: s.handleYearView}))
			r.HandleFunc("/week", methods(endpoint{http.MethodGet: s.handleWeekView}))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// endpoint maps HTTP methods to handlers for one path.
type endpoint map[string]http.HandlerFunc

var methodOrder = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete}

// methods dispatches on r.Method and answers anything else with 405 and an
// Allow header listing the supported methods.
func methods(handlers endpoint) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for _, m := range methodOrder {
		if _, ok := handlers[m]; ok {
			allowed = append(allowed, m)
		}
	}
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		w.Header().Set("Allow", allow)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	}
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one line per request through the application logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		kv := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			appLog.Warn("http request", kv...)
			return
		}
		appLog.Debug("http request", kv...)
	})
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(appLog.Logger().Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}
