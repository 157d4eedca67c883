package web

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"homedash/internal/apperr"
	appLog "homedash/internal/log"
	"homedash/internal/model"
)

type sessionKey struct{}

// sessionFrom returns the verified session of the request, if any.
func sessionFrom(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(model.Session)
	return s, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// sessionMiddleware attaches the session of a valid bearer token. Invalid
// tokens are treated as anonymous.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" && s.deps.Auth != nil {
			if session, ok := s.deps.Auth.Verify(token); ok {
				r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, *session))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		next(w, r)
	}
}

// LoginLimit configures the per-IP login rate limiter.
type LoginLimit struct {
	// RPS is the sustained login attempts per second per IP.
	RPS float64
	// Burst is the attempts allowed at once.
	Burst int
}

func (l LoginLimit) withDefaults() (float64, int) {
	rps, burst := l.RPS, l.Burst
	if rps <= 0 {
		rps = 0.5
	}
	if burst <= 0 {
		burst = 5
	}
	return rps, burst
}

// Buckets untouched for limiterIdle are dropped once the table reaches
// limiterMaxEntries.
const (
	limiterIdle       = 15 * time.Minute
	limiterMaxEntries = 10000
)

type loginBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// loginLimiter keeps one token bucket per client address.
type loginLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[string]*loginBucket
	now     func() time.Time
}

func newLoginLimiter(l LoginLimit) *loginLimiter {
	rps, burst := l.withDefaults()
	return &loginLimiter{
		every:   rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*loginBucket),
		now:     time.Now,
	}
}

// allow takes one token from addr's bucket.
func (l *loginLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[addr]
	if !ok {
		if len(l.buckets) >= limiterMaxEntries {
			l.sweep(now)
		}
		b = &loginBucket{tokens: rate.NewLimiter(l.every, l.burst)}
		l.buckets[addr] = b
	}
	b.lastSeen = now
	return b.tokens.AllowN(now, 1)
}

func (l *loginLimiter) sweep(now time.Time) {
	for addr, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdle {
			delete(l.buckets, addr)
		}
	}
	if len(l.buckets) >= limiterMaxEntries {
		appLog.Warn("login limiter table full, resetting", "entries", len(l.buckets))
		clear(l.buckets)
	}
}

type peerKey struct{}

// rememberPeer stores the socket address before middleware.RealIP
// replaces RemoteAddr with client-supplied forwarding headers.
func rememberPeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// peerIP is the host of the connection's socket address.
func peerIP(r *http.Request) string {
	addr, ok := r.Context().Value(peerKey{}).(string)
	if !ok {
		addr = r.RemoteAddr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := peerIP(r)
	if !s.logins.allow(ip) {
		appLog.Warn("login rate limited", "ip", ip)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Too many login attempts"})
		return
	}

	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err, "Invalid JSON")
		return
	}

	res, err := s.deps.Auth.Login(req.Username, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			appLog.Info("login failed", "user", req.Username, "ip", ip)
		}
		writeError(w, r, err, "Login failed")
		return
	}
	appLog.Info("login", "user", res.User, "role", res.Role)
	writeJSON(w, http.StatusOK, res)
}
