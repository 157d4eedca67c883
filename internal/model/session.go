package model

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Session is the payload carried inside a signed bearer token.
// Exp is Unix milliseconds.
type Session struct {
	User string `json:"user"`
	Role Role   `json:"role"`
	Exp  int64  `json:"exp,omitempty"`
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Expired reports whether the session carries an expiry that lies before now.
func (s Session) Expired(now time.Time) bool {
	return s.Exp != 0 && now.UnixMilli() > s.Exp
}

// Expires returns Exp as a time.Time (zero if unset).
func (s Session) Expires() time.Time {
	if s.Exp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.Exp)
}
