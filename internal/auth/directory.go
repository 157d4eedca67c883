package auth

import (
	"slices"
	"strings"
	"time"

	"homedash/internal/apperr"
	"homedash/internal/model"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 12 * time.Hour

// NormalizeUser trims and lowercases a user name.
func NormalizeUser(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// ParseUserList parses "name:password,name2:password2". Passwords may
// contain colons. Entries missing either part are skipped. An argon2id
// hash keeps the commas of its parameter block ("m=19456,t=2,p=1").
func ParseUserList(v string) map[string]string {
	users := make(map[string]string)
	last := ""
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if last != "" && !strings.Contains(entry, ":") && strings.HasPrefix(users[last], argon2Prefix) {
			users[last] += "," + entry
			continue
		}
		last = ""
		name, pass, _ := strings.Cut(entry, ":")
		name = NormalizeUser(name)
		pass = strings.TrimSpace(pass)
		if name == "" || pass == "" {
			continue
		}
		users[name] = pass
		last = name
	}
	return users
}

// Options configures a Directory.
type Options struct {
	AdminUser   string
	AdminPass   string
	FamilyUsers string
	Secret      string
	TokenTTL    time.Duration
}

// LoginResult is returned on successful login. Expires is Unix milliseconds.
type LoginResult struct {
	Token   string     `json:"token"`
	User    string     `json:"user"`
	Role    model.Role `json:"role"`
	Expires int64      `json:"expires"`
}

// Directory holds the admin and family credentials and the signing secret.
type Directory struct {
	adminUser string
	adminPass string
	family    map[string]string
	secret    string
	ttl       time.Duration
	now       func() time.Time
}

func NewDirectory(opts Options) *Directory {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Directory{
		adminUser: NormalizeUser(opts.AdminUser),
		adminPass: opts.AdminPass,
		family:    ParseUserList(opts.FamilyUsers),
		secret:    opts.Secret,
		ttl:       ttl,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now
	return d
}

// Users returns the family user names, sorted.
func (d *Directory) Users() []string {
	names := make([]string, 0, len(d.family))
	for name := range d.family {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HasSecret reports whether tokens can be issued and verified.
func (d *Directory) HasSecret() bool {
	return d.secret != ""
}

// Login checks credentials and issues a token.
func (d *Directory) Login(username, password string) (LoginResult, error) {
	username = NormalizeUser(username)
	if username == "" || password == "" {
		return LoginResult{}, apperr.Validation("Username and password required")
	}

	var role model.Role
	switch {
	case d.adminUser != "" && username == d.adminUser && CheckPassword(password, d.adminPass):
		role = model.RoleAdmin
	case CheckPassword(password, d.family[username]):
		role = model.RoleUser
	default:
		return LoginResult{}, apperr.Unauthorized("Invalid credentials")
	}

	if d.secret == "" {
		return LoginResult{}, apperr.E(apperr.KindInternal, "Server missing AUTH_SECRET", nil)
	}

	expires := d.now().Add(d.ttl).UnixMilli()
	session := model.Session{User: username, Role: role, Exp: expires}
	return LoginResult{
		Token:   CreateToken(session, d.secret),
		User:    username,
		Role:    role,
		Expires: expires,
	}, nil
}

// Verify validates a bearer token with the directory's secret.
func (d *Directory) Verify(token string) (*model.Session, bool) {
	return VerifyTokenAt(token, d.secret, d.now())
}
