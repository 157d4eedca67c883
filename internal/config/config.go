package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// NOTE: the YAML file is the primary source of configuration. Environment
// variables (including those loaded from .env by cmd/homedash) override
// individual fields afterwards, so secrets never have to live in the file.

const (
	DefaultSourceTTL = 24 * time.Hour
	DefaultTokenTTL  = 12 * time.Hour
	DefaultProxyURL  = "https://api.allorigins.win/raw?url="

	// ProxyDisabled turns off the relay fallback when used as proxy_url.
	ProxyDisabled = "off"
)

// SourceConfig describes one remote ICS subscription.
type SourceConfig struct {
	// ID doubles as the event source tag (school, hockey, letter, qgenda, ...).
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS endpoint. An empty URL keeps the source known but unconfigured.
	URL string `yaml:"url" json:"url"`
	// TTL is the cache freshness window; zero means DefaultSourceTTL.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// AuthConfig holds the credential directory and token signing secret.
type AuthConfig struct {
	Secret    string `yaml:"secret" json:"-" env:"AUTH_SECRET"`
	AdminUser string `yaml:"admin_user" json:"admin_user" env:"ADMIN_USER"`
	AdminPass string `yaml:"admin_pass" json:"-" env:"ADMIN_PASS"`
	// FamilyUsers is "name:password,name2:password2". Passwords may be argon2id hashes.
	FamilyUsers string        `yaml:"family_users" json:"-" env:"FAMILY_USERS"`
	TokenTTL    time.Duration `yaml:"token_ttl" json:"token_ttl" env:"HOMEDASH_TOKEN_TTL"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" json:"driver" env:"HOMEDASH_DB_DRIVER"`
	DSN    string `yaml:"dsn" json:"-" env:"DATABASE_URL"`
}

// CacheConfig selects where fetched calendar payloads are persisted.
type CacheConfig struct {
	// Backend is "file", "bolt" or "redis".
	Backend  string `yaml:"backend" json:"backend" env:"HOMEDASH_CACHE_BACKEND"`
	Dir      string `yaml:"dir" json:"dir" env:"HOMEDASH_CACHE_DIR"`
	BoltPath string `yaml:"bolt_path" json:"bolt_path" env:"HOMEDASH_CACHE_BOLT_PATH"`
	RedisURL string `yaml:"redis_url" json:"-" env:"HOMEDASH_REDIS_URL"`
	Prefix   string `yaml:"prefix" json:"prefix" env:"HOMEDASH_CACHE_PREFIX"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" env:"HOMEDASH_LISTEN"`

	// Timezone is the IANA zone used to interpret floating ICS times and
	// user-entered dates (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone" env:"HOMEDASH_TIMEZONE"`

	// RefreshCron is the cron schedule for warming the calendar cache.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"HOMEDASH_REFRESH"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"HOMEDASH_LOG_LEVEL"`

	// ProxyURL is the CORS relay prefix; the target URL is query-escaped
	// and appended. "off" disables the fallback.
	ProxyURL string `yaml:"proxy_url" json:"proxy_url" env:"HOMEDASH_PROXY_URL"`

	// Calendars lists extra calendar names accepted for custom events on
	// top of family, school, meals and the family user names.
	Calendars []string `yaml:"calendars" json:"calendars" env:"HOMEDASH_CALENDARS" envSeparator:","`

	// WeekMaxEvents caps entries per day in the school week strip.
	WeekMaxEvents int `yaml:"week_max_events" json:"week_max_events"`

	Sources  []SourceConfig `yaml:"sources" json:"sources"`
	Auth     AuthConfig     `yaml:"auth" json:"auth"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "America/New_York",
		RefreshCron:   "*/30 * * * *",
		LogLevel:      "info",
		ProxyURL:      DefaultProxyURL,
		Calendars:     []string{},
		WeekMaxEvents: 4,
		Sources: []SourceConfig{
			{ID: "school", Name: "School events", TTL: DefaultSourceTTL},
			{ID: "letter", Name: "Letter days", TTL: DefaultSourceTTL},
			{ID: "hockey", Name: "Hockey", TTL: DefaultSourceTTL},
			{ID: "qgenda", Name: "On-call roster", TTL: DefaultSourceTTL},
		},
		Auth: AuthConfig{
			AdminUser: "admin",
			TokenTTL:  DefaultTokenTTL,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "./var/homedash.db",
		},
		Cache: CacheConfig{
			Backend:  "file",
			Dir:      "./var/calendar-cache",
			BoltPath: "./var/calendar-cache.db",
			Prefix:   "homedash:",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.ProxyURL == "" {
		c.ProxyURL = def.ProxyURL
	}
	if c.Calendars == nil {
		c.Calendars = []string{}
	}
	if c.WeekMaxEvents <= 0 {
		c.WeekMaxEvents = def.WeekMaxEvents
	}
	if c.Sources == nil {
		c.Sources = def.Sources
	}
	for i := range c.Sources {
		c.Sources[i].ID = strings.ToLower(strings.TrimSpace(c.Sources[i].ID))
		if c.Sources[i].TTL <= 0 {
			c.Sources[i].TTL = DefaultSourceTTL
		}
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	case "pgx", "postgresql":
		c.Database.Driver = "postgres"
	default:
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = def.Database.DSN
	}
	switch c.Cache.Backend {
	case "file", "bolt", "redis":
	default:
		c.Cache.Backend = def.Cache.Backend
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = def.Cache.Dir
	}
	if c.Cache.BoltPath == "" {
		c.Cache.BoltPath = def.Cache.BoltPath
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = def.Cache.Prefix
	}
}

// Validate reports configuration mistakes that Normalize cannot repair.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" {
			return errors.New("config: source with empty id")
		}
		if s.ID == "custom" || s.ID == "generated" {
			return fmt.Errorf("config: source id %q is reserved", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return errors.New("config: cache backend redis requires redis_url")
	}
	return nil
}

// Source returns the configured source with the given id.
func (c *Config) Source(id string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Proxy returns the relay prefix, or "" when the fallback is disabled.
func (c *Config) Proxy() string {
	if strings.EqualFold(c.ProxyURL, ProxyDisabled) {
		return ""
	}
	return c.ProxyURL
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// Load loads configuration from the given YAML path and applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and used.
//   - Otherwise the YAML is unmarshalled into Config.
//   - Environment overrides are applied, then defaults normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".homedash-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
