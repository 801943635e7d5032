package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shiftplan/internal/model"
)

// Store drivers.
const (
	StoreDriverFile  = "file"
	StoreDriverRedis = "redis"
)

// StoreConfig selects where shift templates are kept.
type StoreConfig struct {
	// Driver is "file" (default) or "redis".
	Driver string `yaml:"driver" json:"driver"`

	// Path is the YAML settings document used by the file driver.
	Path string `yaml:"path" json:"path"`

	// ReloadCron is a cron-style schedule (e.g. "@every 10s") on which the
	// file driver re-reads Path to pick up external edits. Empty disables it.
	ReloadCron string `yaml:"reload_cron" json:"reload_cron"`

	// RedisURL, RedisKey and RedisChannel configure the redis driver.
	RedisURL     string `yaml:"redis_url" json:"redis_url"`
	RedisKey     string `yaml:"redis_key" json:"redis_key"`
	RedisChannel string `yaml:"redis_channel" json:"redis_channel"`
}

// CalendarEntry describes one calendar of the ICS directory sink.
type CalendarEntry struct {
	ID      string             `yaml:"id" json:"id"`
	Name    string             `yaml:"name" json:"name"`
	Primary bool               `yaml:"primary" json:"primary"`
	Colors  []model.EventColor `yaml:"colors,omitempty" json:"colors,omitempty"`
}

// CalendarConfig configures the calendar sink and its authorization gate.
type CalendarConfig struct {
	// Dir holds one <id>.ics file per calendar.
	Dir string `yaml:"dir" json:"dir"`

	// Authorized is the initial grant state of the gate.
	Authorized bool `yaml:"authorized" json:"authorized"`

	// GrantOnRequest decides how a non-interactive gate answers a request.
	// Omitted means true; read it through Grants.
	GrantOnRequest *bool `yaml:"grant_on_request,omitempty" json:"grant_on_request,omitempty"`

	Calendars []CalendarEntry `yaml:"calendars" json:"calendars"`
}

// Grants reports whether a non-interactive gate grants on request.
func (c CalendarConfig) Grants() bool {
	return c.GrantOnRequest == nil || *c.GrantOnRequest
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web shell.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the web shell.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone shifts are materialized in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// PresetMonths is the number of month presets offered, starting with
	// the current month.
	PresetMonths int `yaml:"preset_months" json:"preset_months"`

	// SingleCalendar ignores the calendar of each template and imports
	// everything into the primary calendar (or the first one listed).
	SingleCalendar bool `yaml:"single_calendar" json:"single_calendar"`

	Store    StoreConfig    `yaml:"store" json:"store"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`

	// BasicAuth, if set with both fields non-empty, protects every
	// endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "Europe/Berlin",
		LogLevel:     "info",
		PresetMonths: 5,
		Store: StoreConfig{
			Driver:       StoreDriverFile,
			Path:         "./var/templates.yaml",
			ReloadCron:   "@every 10s",
			RedisURL:     "redis://127.0.0.1:6379/0",
			RedisKey:     "shiftplan:templates",
			RedisChannel: "shiftplan:templates:changed",
		},
		Calendar: CalendarConfig{
			Dir:            "./var/calendars",
			GrantOnRequest: boolPtr(true),
			Calendars: []CalendarEntry{
				{ID: "shifts", Name: "Shifts", Primary: true},
			},
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
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.PresetMonths <= 0 {
		c.PresetMonths = def.PresetMonths
	}

	switch c.Store.Driver {
	case StoreDriverFile, StoreDriverRedis:
	default:
		c.Store.Driver = StoreDriverFile
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.RedisURL == "" {
		c.Store.RedisURL = def.Store.RedisURL
	}
	if c.Store.RedisKey == "" {
		c.Store.RedisKey = def.Store.RedisKey
	}
	if c.Store.RedisChannel == "" {
		c.Store.RedisChannel = def.Store.RedisChannel
	}

	if c.Calendar.Dir == "" {
		c.Calendar.Dir = def.Calendar.Dir
	}
	if c.Calendar.GrantOnRequest == nil {
		c.Calendar.GrantOnRequest = def.Calendar.GrantOnRequest
	}
	if c.Calendar.Calendars == nil {
		c.Calendar.Calendars = []CalendarEntry{}
	}
}

func boolPtr(v bool) *bool { return &v }

// Location resolves Timezone, falling back to time.Local when the name is
// unknown. The second result reports whether the fallback was used.
func (c *Config) Location() (*time.Location, bool) {
	if c.Timezone == "" {
		return time.Local, true
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, true
	}
	return loc, false
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data next to path in a temp file, syncs it, sets
// 0600 and renames it over path. The parent directory is created (0700).
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shiftplan-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
