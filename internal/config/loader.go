package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures the settings of the calendar service.
type Config struct {
	HTTPPort  int
	LogLevel  string
	LogFormat string

	Storage   string
	SQLiteDSN string

	// Timezone names the zone calendar dates are evaluated in; Location is
	// the loaded zone.
	Timezone string
	Location *time.Location

	SplitFutureEdits bool
	SearchHorizon    time.Duration
	CacheTTL         time.Duration
	CacheMaxEntries  int
	MaintenanceCron  string

	AuthUser         string
	AuthPasswordHash string
}

// AuthEnabled reports whether basic auth credentials are configured.
func (c Config) AuthEnabled() bool {
	return c.AuthUser != "" && c.AuthPasswordHash != ""
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPPort:        8080,
		LogLevel:        "info",
		LogFormat:       "json",
		Storage:         StorageSQLite,
		SQLiteDSN:       "file:calendar.db?_pragma=foreign_keys(1)",
		Timezone:        "Local",
		Location:        time.Local,
		SearchHorizon:   365 * 24 * time.Hour,
		CacheTTL:        5 * time.Minute,
		CacheMaxEntries: 256,
		MaintenanceCron: "*/10 * * * *",
	}
}

// fileConfig mirrors Config for the optional YAML file. Absent keys keep
// their defaults.
type fileConfig struct {
	HTTPPort         *int    `yaml:"http_port"`
	LogLevel         *string `yaml:"log_level"`
	LogFormat        *string `yaml:"log_format"`
	Storage          *string `yaml:"storage"`
	SQLiteDSN        *string `yaml:"sqlite_dsn"`
	Timezone         *string `yaml:"timezone"`
	SplitFutureEdits *bool   `yaml:"split_future_edits"`
	SearchHorizon    *string `yaml:"search_horizon"`
	CacheTTL         *string `yaml:"cache_ttl"`
	CacheMaxEntries  *int    `yaml:"cache_max_entries"`
	MaintenanceCron  *string `yaml:"maintenance_cron"`
	Auth             *struct {
		Username     string `yaml:"username"`
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"auth"`
}

// Load resolves the configuration from, in increasing precedence, built in
// defaults, the YAML file named by CALENDAR_CONFIG_FILE, the dotenv file named
// by CALENDAR_ENV_FILE (default .env) and the process environment. Missing
// files are ignored; every invalid value is reported in one error.
func Load() (Config, error) {
	env, err := newEnvironment(os.Getenv("CALENDAR_ENV_FILE"))
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	var invalid []string

	if path := env.get("CALENDAR_CONFIG_FILE"); path != "" {
		fileInvalid, err := applyFile(&cfg, path)
		if err != nil {
			return Config{}, err
		}
		invalid = append(invalid, fileInvalid...)
	}

	if value := env.get("CALENDAR_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "CALENDAR_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if value := env.get("CALENDAR_LOG_LEVEL"); value != "" {
		cfg.LogLevel = value
	}
	if value := env.get("CALENDAR_LOG_FORMAT"); value != "" {
		cfg.LogFormat = value
	}
	if value := env.get("CALENDAR_STORAGE"); value != "" {
		cfg.Storage = strings.ToLower(value)
	}
	if value := env.get("CALENDAR_SQLITE_DSN"); value != "" {
		cfg.SQLiteDSN = value
	}
	if value := env.get("CALENDAR_TIMEZONE"); value != "" {
		cfg.Timezone = value
	}
	if value := env.get("CALENDAR_SPLIT_FUTURE_EDITS"); value != "" {
		split, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, "CALENDAR_SPLIT_FUTURE_EDITS")
		} else {
			cfg.SplitFutureEdits = split
		}
	}
	if value := env.get("CALENDAR_SEARCH_HORIZON"); value != "" {
		if !parsePositiveDuration(value, &cfg.SearchHorizon) {
			invalid = append(invalid, "CALENDAR_SEARCH_HORIZON")
		}
	}
	if value := env.get("CALENDAR_CACHE_TTL"); value != "" {
		if !parsePositiveDuration(value, &cfg.CacheTTL) {
			invalid = append(invalid, "CALENDAR_CACHE_TTL")
		}
	}
	if value := env.get("CALENDAR_CACHE_MAX_ENTRIES"); value != "" {
		entries, err := strconv.Atoi(value)
		if err != nil || entries <= 0 {
			invalid = append(invalid, "CALENDAR_CACHE_MAX_ENTRIES")
		} else {
			cfg.CacheMaxEntries = entries
		}
	}
	if value := env.get("CALENDAR_MAINTENANCE_CRON"); value != "" {
		cfg.MaintenanceCron = value
	}
	if value := env.get("CALENDAR_AUTH_USER"); value != "" {
		cfg.AuthUser = value
	}
	if value := env.get("CALENDAR_AUTH_PASSWORD_HASH"); value != "" {
		cfg.AuthPasswordHash = value
	}

	invalid = append(invalid, cfg.validate()...)
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(dedupe(invalid), ", "))
	}
	return cfg, nil
}

// validate checks cross-field constraints and loads the time zone.
func (c *Config) validate() []string {
	var invalid []string

	switch c.Storage {
	case StorageSQLite:
		if strings.TrimSpace(c.SQLiteDSN) == "" {
			invalid = append(invalid, "CALENDAR_SQLITE_DSN")
		}
	case StorageMemory:
	default:
		invalid = append(invalid, "CALENDAR_STORAGE")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid = append(invalid, "CALENDAR_LOG_LEVEL")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		invalid = append(invalid, "CALENDAR_LOG_FORMAT")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		invalid = append(invalid, "CALENDAR_TIMEZONE")
	} else {
		c.Location = loc
	}

	if c.MaintenanceCron != "" {
		if _, err := cron.ParseStandard(c.MaintenanceCron); err != nil {
			invalid = append(invalid, "CALENDAR_MAINTENANCE_CRON")
		}
	}

	if (c.AuthUser == "") != (c.AuthPasswordHash == "") {
		invalid = append(invalid, "CALENDAR_AUTH_USER", "CALENDAR_AUTH_PASSWORD_HASH")
	}
	return invalid
}

// applyFile layers the YAML file at path over cfg. Invalid durations are
// reported under their environment variable names.
func applyFile(cfg *Config, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	var invalid []string
	if file.HTTPPort != nil {
		cfg.HTTPPort = *file.HTTPPort
		if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
			invalid = append(invalid, "CALENDAR_HTTP_PORT")
		}
	}
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.LogFormat, file.LogFormat)
	setString(&cfg.Storage, file.Storage)
	setString(&cfg.SQLiteDSN, file.SQLiteDSN)
	setString(&cfg.Timezone, file.Timezone)
	setString(&cfg.MaintenanceCron, file.MaintenanceCron)
	if file.SplitFutureEdits != nil {
		cfg.SplitFutureEdits = *file.SplitFutureEdits
	}
	if file.SearchHorizon != nil && !parsePositiveDuration(*file.SearchHorizon, &cfg.SearchHorizon) {
		invalid = append(invalid, "CALENDAR_SEARCH_HORIZON")
	}
	if file.CacheTTL != nil && !parsePositiveDuration(*file.CacheTTL, &cfg.CacheTTL) {
		invalid = append(invalid, "CALENDAR_CACHE_TTL")
	}
	if file.CacheMaxEntries != nil {
		cfg.CacheMaxEntries = *file.CacheMaxEntries
		if cfg.CacheMaxEntries <= 0 {
			invalid = append(invalid, "CALENDAR_CACHE_MAX_ENTRIES")
		}
	}
	if file.Auth != nil {
		cfg.AuthUser = strings.TrimSpace(file.Auth.Username)
		cfg.AuthPasswordHash = strings.TrimSpace(file.Auth.PasswordHash)
	}
	return invalid, nil
}

// environment resolves variables from the process first and the dotenv file
// second. The dotenv file never modifies the process environment.
type environment struct {
	dotenv map[string]string
}

func newEnvironment(path string) (environment, error) {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return environment{}, nil
		}
		return environment{}, fmt.Errorf("read env file %s: %w", path, err)
	}
	return environment{dotenv: values}, nil
}

func (e environment) get(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(e.dotenv[key])
}

func setString(dst *string, value *string) {
	if value != nil && strings.TrimSpace(*value) != "" {
		*dst = strings.TrimSpace(*value)
	}
}

func parsePositiveDuration(value string, dst *time.Duration) bool {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return false
	}
	*dst = d
	return true
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
