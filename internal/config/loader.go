package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment variable names. Every key may also be set in the optional YAML
// file using the lower-case name without the prefix (e.g. http_port).
const (
	EnvConfigFile           = "OFFICEHOURS_CONFIG_FILE"
	EnvHTTPPort             = "OFFICEHOURS_HTTP_PORT"
	EnvSQLiteDSN            = "OFFICEHOURS_SQLITE_DSN"
	EnvSessionTTL           = "OFFICEHOURS_SESSION_TTL"
	EnvTimezone             = "OFFICEHOURS_TIMEZONE"
	EnvDefaultLocation      = "OFFICEHOURS_DEFAULT_LOCATION"
	EnvHorizonMonths        = "OFFICEHOURS_HORIZON_MONTHS"
	EnvMinDuration          = "OFFICEHOURS_MIN_DURATION"
	EnvSuppressExceptions   = "OFFICEHOURS_SUPPRESS_EXCEPTIONS"
	EnvSessionPurgeSchedule = "OFFICEHOURS_SESSION_PURGE_SCHEDULE"
	EnvBootstrapInstructor  = "OFFICEHOURS_BOOTSTRAP_INSTRUCTOR"
	EnvCalendarName         = "OFFICEHOURS_CALENDAR_NAME"
	EnvLogLevel             = "OFFICEHOURS_LOG_LEVEL"
)

// Config captures environment driven configuration values for the office hours service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	SessionTTL      time.Duration
	Timezone        string
	Location        *time.Location
	DefaultLocation string
	HorizonMonths   int
	MinDuration     time.Duration
	// SuppressExceptions drops cancelled occurrences from upcoming listings.
	SuppressExceptions   bool
	SessionPurgeSchedule string
	// BootstrapInstructor, when set, is authorized as an instructor at startup.
	BootstrapInstructor string
	CalendarName        string
	LogLevel            slog.Level
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPPort:             8080,
		SQLiteDSN:            "file:easyoh.db?_pragma=foreign_keys(1)",
		SessionTTL:           24 * time.Hour,
		Timezone:             "UTC",
		Location:             time.UTC,
		DefaultLocation:      "FGH 201",
		HorizonMonths:        2,
		MinDuration:          time.Hour,
		SuppressExceptions:   true,
		SessionPurgeSchedule: "@every 1h",
		CalendarName:         "Office Hours",
		LogLevel:             slog.LevelInfo,
	}
}

// fileValues mirrors the YAML layout. Scalars are read as text and parsed
// together with the environment values.
type fileValues struct {
	HTTPPort             string `yaml:"http_port"`
	SQLiteDSN            string `yaml:"sqlite_dsn"`
	SessionTTL           string `yaml:"session_ttl"`
	Timezone             string `yaml:"timezone"`
	DefaultLocation      string `yaml:"default_location"`
	HorizonMonths        string `yaml:"horizon_months"`
	MinDuration          string `yaml:"min_duration"`
	SuppressExceptions   string `yaml:"suppress_exceptions"`
	SessionPurgeSchedule string `yaml:"session_purge_schedule"`
	BootstrapInstructor  string `yaml:"bootstrap_instructor"`
	CalendarName         string `yaml:"calendar_name"`
	LogLevel             string `yaml:"log_level"`
}

func (f fileValues) lookup() map[string]string {
	return map[string]string{
		EnvHTTPPort:             f.HTTPPort,
		EnvSQLiteDSN:            f.SQLiteDSN,
		EnvSessionTTL:           f.SessionTTL,
		EnvTimezone:             f.Timezone,
		EnvDefaultLocation:      f.DefaultLocation,
		EnvHorizonMonths:        f.HorizonMonths,
		EnvMinDuration:          f.MinDuration,
		EnvSuppressExceptions:   f.SuppressExceptions,
		EnvSessionPurgeSchedule: f.SessionPurgeSchedule,
		EnvBootstrapInstructor:  f.BootstrapInstructor,
		EnvCalendarName:         f.CalendarName,
		EnvLogLevel:             f.LogLevel,
	}
}

// Load parses configuration values from the current process environment,
// layered over the YAML file named by OFFICEHOURS_CONFIG_FILE when set.
//
// Defaults apply to unset keys. Every invalid value is reported in a single
// error naming the offending keys.
func Load() (Config, error) {
	return LoadWith(os.Getenv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(getenv func(string) string) (Config, error) {
	file := map[string]string{}
	if path := strings.TrimSpace(getenv(EnvConfigFile)); path != "" {
		values, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file = values.lookup()
	}

	value := func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(file[key])
	}

	cfg := Default()
	invalid := make([]string, 0, 2)

	if portValue := value(EnvHTTPPort); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, EnvHTTPPort)
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := value(EnvSQLiteDSN); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := value(EnvSessionTTL); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, EnvSessionTTL)
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := value(EnvTimezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, EnvTimezone)
		} else {
			cfg.Timezone = tz
			cfg.Location = loc
		}
	}

	if location := value(EnvDefaultLocation); location != "" {
		cfg.DefaultLocation = location
	}

	if monthsValue := value(EnvHorizonMonths); monthsValue != "" {
		months, err := strconv.Atoi(monthsValue)
		if err != nil || months <= 0 {
			invalid = append(invalid, EnvHorizonMonths)
		} else {
			cfg.HorizonMonths = months
		}
	}

	if minValue := value(EnvMinDuration); minValue != "" {
		minimum, err := time.ParseDuration(minValue)
		if err != nil || minimum <= 0 {
			invalid = append(invalid, EnvMinDuration)
		} else {
			cfg.MinDuration = minimum
		}
	}

	if suppressValue := value(EnvSuppressExceptions); suppressValue != "" {
		suppress, err := strconv.ParseBool(suppressValue)
		if err != nil {
			invalid = append(invalid, EnvSuppressExceptions)
		} else {
			cfg.SuppressExceptions = suppress
		}
	}

	if schedule := value(EnvSessionPurgeSchedule); schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			invalid = append(invalid, EnvSessionPurgeSchedule)
		} else {
			cfg.SessionPurgeSchedule = schedule
		}
	}

	if email := value(EnvBootstrapInstructor); email != "" {
		if !strings.Contains(email, "@") {
			invalid = append(invalid, EnvBootstrapInstructor)
		} else {
			cfg.BootstrapInstructor = email
		}
	}

	if name := value(EnvCalendarName); name != "" {
		cfg.CalendarName = name
	}

	if levelValue := value(EnvLogLevel); levelValue != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, EnvLogLevel)
		} else {
			cfg.LogLevel = level
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func readFile(path string) (fileValues, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileValues{}, fmt.Errorf("config file %s does not exist", path)
		}
		return fileValues{}, fmt.Errorf("read config file: %w", err)
	}
	var values fileValues
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fileValues{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

