// Package config reads server settings from the environment, optionally
// seeded from .env files.
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

	"platform-fighter/server/internal/rooms"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/logging"
)

// Config is the full process configuration.
type Config struct {
	Addr            string
	ClientDir       string
	TickRate        int
	LayoutFile      string
	Rooms           rooms.Settings
	Logging         logging.Config
	IdentityURL     string
	AllowGuests     bool
	StatsURL        string
	StatsBuffer     int
	Pprof           bool
	ShutdownTimeout time.Duration
}

// Default is the configuration with no environment at all.
func Default() Config {
	return Config{
		Addr:            ":8080",
		TickRate:        60,
		Rooms:           rooms.DefaultSettings(),
		Logging:         logging.DefaultConfig(),
		AllowGuests:     true,
		StatsBuffer:     64,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Lookup reads one variable.
type Lookup func(key string) (string, bool)

// Load merges the process environment over the given dotenv files (".env"
// when none are named) and parses the result. Missing files are skipped.
func Load(logger telemetry.Logger, files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	dotenv := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
		for k, v := range values {
			dotenv[k] = v
		}
	}
	return Parse(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, logger), nil
}

// Parse builds a Config from lookup. Invalid values are reported through
// logger and replaced by their defaults.
func Parse(lookup Lookup, logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	r := reader{lookup: lookup, logger: logger}
	cfg := Default()

	cfg.Addr = r.str("ADDR", cfg.Addr)
	cfg.ClientDir = r.str("CLIENT_DIR", cfg.ClientDir)
	cfg.TickRate = r.positive("TICK_RATE", cfg.TickRate)
	cfg.LayoutFile = r.str("LAYOUT_FILE", cfg.LayoutFile)

	cfg.Rooms.MaxMembers = r.atLeast("MAX_ROOM_MEMBERS", cfg.Rooms.MaxMembers, 2)
	cfg.Rooms.CountdownSteps = r.atLeast("COUNTDOWN_STEPS", cfg.Rooms.CountdownSteps, 0)
	cfg.Rooms.GracePeriod = r.duration("GRACE_PERIOD", cfg.Rooms.GracePeriod)
	cfg.Rooms.EmptyTimeout = r.duration("EMPTY_ROOM_TIMEOUT", cfg.Rooms.EmptyTimeout)
	cfg.Rooms.InactiveTimeout = r.duration("INACTIVE_ROOM_TIMEOUT", cfg.Rooms.InactiveTimeout)
	cfg.Rooms.CleanupInterval = r.duration("CLEANUP_INTERVAL", cfg.Rooms.CleanupInterval)

	if sinks := r.list("LOG_SINKS"); len(sinks) > 0 {
		cfg.Logging.EnabledSinks = sinks
	}
	cfg.Logging.JSON.FilePath = r.str("LOG_JSON_PATH", cfg.Logging.JSON.FilePath)
	if raw, ok := r.raw("LOG_MIN_SEVERITY"); ok {
		if sev, err := logging.ParseSeverity(raw); err == nil {
			cfg.Logging.MinimumSeverity = sev
		} else {
			r.invalid("LOG_MIN_SEVERITY", raw, err)
		}
	}

	cfg.IdentityURL = r.str("IDENTITY_URL", cfg.IdentityURL)
	cfg.AllowGuests = r.boolean("ALLOW_GUESTS", cfg.AllowGuests)
	cfg.StatsURL = r.str("STATS_URL", cfg.StatsURL)
	cfg.StatsBuffer = r.positive("STATS_BUFFER", cfg.StatsBuffer)
	cfg.Pprof = r.boolean("ENABLE_PPROF", cfg.Pprof)
	cfg.ShutdownTimeout = r.duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	if cfg.IdentityURL == "" && !cfg.AllowGuests {
		logger.Printf("ALLOW_GUESTS=false without IDENTITY_URL would refuse everyone; allowing guests")
		cfg.AllowGuests = true
	}
	return cfg
}

type reader struct {
	lookup Lookup
	logger telemetry.Logger
}

func (r reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r reader) invalid(key, raw string, err error) {
	r.logger.Printf("invalid %s=%q: %v", key, raw, err)
}

func (r reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r reader) positive(key string, def int) int {
	return r.atLeast(key, def, 1)
}

func (r reader) atLeast(key string, def, floor int) int {
	raw, ok := r.raw(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err == nil && v < floor {
		err = fmt.Errorf("must be at least %d", floor)
	}
	if err != nil {
		r.invalid(key, raw, err)
		return def
	}
	return v
}

func (r reader) duration(key string, def time.Duration) time.Duration {
	raw, ok := r.raw(key)
	if !ok {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err == nil && v <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		r.invalid(key, raw, err)
		return def
	}
	return v
}

func (r reader) boolean(key string, def bool) bool {
	raw, ok := r.raw(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.invalid(key, raw, err)
		return def
	}
	return v
}

func (r reader) list(key string) []string {
	raw, ok := r.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
