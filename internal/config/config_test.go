package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/logging"
)

func lookupFrom(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

type warnings []string

func (w *warnings) logger() telemetry.Logger {
	return telemetry.LoggerFunc(func(format string, args ...any) {
		*w = append(*w, fmt.Sprintf(format, args...))
	})
}

func TestParseEmptyEnvironmentGivesDefaults(t *testing.T) {
	var warned warnings
	cfg := Parse(lookupFrom(nil), warned.logger())
	def := Default()
	if cfg.Addr != def.Addr || cfg.TickRate != 60 || cfg.Rooms != def.Rooms || !cfg.AllowGuests {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(warned) != 0 {
		t.Fatalf("unexpected warnings %v", warned)
	}
}

func TestParseReadsEverySetting(t *testing.T) {
	cfg := Parse(lookupFrom(map[string]string{
		"ADDR":                  ":9000",
		"TICK_RATE":             "30",
		"MAX_ROOM_MEMBERS":      "4",
		"COUNTDOWN_STEPS":       "0",
		"GRACE_PERIOD":          "15s",
		"EMPTY_ROOM_TIMEOUT":    "1m",
		"INACTIVE_ROOM_TIMEOUT": "10m",
		"CLEANUP_INTERVAL":      "5s",
		"LAYOUT_FILE":           "arena.json",
		"LOG_SINKS":             "console, json",
		"LOG_JSON_PATH":         "/tmp/events.jsonl",
		"LOG_MIN_SEVERITY":      "debug",
		"IDENTITY_URL":          "http://auth",
		"ALLOW_GUESTS":          "false",
		"STATS_URL":             "http://stats",
		"ENABLE_PPROF":          "true",
	}), nil)

	if cfg.Addr != ":9000" || cfg.TickRate != 30 || cfg.LayoutFile != "arena.json" {
		t.Fatalf("unexpected server settings %+v", cfg)
	}
	if cfg.Rooms.MaxMembers != 4 || cfg.Rooms.CountdownSteps != 0 || cfg.Rooms.GracePeriod != 15*time.Second {
		t.Fatalf("unexpected room settings %+v", cfg.Rooms)
	}
	if cfg.Rooms.EmptyTimeout != time.Minute || cfg.Rooms.InactiveTimeout != 10*time.Minute || cfg.Rooms.CleanupInterval != 5*time.Second {
		t.Fatalf("unexpected room timeouts %+v", cfg.Rooms)
	}
	if strings.Join(cfg.Logging.EnabledSinks, ",") != "console,json" || cfg.Logging.JSON.FilePath != "/tmp/events.jsonl" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
	if cfg.Logging.MinimumSeverity != logging.SeverityDebug {
		t.Fatalf("expected debug severity")
	}
	if cfg.IdentityURL != "http://auth" || cfg.AllowGuests || cfg.StatsURL != "http://stats" || !cfg.Pprof {
		t.Fatalf("unexpected collaborators %+v", cfg)
	}
}

func TestParseWarnsAndKeepsDefaultsOnBadValues(t *testing.T) {
	var warned warnings
	cfg := Parse(lookupFrom(map[string]string{
		"TICK_RATE":        "fast",
		"MAX_ROOM_MEMBERS": "1",
		"GRACE_PERIOD":     "-3s",
		"ENABLE_PPROF":     "maybe",
		"LOG_MIN_SEVERITY": "loud",
	}), warned.logger())

	def := Default()
	if cfg.TickRate != def.TickRate || cfg.Rooms.MaxMembers != def.Rooms.MaxMembers || cfg.Rooms.GracePeriod != def.Rooms.GracePeriod {
		t.Fatalf("bad values should fall back, got %+v", cfg)
	}
	if cfg.Pprof || cfg.Logging.MinimumSeverity != def.Logging.MinimumSeverity {
		t.Fatalf("bad values should fall back, got %+v", cfg)
	}
	if len(warned) != 5 {
		t.Fatalf("expected five warnings, got %v", warned)
	}
	if !strings.Contains(warned[0], "TICK_RATE") {
		t.Fatalf("warning should name the key: %q", warned[0])
	}
}

func TestGuestsStayOnWithoutIdentityService(t *testing.T) {
	var warned warnings
	cfg := Parse(lookupFrom(map[string]string{"ALLOW_GUESTS": "false"}), warned.logger())
	if !cfg.AllowGuests || len(warned) != 1 {
		t.Fatalf("expected guests re-enabled with a warning, got %v %v", cfg.AllowGuests, warned)
	}
}

func TestLoadLayersEnvironmentOverDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("ADDR=:7000\nSTATS_URL=http://from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("STATS_URL", "http://from-env")

	cfg, err := Load(nil, path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Fatalf("expected the file value, got %q", cfg.Addr)
	}
	if cfg.StatsURL != "http://from-env" {
		t.Fatalf("expected the environment to win, got %q", cfg.StatsURL)
	}
}
