package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_MatchesDecisionConstants(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Routing.ClearWinnerMargin != 20 || cfg.Routing.TopCandidates != 3 {
		t.Errorf("routing defaults = %+v", cfg.Routing)
	}
	if cfg.OracleTimeout() != 4*time.Second {
		t.Errorf("oracle timeout = %s, want 4s", cfg.OracleTimeout())
	}
	if cfg.Engagement.WarmupMessages != 7 || cfg.Engagement.BufferSize != 10 {
		t.Errorf("engagement defaults = %+v", cfg.Engagement)
	}
	if cfg.RateLimit() != 2*time.Minute || cfg.Reengage.RateLimitMessages != 10 {
		t.Errorf("rate limit defaults = %s/%d", cfg.RateLimit(), cfg.Reengage.RateLimitMessages)
	}
	if cfg.Reengage.MeasureAfterMessages != 5 || cfg.Reengage.SuccessDelta != 0.15 {
		t.Errorf("measurement defaults = %+v", cfg.Reengage)
	}
	if cfg.Reengage.StatsDriver != StatsDriverMemory {
		t.Errorf("stats driver = %q, want memory", cfg.Reengage.StatsDriver)
	}
	if cfg.IdleTimeout() != time.Hour {
		t.Errorf("idle timeout = %s", cfg.IdleTimeout())
	}
	if got := cfg.GhostDelays(); len(got) != 3 || got[0] != time.Minute || got[2] != 2*time.Minute {
		t.Errorf("ghost delays = %v", got)
	}
	if cfg.Ghost.MaxMessages != 3 || cfg.GhostMinGap() != 30*time.Second {
		t.Errorf("ghost defaults = %+v", cfg.Ghost)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_PathsExpandHome(t *testing.T) {
	cfg := DefaultConfig()
	if strings.HasPrefix(cfg.DataPath(), "~") {
		t.Errorf("DataPath not expanded: %q", cfg.DataPath())
	}
	if !strings.HasSuffix(cfg.StatsDBPath(), "topic_stats.db") {
		t.Errorf("StatsDBPath = %q", cfg.StatsDBPath())
	}

	cfg.Reengage.StatsPath = ""
	cfg.DataDir = "/var/lib/dotpersona"
	if got := cfg.StatsDBPath(); got != filepath.Join("/var/lib/dotpersona", "topic_stats.db") {
		t.Errorf("StatsDBPath fallback = %q", got)
	}
	if cfg.CatalogPath() != "" {
		t.Errorf("default catalog path should be empty")
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Reengage.StatsDriver = StatsDriverSQLite
	cfg.Session.MaxSessions = 12
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Reengage.StatsDriver != StatsDriverSQLite || loaded.Session.MaxSessions != 12 {
		t.Fatalf("round trip lost values: %+v %+v", loaded.Reengage, loaded.Session)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("DOTPERSONA_ROUTING_TOP_CANDIDATES", "5")
	t.Setenv("DOTPERSONA_LOG_LEVEL", "debug")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Routing.TopCandidates; got != 5 {
		t.Fatalf("expected env override top candidates, got %d", got)
	}
	if got := cfg.Log.Level; got != "debug" {
		t.Fatalf("expected env override log level, got %q", got)
	}
}

func TestLoadConfig_DotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	const key = "DOTPERSONA_SESSION_MAX_SESSIONS"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=42\n"), 0600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv(key, "")
	os.Unsetenv(key)

	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Session.MaxSessions != 42 {
		t.Fatalf("expected .env value 42, got %d", cfg.Session.MaxSessions)
	}
}

func TestLoadConfig_EnvBeatsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DOTPERSONA_LOG_LEVEL=error\n"), 0600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("DOTPERSONA_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("real env must win over .env, got %q", cfg.Log.Level)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Fatalf("expected parse error")
	}

	driver := filepath.Join(dir, "driver.json")
	if err := os.WriteFile(driver, []byte(`{"reengage":{"stats_driver":"redis"}}`), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(driver); err == nil {
		t.Fatalf("expected unknown driver error")
	}

	for name, doc := range map[string]string{
		"schedule": `{"session":{"check_schedule":"every so often"}}`,
		"delays":   `{"ghost":{"delays_seconds":[60,0]}}`,
	} {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadConfig_GhostFromEnv(t *testing.T) {
	t.Setenv("DOTPERSONA_GHOST_DELAYS_SECONDS", "5,10")
	t.Setenv("DOTPERSONA_SESSION_CHECK_SCHEDULE", "*/2 * * * *")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.GhostDelays(); len(got) != 2 || got[1] != 10*time.Second {
		t.Fatalf("ghost delays from env = %v", got)
	}
	if cfg.Session.CheckSchedule != "*/2 * * * *" {
		t.Fatalf("check schedule = %q", cfg.Session.CheckSchedule)
	}
}
