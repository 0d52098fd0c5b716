package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DataDir    string           `json:"data_dir" env:"DOTPERSONA_DATA_DIR"`
	Routing    RoutingConfig    `json:"routing"`
	Engagement EngagementConfig `json:"engagement"`
	Reengage   ReengageConfig   `json:"reengage"`
	Session    SessionConfig    `json:"session"`
	Ghost      GhostConfig      `json:"ghost"`
	Log        LogConfig        `json:"log"`
	mu         sync.RWMutex
}

type RoutingConfig struct {
	ClearWinnerMargin float64 `json:"clear_winner_margin" env:"DOTPERSONA_ROUTING_CLEAR_WINNER_MARGIN"`
	TopCandidates     int     `json:"top_candidates" env:"DOTPERSONA_ROUTING_TOP_CANDIDATES"`
	OracleTimeoutMS   int     `json:"oracle_timeout_ms" env:"DOTPERSONA_ROUTING_ORACLE_TIMEOUT_MS"`
	FrequencyWindow   int     `json:"frequency_window" env:"DOTPERSONA_ROUTING_FREQUENCY_WINDOW"`
}

type EngagementConfig struct {
	WarmupMessages  int `json:"warmup_messages" env:"DOTPERSONA_ENGAGEMENT_WARMUP_MESSAGES"`
	BufferSize      int `json:"buffer_size" env:"DOTPERSONA_ENGAGEMENT_BUFFER_SIZE"`
	HistorySize     int `json:"history_size" env:"DOTPERSONA_ENGAGEMENT_HISTORY_SIZE"`
	LoopWindow      int `json:"loop_window" env:"DOTPERSONA_ENGAGEMENT_LOOP_WINDOW"`
	MinLoopMessages int `json:"min_loop_messages" env:"DOTPERSONA_ENGAGEMENT_MIN_LOOP_MESSAGES"`
}

type ReengageConfig struct {
	RateLimitSeconds     int     `json:"rate_limit_seconds" env:"DOTPERSONA_REENGAGE_RATE_LIMIT_SECONDS"`
	RateLimitMessages    int     `json:"rate_limit_messages" env:"DOTPERSONA_REENGAGE_RATE_LIMIT_MESSAGES"`
	MeasureAfterMessages int     `json:"measure_after_messages" env:"DOTPERSONA_REENGAGE_MEASURE_AFTER_MESSAGES"`
	SuccessDelta         float64 `json:"success_delta" env:"DOTPERSONA_REENGAGE_SUCCESS_DELTA"`
	CatalogPath          string  `json:"catalog_path" env:"DOTPERSONA_REENGAGE_CATALOG_PATH"`
	WatchCatalog         bool    `json:"watch_catalog" env:"DOTPERSONA_REENGAGE_WATCH_CATALOG"`
	StatsDriver          string  `json:"stats_driver" env:"DOTPERSONA_REENGAGE_STATS_DRIVER"` // memory | sqlite
	StatsPath            string  `json:"stats_path" env:"DOTPERSONA_REENGAGE_STATS_PATH"`
}

type SessionConfig struct {
	IdleTimeoutMinutes int `json:"idle_timeout_minutes" env:"DOTPERSONA_SESSION_IDLE_TIMEOUT_MINUTES"`
	MaxSessions        int `json:"max_sessions" env:"DOTPERSONA_SESSION_MAX_SESSIONS"`
	// CheckSchedule is a cron expression, optionally with a leading seconds
	// field, for idle eviction and silence checks.
	CheckSchedule string `json:"check_schedule" env:"DOTPERSONA_SESSION_CHECK_SCHEDULE"`
}

// GhostConfig controls check-ins after the user goes quiet. MaxMessages of
// zero disables them.
type GhostConfig struct {
	MaxMessages   int   `json:"max_messages" env:"DOTPERSONA_GHOST_MAX_MESSAGES"`
	DelaysSeconds []int `json:"delays_seconds" env:"DOTPERSONA_GHOST_DELAYS_SECONDS"`
	MinGapSeconds int   `json:"min_gap_seconds" env:"DOTPERSONA_GHOST_MIN_GAP_SECONDS"`
}

type LogConfig struct {
	Level string `json:"level" env:"DOTPERSONA_LOG_LEVEL"`
	Debug bool   `json:"debug" env:"DOTPERSONA_LOG_DEBUG"`
}

const (
	StatsDriverMemory = "memory"
	StatsDriverSQLite = "sqlite"
)

func DefaultConfig() *Config {
	return &Config{
		DataDir: "~/.dotpersona",
		Routing: RoutingConfig{
			ClearWinnerMargin: 20,
			TopCandidates:     3,
			OracleTimeoutMS:   4000,
			FrequencyWindow:   10,
		},
		Engagement: EngagementConfig{
			WarmupMessages:  7,
			BufferSize:      10,
			HistorySize:     20,
			LoopWindow:      10,
			MinLoopMessages: 6,
		},
		Reengage: ReengageConfig{
			RateLimitSeconds:     120,
			RateLimitMessages:    10,
			MeasureAfterMessages: 5,
			SuccessDelta:         0.15,
			CatalogPath:          "",
			StatsDriver:          StatsDriverMemory,
			StatsPath:            "~/.dotpersona/topic_stats.db",
		},
		Session: SessionConfig{
			IdleTimeoutMinutes: 60,
			MaxSessions:        256,
			CheckSchedule:      "*/10 * * * * *",
		},
		Ghost: GhostConfig{
			MaxMessages:   3,
			DelaysSeconds: []int{60, 90, 120},
			MinGapSeconds: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path (a missing file yields defaults), loads .env files
// next to it and in the working directory, then applies DOTPERSONA_*
// overrides. Variables already in the environment win over .env files.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(paths ...string) error {
	seen := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.Reengage.StatsDriver {
	case StatsDriverMemory, StatsDriverSQLite:
	default:
		return fmt.Errorf("unknown reengage.stats_driver %q", c.Reengage.StatsDriver)
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("session.max_sessions must not be negative")
	}
	if c.Reengage.SuccessDelta < 0 || c.Reengage.SuccessDelta > 1 {
		return fmt.Errorf("reengage.success_delta %.2f out of range", c.Reengage.SuccessDelta)
	}
	cron := gronx.New()
	if !cron.IsValid(c.Session.CheckSchedule) {
		return fmt.Errorf("invalid session.check_schedule %q", c.Session.CheckSchedule)
	}
	if c.Ghost.MaxMessages < 0 {
		return fmt.Errorf("ghost.max_messages must not be negative")
	}
	for _, d := range c.Ghost.DelaysSeconds {
		if d <= 0 {
			return fmt.Errorf("ghost.delays_seconds must be positive, got %v", c.Ghost.DelaysSeconds)
		}
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) DataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.DataDir)
}

func (c *Config) StatsDBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if strings.TrimSpace(c.Reengage.StatsPath) == "" {
		return filepath.Join(expandHome(c.DataDir), "topic_stats.db")
	}
	return expandHome(c.Reengage.StatsPath)
}

func (c *Config) CatalogPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Reengage.CatalogPath)
}

func (c *Config) OracleTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Routing.OracleTimeoutMS) * time.Millisecond
}

func (c *Config) RateLimit() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Reengage.RateLimitSeconds) * time.Second
}

func (c *Config) IdleTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}

func (c *Config) GhostDelays() []time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]time.Duration, 0, len(c.Ghost.DelaysSeconds))
	for _, d := range c.Ghost.DelaysSeconds {
		out = append(out, time.Duration(d)*time.Second)
	}
	return out
}

func (c *Config) GhostMinGap() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Ghost.MinGapSeconds) * time.Second
}

// DefaultPath is where the CLI looks for config.json.
func DefaultPath() string {
	return filepath.Join(expandHome("~/.dotpersona"), "config.json")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
