package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dotsetgreg/dotpersona/pkg/agent"
	"github.com/dotsetgreg/dotpersona/pkg/bus"
	"github.com/dotsetgreg/dotpersona/pkg/config"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/engagement"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
	"github.com/dotsetgreg/dotpersona/pkg/reengage"
	"github.com/dotsetgreg/dotpersona/pkg/routing"
)

// engine is everything a local session needs: the stats store, the session
// registry and the loop that fronts it.
type engine struct {
	cfg     *config.Config
	stats   reengage.StatsStore
	bus     *bus.MessageBus
	manager *agent.Manager
	loop    *agent.AgentLoop
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := logger.ParseLevel(cfg.Log.Level)
	if cfg.Log.Debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
	return cfg, nil
}

func sessionOptions(cfg *config.Config, seed uint64) agent.Options {
	opts := agent.DefaultOptions()
	opts.Seed = seed

	opts.Routing.Margin = cfg.Routing.ClearWinnerMargin
	opts.Routing.TopN = cfg.Routing.TopCandidates
	opts.Routing.FrequencyWindow = cfg.Routing.FrequencyWindow
	opts.Routing.OracleTimeout = cfg.OracleTimeout()

	opts.Engagement = engagement.Options{
		WarmupMessages:  cfg.Engagement.WarmupMessages,
		BufferSize:      cfg.Engagement.BufferSize,
		LoopWindow:      cfg.Engagement.LoopWindow,
		MinLoopMessages: cfg.Engagement.MinLoopMessages,
	}

	opts.Reengage.RateLimit = cfg.RateLimit()
	opts.Reengage.RateLimitMessages = cfg.Reengage.RateLimitMessages
	opts.Reengage.MeasureAfter = cfg.Reengage.MeasureAfterMessages
	opts.Reengage.SuccessDelta = cfg.Reengage.SuccessDelta

	opts.Ghost = reengage.GhostOptions{
		MaxMessages: cfg.Ghost.MaxMessages,
		Delays:      cfg.GhostDelays(),
		MinGap:      cfg.GhostMinGap(),
	}
	return opts
}

func openStatsStore(cfg *config.Config) (reengage.StatsStore, error) {
	switch cfg.Reengage.StatsDriver {
	case config.StatsDriverSQLite:
		path := cfg.StatsDBPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create stats dir: %w", err)
		}
		return reengage.NewSQLiteStatsStore(path)
	default:
		return reengage.NewMemoryStatsStore(), nil
	}
}

// defaultOracles wires the deterministic judges. Hosted model adapters plug
// in here by replacing a member.
func defaultOracles() agent.Oracles {
	return agent.Oracles{
		Energy: energy.NewRuleClassifier(),
		Scores: routing.StaticOracle{},
	}
}

func newEngine(cfg *config.Config, seed uint64) (*engine, error) {
	catalog, err := reengage.LoadCatalog(cfg.CatalogPath())
	if err != nil {
		return nil, err
	}
	stats, err := openStatsStore(cfg)
	if err != nil {
		return nil, err
	}
	manager, err := agent.NewManager(catalog, stats, defaultOracles(), agent.ManagerOptions{
		Session:     sessionOptions(cfg, seed),
		MaxSessions: cfg.Session.MaxSessions,
		IdleTimeout: cfg.IdleTimeout(),
	})
	if err != nil {
		_ = stats.Close()
		return nil, err
	}
	msgBus := bus.NewMessageBus()
	return &engine{
		cfg:     cfg,
		stats:   stats,
		bus:     msgBus,
		manager: manager,
		loop:    agent.NewAgentLoop(msgBus, manager),
	}, nil
}

// watchCatalog reloads the configured catalog into the manager on edits.
// It returns nil when there is nothing to watch.
func (e *engine) watchCatalog(ctx context.Context) (*reengage.CatalogWatcher, error) {
	path := e.cfg.CatalogPath()
	if path == "" || !e.cfg.Reengage.WatchCatalog {
		return nil, nil
	}
	w, err := reengage.NewCatalogWatcher(path, 0, func(cat reengage.Catalog) {
		if err := e.manager.SetCatalog(cat); err != nil {
			logger.WarnCF("cli", "Rejected reloaded catalog", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// maintain evicts idle sessions and returns the silence check-ins due at
// now.
func (e *engine) maintain(now time.Time) []agent.GhostCheckIn {
	e.manager.Sweep(now)
	return e.manager.PollGhosts(now)
}

// nextCheck is the first tick of the cron expression after from.
func nextCheck(expr string, from time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("session.check_schedule %q: %w", expr, err)
	}
	return next, nil
}

// runMaintenance calls maintain on the configured schedule until ctx is
// done, handing each due check-in to onCheckIn.
func (e *engine) runMaintenance(ctx context.Context, onCheckIn func(agent.GhostCheckIn)) error {
	expr := e.cfg.Session.CheckSchedule
	for {
		next, err := nextCheck(expr, time.Now())
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case now := <-timer.C:
			for _, c := range e.maintain(now) {
				onCheckIn(c)
			}
		}
	}
}

func (e *engine) Close() error {
	e.loop.Stop()
	e.manager.CloseAll()
	e.bus.Close()
	return e.stats.Close()
}

// checkStatsStore reports whether the configured stats store opens and
// loads.
func checkStatsStore(ctx context.Context, cfg *config.Config) (int, error) {
	store, err := openStatsStore(cfg)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	stats, err := store.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(stats), nil
}
