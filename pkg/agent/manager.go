package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/logger"
	"github.com/dotsetgreg/dotpersona/pkg/reengage"
)

const DefaultIdleTimeout = time.Hour

type ManagerOptions struct {
	Session Options
	// MaxSessions caps live sessions; zero means unlimited.
	MaxSessions int
	IdleTimeout time.Duration
}

// Manager is the session registry. Sessions share only the immutable
// catalog, the oracles and the stats store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	catalog  reengage.Catalog
	stats    reengage.StatsStore
	oracles  Oracles
	opts     ManagerOptions
}

// NewManager validates the catalog once; stats may be nil.
func NewManager(catalog reengage.Catalog, stats reengage.StatsStore, oracles Oracles, opts ManagerOptions) (*Manager, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Session.Clock == nil {
		opts.Session.Clock = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		catalog:  catalog,
		stats:    stats,
		oracles:  oracles,
		opts:     opts,
	}, nil
}

// SetCatalog swaps the catalog used by sessions opened from now on. Live
// sessions keep the library they were built with.
func (m *Manager) SetCatalog(catalog reengage.Catalog) error {
	if err := catalog.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.catalog = catalog
	m.mu.Unlock()
	return nil
}

// Open returns the session for identity, creating it on first use.
func (m *Manager) Open(ctx context.Context, identity SessionIdentity) (*Session, error) {
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return m.OpenKey(ctx, identity.SessionKey())
}

// OpenKey is Open for an already resolved key.
func (m *Manager) OpenKey(ctx context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		return nil, fmt.Errorf("open session %s: %w", key, ErrTooManySessions)
	}

	lib := reengage.NewLibrary(m.catalog)
	if m.stats != nil {
		learned, err := m.stats.Load(ctx)
		if err != nil {
			logger.WarnCF("agent", "Failed to load topic stats, using catalog defaults", map[string]any{
				"error": err.Error(),
			})
		} else {
			lib.ApplyStats(learned)
		}
	}

	s := NewSession(key, lib, m.stats, m.oracles, m.opts.Session)
	m.sessions[key] = s
	logger.InfoCF("agent", "Session opened", map[string]any{
		"session": key,
		"id":      s.ID,
	})
	return s, nil
}

func (m *Manager) Get(key string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	return s, nil
}

// Close removes the session; later turns on a held reference fail with
// ErrSessionClosed.
func (m *Manager) Close(key string) error {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	s.close()
	return nil
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// their keys, sorted. It never waits on a running turn.
func (m *Manager) Sweep(now time.Time) []string {
	m.mu.Lock()
	var evicted []*Session
	for key, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.opts.IdleTimeout {
			evicted = append(evicted, s)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	keys := make([]string, 0, len(evicted))
	for _, s := range evicted {
		s.close()
		keys = append(keys, s.Key)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		logger.InfoCF("agent", "Idle sessions evicted", map[string]any{"count": len(keys)})
	}
	return keys
}

// GhostCheckIn is a silence check-in due for one session.
type GhostCheckIn struct {
	SessionKey string `json:"session_key"`
	reengage.GhostCheckIn
}

// PollGhosts returns the silence check-ins due at now, sorted by session
// key. Each returned check-in counts as sent.
func (m *Manager) PollGhosts(now time.Time) []GhostCheckIn {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Key < sessions[j].Key })
	var due []GhostCheckIn
	for _, s := range sessions {
		if c, ok := s.CheckGhost(now); ok {
			due = append(due, GhostCheckIn{SessionKey: s.Key, GhostCheckIn: c})
			logger.InfoCF("agent", "User went quiet, check-in due", map[string]any{
				"session": s.Key,
				"kind":    string(c.Kind),
				"level":   c.Level,
			})
		}
	}
	return due
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Keys lists live session keys, sorted.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}
