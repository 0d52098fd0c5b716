package reengage

import (
	"sync"
	"time"
)

// GhostKind tells the generator how pointed a silence check-in should be.
type GhostKind string

const (
	GhostGentle  GhostKind = "gentle"
	GhostCurious GhostKind = "curious"
	GhostPlayful GhostKind = "playful"
)

const (
	DefaultGhostMaxMessages = 3
	DefaultGhostMinGap      = 30 * time.Second
)

// DefaultGhostDelays is the silence required before each check-in,
// measured from the last user message.
var DefaultGhostDelays = []time.Duration{60 * time.Second, 90 * time.Second, 120 * time.Second}

// GhostOptions configures silence detection. MaxMessages of zero disables
// it; an empty Delays uses DefaultGhostDelays.
type GhostOptions struct {
	MaxMessages int
	Delays      []time.Duration
	MinGap      time.Duration
}

func DefaultGhostOptions() GhostOptions {
	return GhostOptions{
		MaxMessages: DefaultGhostMaxMessages,
		Delays:      append([]time.Duration(nil), DefaultGhostDelays...),
		MinGap:      DefaultGhostMinGap,
	}
}

// GhostCheckIn asks the generator for one unprompted message. Level is 1 for
// the first check-in after the user went quiet.
type GhostCheckIn struct {
	Kind    GhostKind     `json:"kind"`
	Level   int           `json:"level"`
	Silence time.Duration `json:"silence"`
}

type GhostStatus struct {
	Ghosting    bool          `json:"is_ghosting"`
	Sent        int           `json:"ghost_messages_sent"`
	MaxMessages int           `json:"max_messages"`
	Silence     time.Duration `json:"silence"`
}

// GhostDetector escalates check-ins while the user stays silent. Check-ins
// start only after the first user message and reset on every later one.
type GhostDetector struct {
	mu       sync.Mutex
	opts     GhostOptions
	lastUser time.Time
	sent     int
	lastSent time.Time
}

func NewGhostDetector(opts GhostOptions) *GhostDetector {
	if len(opts.Delays) == 0 {
		opts.Delays = DefaultGhostDelays
	}
	if opts.MinGap < 0 {
		opts.MinGap = 0
	}
	return &GhostDetector{opts: opts}
}

func (g *GhostDetector) RecordUserActivity(at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastUser = at
	g.sent = 0
	g.lastSent = time.Time{}
}

// Check reports whether a check-in is due now and, if so, records it as
// sent.
func (g *GhostDetector) Check(now time.Time) (GhostCheckIn, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.due(now)
	if ok {
		g.markSent(now)
	}
	return c, ok
}

func (g *GhostDetector) Status(now time.Time) GhostStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := GhostStatus{Ghosting: g.sent > 0, Sent: g.sent, MaxMessages: g.opts.MaxMessages}
	if !g.lastUser.IsZero() {
		st.Silence = now.Sub(g.lastUser)
	}
	return st
}

func (g *GhostDetector) due(now time.Time) (GhostCheckIn, bool) {
	if g.lastUser.IsZero() || g.sent >= g.opts.MaxMessages {
		return GhostCheckIn{}, false
	}
	if g.sent > 0 && now.Sub(g.lastSent) < g.opts.MinGap {
		return GhostCheckIn{}, false
	}
	delay := g.opts.Delays[min(g.sent, len(g.opts.Delays)-1)]
	silence := now.Sub(g.lastUser)
	if silence < delay {
		return GhostCheckIn{}, false
	}
	return GhostCheckIn{Kind: ghostKindFor(g.sent), Level: g.sent + 1, Silence: silence}, true
}

func (g *GhostDetector) markSent(at time.Time) {
	g.sent++
	g.lastSent = at
}

func ghostKindFor(sent int) GhostKind {
	switch sent {
	case 0:
		return GhostGentle
	case 1:
		return GhostCurious
	default:
		return GhostPlayful
	}
}
