package agent

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/engagement"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
	"github.com/dotsetgreg/dotpersona/pkg/reengage"
	"github.com/dotsetgreg/dotpersona/pkg/routing"
	"github.com/dotsetgreg/dotpersona/pkg/safety"
)

const (
	energyContextMessages = 5
	safetyContextMessages = 10
)

// Oracles are the external judges consulted every turn. Nil members fall
// back to the deterministic implementations.
type Oracles struct {
	Energy energy.Classifier
	Safety safety.Oracle
	Scores routing.ScoreOracle
}

type Options struct {
	Routing    routing.Options
	Engagement engagement.Options
	Reengage   reengage.Options
	Ghost      reengage.GhostOptions
	// Seed makes every random draw of the session reproducible when
	// non-zero. The session key is mixed in so sessions do not mirror.
	Seed  uint64
	Clock func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Routing:    routing.DefaultOptions(),
		Engagement: engagement.DefaultOptions(),
		Reengage:   reengage.DefaultOptions(),
		Ghost:      reengage.DefaultGhostOptions(),
	}
}

// TurnResult is everything the downstream generator needs for one user
// message. When Injection is set the generator sends Injection.Message on
// EffectivePath instead of answering on Decision.Path.
type TurnResult struct {
	TurnID          string                  `json:"turn_id"`
	SessionKey      string                  `json:"session_key"`
	Signature       energy.Signature        `json:"energy"`
	Safety          safety.Result           `json:"safety"`
	Decision        routing.Decision        `json:"routing"`
	EngagementReady bool                    `json:"engagement_ready"`
	Metrics         engagement.Metrics      `json:"engagement"`
	Loop            engagement.LoopAnalysis `json:"loop"`
	Measured        []reengage.Attempt      `json:"measured_attempts,omitempty"`
	Injection       *reengage.Injection     `json:"injection,omitempty"`
	EffectivePath   routing.Path            `json:"effective_path"`
	Method          routing.SelectionMethod `json:"selection_method"`
}

// Session owns every mutable tracker of one conversation. Turns are
// serialized by mu. closed, lastActive and the ghost detector are readable
// without mu so registry maintenance never waits on a turn.
type Session struct {
	ID        string
	Key       string
	CreatedAt time.Time

	closed     atomic.Bool
	lastActive atomic.Int64 // unix nanoseconds
	ghost      *reengage.GhostDetector

	mu       sync.Mutex
	conv     *conversation.Context
	router   *routing.Router
	monitor  *engagement.Monitor
	reengage *reengage.Orchestrator
	energy   energy.Classifier
	safety   safety.Oracle
	now      func() time.Time
}

// NewSession builds a session around its own topic library. stats may be
// nil.
func NewSession(key string, lib *reengage.Library, stats reengage.StatsStore, oracles Oracles, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	if opts.Seed != 0 {
		h := fnv.New64a()
		h.Write([]byte(key))
		rng = rand.New(rand.NewPCG(opts.Seed, h.Sum64()))
	}
	if opts.Routing.Rand == nil {
		opts.Routing.Rand = rng
	}
	if opts.Reengage.Rand == nil {
		opts.Reengage.Rand = rng
	}
	if opts.Engagement.Clock == nil {
		opts.Engagement.Clock = opts.Clock
	}
	if opts.Reengage.Clock == nil {
		opts.Reengage.Clock = opts.Clock
	}

	timeout := opts.Routing.OracleTimeout
	if timeout <= 0 {
		timeout = routing.DefaultOracleTimeout
	}

	now := opts.Clock()
	s := &Session{
		ID:        uuid.NewString(),
		Key:       key,
		CreatedAt: now,
		ghost:     reengage.NewGhostDetector(opts.Ghost),
		conv:      conversation.NewContext(now),
		router:    routing.NewRouter(oracles.Scores, opts.Routing),
		monitor:   engagement.NewMonitor(opts.Engagement),
		reengage:  reengage.NewOrchestrator(lib, stats, opts.Reengage),
		energy:    energy.WithFallback(energy.WithTimeout(oracles.Energy, timeout), nil),
		safety:    safety.WithFallback(safety.WithTimeout(oracles.Safety, timeout)),
		now:       opts.Clock,
	}
	s.touch(now)
	return s
}

// ProcessTurn runs one user message through analysis, routing, engagement
// tracking and re-engagement. Oracle failures degrade to fallbacks; the only
// errors are a closed session and a context cancelled before the turn.
func (s *Session) ProcessTurn(ctx context.Context, message string) (TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return TurnResult{}, ErrSessionClosed
	}

	now := s.now()
	s.touch(now)
	s.ghost.RecordUserActivity(now)
	recentText := s.conv.RecentContents(energyContextMessages)
	recent := append([]conversation.Message(nil), s.conv.Recent(safetyContextMessages)...)

	var (
		sig     energy.Signature
		verdict safety.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sig, err = s.energy.Classify(gctx, message, recentText)
		return err
	})
	g.Go(func() error {
		var err error
		verdict, err = s.safety.Analyze(gctx, message, recent)
		return err
	})
	if err := g.Wait(); err != nil {
		return TurnResult{}, err
	}

	s.conv.Append(conversation.RoleUser, message, now)
	s.conv.AppendEnergy(sig)

	decision := s.router.Route(ctx, message, &sig, s.conv)
	res := TurnResult{
		TurnID:        uuid.NewString(),
		SessionKey:    s.Key,
		Signature:     sig,
		Safety:        verdict,
		Decision:      decision,
		Loop:          engagement.NoLoop(),
		EffectivePath: decision.Path,
		Method:        decision.Method,
	}

	if s.monitor.Ready(s.conv) {
		res.EngagementReady = true
		metrics := s.monitor.Update(message, s.conv, &sig)
		res.Loop = s.monitor.DetectLoops(s.conv)
		res.Measured = s.reengage.MeasurePending(ctx, s.conv, metrics.Score)
		if inj := s.reengage.CheckAndReengage(metrics, res.Loop, s.conv, &sig); inj != nil {
			if err := s.router.Force(inj.ForcedPath); err != nil {
				logger.WarnCF("agent", "Injected topic has no usable path", map[string]any{
					"topic": inj.Topic.ID,
					"error": err.Error(),
				})
			} else {
				s.monitor.MarkReengagement(inj.Attempt.At)
				res.Injection = inj
				res.EffectivePath = inj.ForcedPath
				res.Method = routing.MethodForced
			}
		}
	}
	res.Metrics = s.monitor.Metrics().Snapshot()

	if verdict.Flagged() {
		logger.WarnCF("agent", "Safety oracle flagged message", map[string]any{
			"session":        s.Key,
			"recommendation": string(verdict.Recommendation),
			"score":          verdict.Score,
		})
	}
	logger.DebugCF("agent", "Turn processed", map[string]any{
		"session":  s.Key,
		"turn_id":  res.TurnID,
		"path":     string(res.EffectivePath),
		"method":   string(res.Method),
		"messages": s.conv.Len(),
		"injected": res.Injection != nil,
	})
	return res, nil
}

// RecordAgentReply appends the text the generator actually sent so loop
// detection sees both sides of the conversation.
func (s *Session) RecordAgentReply(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}
	now := s.now()
	s.touch(now)
	s.conv.Append(conversation.RoleAgent, content, now)
	return nil
}

// SessionState is a read-only snapshot for status output.
type SessionState struct {
	ID         string               `json:"id"`
	Key        string               `json:"key"`
	CreatedAt  time.Time            `json:"created_at"`
	LastActive time.Time            `json:"last_active"`
	Messages   int                  `json:"messages"`
	Routing    routing.State        `json:"routing"`
	Metrics    engagement.Metrics   `json:"engagement"`
	Attempts   []reengage.Attempt   `json:"attempts"`
	Ghost      reengage.GhostStatus `json:"ghost"`
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		ID:         s.ID,
		Key:        s.Key,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive(),
		Messages:   s.conv.Len(),
		Routing:    s.router.State(),
		Metrics:    s.monitor.Metrics().Snapshot(),
		Attempts:   s.reengage.Attempts(),
		Ghost:      s.ghost.Status(s.now()),
	}
}

// CheckGhost reports whether the user has gone quiet long enough for a
// check-in. A returned check-in counts as sent.
func (s *Session) CheckGhost(now time.Time) (reengage.GhostCheckIn, bool) {
	if s.closed.Load() {
		return reengage.GhostCheckIn{}, false
	}
	return s.ghost.Check(now)
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(at time.Time) {
	s.lastActive.Store(at.UnixNano())
}

func (s *Session) close() {
	s.closed.Store(true)
}
