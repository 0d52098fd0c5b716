package reengage

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/engagement"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
	"github.com/dotsetgreg/dotpersona/pkg/routing"
)

const (
	DefaultMeasureAfter = 5
	DefaultSuccessDelta = 0.15

	successNudge = 0.1
	failureNudge = 0.05
)

// Attempt records one injection until its outcome is measured.
type Attempt struct {
	ID         string              `json:"id"`
	At         time.Time           `json:"at"`
	PreScore   float64             `json:"pre_engagement_score"`
	TopicID    string              `json:"topic_id"`
	Strategy   Strategy            `json:"strategy"`
	ForcedPath routing.Path        `json:"forced_path"`
	LoopType   engagement.LoopType `json:"loop_type"`
	MessagesAt int                 `json:"messages_at"`
	PostScore  float64             `json:"post_engagement_score"`
	Delta      float64             `json:"engagement_delta"`
	Success    bool                `json:"success"`
	Measured   bool                `json:"measured"`
}

// Injection overrides the turn: the generator should send Message on
// ForcedPath instead of the routed path.
type Injection struct {
	Message    string       `json:"message"`
	Topic      Topic        `json:"topic"`
	ForcedPath routing.Path `json:"forced_path"`
	Decision   Decision     `json:"decision"`
	Attempt    Attempt      `json:"attempt"`
}

type Options struct {
	RateLimit         time.Duration
	RateLimitMessages int
	MeasureAfter      int
	SuccessDelta      float64
	Rand              *rand.Rand
	Clock             func() time.Time
}

func DefaultOptions() Options {
	return Options{
		RateLimit:         DefaultRateLimit,
		RateLimitMessages: DefaultRateLimitMessages,
		MeasureAfter:      DefaultMeasureAfter,
		SuccessDelta:      DefaultSuccessDelta,
	}
}

// Orchestrator runs trigger detection, topic selection and the strategy for
// one session.
type Orchestrator struct {
	library      *Library
	selector     *Selector
	trigger      *TriggerDetector
	strategies   *Strategies
	stats        StatsStore
	attempts     []*Attempt
	measureAfter int
	successDelta float64
	now          func() time.Time
}

// NewOrchestrator takes ownership of lib. stats may be nil.
func NewOrchestrator(lib *Library, stats StatsStore, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.MeasureAfter <= 0 {
		opts.MeasureAfter = def.MeasureAfter
	}
	if opts.SuccessDelta <= 0 {
		opts.SuccessDelta = def.SuccessDelta
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	trigger := NewTriggerDetector()
	if opts.RateLimit > 0 {
		trigger.RateLimit = opts.RateLimit
	}
	if opts.RateLimitMessages > 0 {
		trigger.RateLimitMessages = opts.RateLimitMessages
	}
	return &Orchestrator{
		library:      lib,
		selector:     NewSelector(opts.Rand),
		trigger:      trigger,
		strategies:   NewStrategies(opts.Rand),
		stats:        stats,
		measureAfter: opts.MeasureAfter,
		successDelta: opts.SuccessDelta,
		now:          opts.Clock,
	}
}

func (o *Orchestrator) Library() *Library { return o.library }

// CheckAndReengage returns nil when the turn is suppressed, nothing
// triggers, or no topic fits.
func (o *Orchestrator) CheckAndReengage(m *engagement.Metrics, loop engagement.LoopAnalysis, conv *conversation.Context, sig *energy.Signature) *Injection {
	if m == nil || conv == nil {
		return nil
	}
	now := o.now()
	ok, decision := o.trigger.ShouldReengage(m, loop, conv, now)
	if !ok {
		if decision.SuppressedBy != "" {
			logger.DebugCF("reengage", "Re-engagement suppressed", map[string]any{"rule": decision.SuppressedBy})
		}
		return nil
	}

	topic := o.selector.Select(o.library, conv, sig, decision, now)
	if topic == nil {
		logger.DebugCF("reengage", "No topic fits", map[string]any{
			"reason":   decision.Reason,
			"category": string(decision.Category),
		})
		return nil
	}

	line := o.strategies.Line(decision.Strategy, conv, topic)
	forced := topic.ForcedPath()
	attempt := &Attempt{
		ID:         uuid.NewString(),
		At:         now,
		PreScore:   m.Score,
		TopicID:    topic.ID,
		Strategy:   decision.Strategy,
		ForcedPath: forced,
		LoopType:   loop.Type,
		MessagesAt: conv.Len(),
	}
	o.attempts = append(o.attempts, attempt)
	o.library.RecordUsage(topic, now)
	conv.MarkReengagement(now)

	logger.InfoCF("reengage", "Injecting topic", map[string]any{
		"topic":    topic.ID,
		"strategy": string(decision.Strategy),
		"urgency":  string(decision.Urgency),
		"path":     string(forced),
		"reason":   decision.Reason,
	})
	return &Injection{
		Message:    line,
		Topic:      *topic.clone(),
		ForcedPath: forced,
		Decision:   decision,
		Attempt:    *attempt,
	}
}

// MeasurePending measures every attempt that has seen enough follow-up
// messages, using score as the post-injection engagement.
func (o *Orchestrator) MeasurePending(ctx context.Context, conv *conversation.Context, score float64) []Attempt {
	var measured []Attempt
	for _, a := range o.attempts {
		if a.Measured || conv.Len() < a.MessagesAt+o.measureAfter {
			continue
		}
		o.Measure(ctx, a, score)
		measured = append(measured, *a)
	}
	return measured
}

// Measure settles an attempt and nudges its topic's success rate: rewards
// move faster than penalties.
func (o *Orchestrator) Measure(ctx context.Context, a *Attempt, post float64) {
	a.PostScore = post
	a.Delta = post - a.PreScore
	a.Success = a.Delta > o.successDelta
	a.Measured = true

	topic, err := o.library.Topic(a.TopicID)
	if err != nil {
		logger.WarnCF("reengage", "Measured attempt for unknown topic", map[string]any{"topic": a.TopicID})
		return
	}
	if a.Success {
		topic.SuccessRate = clamp01(topic.SuccessRate + successNudge)
	} else {
		topic.SuccessRate = clamp01(topic.SuccessRate - failureNudge)
	}
	if o.stats == nil {
		return
	}
	if err := o.stats.Record(ctx, topic.ID, a.Success, topic.SuccessRate); err != nil {
		logger.WarnCF("reengage", "Failed to persist topic stats", map[string]any{
			"topic": topic.ID,
			"error": err.Error(),
		})
	}
}

// Attempts returns copies of every attempt so far, oldest first.
func (o *Orchestrator) Attempts() []Attempt {
	out := make([]Attempt, len(o.attempts))
	for i, a := range o.attempts {
		out[i] = *a
	}
	return out
}
