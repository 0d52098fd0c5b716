package reengage

import (
	"strings"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/engagement"
)

const (
	DefaultRateLimit         = 120 * time.Second
	DefaultRateLimitMessages = 10
)

// expectationPhrases in the last agent message promise a follow-up the user
// is waiting for.
var expectationPhrases = []string{
	"random thought", "guess what", "want to hear", "wanna know",
	"tell you something", "you know what", "listen to this",
	"i have to tell you", "let me tell you",
}

type suppression struct {
	name string
	fn   func(conv *conversation.Context, now time.Time) bool
}

type trigger struct {
	name string
	fn   func(m *engagement.Metrics, loop engagement.LoopAnalysis) (Decision, bool)
}

// TriggerDetector evaluates suppressions first, then triggers, each in
// priority order.
type TriggerDetector struct {
	RateLimit         time.Duration
	RateLimitMessages int

	suppressions []suppression
	triggers     []trigger
}

func NewTriggerDetector() *TriggerDetector {
	d := &TriggerDetector{RateLimit: DefaultRateLimit, RateLimitMessages: DefaultRateLimitMessages}
	d.suppressions = []suppression{
		{"rate_limit", d.rateLimited},
		{"direct_question", lastUserAsked},
		{"agent_expects_reply", agentExpectsReply},
	}
	d.triggers = []trigger{
		{"critical_disengagement", criticalDisengagement},
		{"dead_end", deadEndLoop},
		{"gradual_decline", gradualDecline},
		{"severe_loop", severeLoop},
	}
	return d
}

func (d *TriggerDetector) ShouldReengage(m *engagement.Metrics, loop engagement.LoopAnalysis, conv *conversation.Context, now time.Time) (bool, Decision) {
	for _, s := range d.suppressions {
		if s.fn(conv, now) {
			return false, Decision{Urgency: UrgencyLow, SuppressedBy: s.name}
		}
	}
	for _, t := range d.triggers {
		if dec, ok := t.fn(m, loop); ok {
			dec.Reengage = true
			return true, dec
		}
	}
	return false, Decision{Urgency: UrgencyLow}
}

func (d *TriggerDetector) rateLimited(conv *conversation.Context, now time.Time) bool {
	if conv.LastReengagement.IsZero() {
		return false
	}
	return now.Sub(conv.LastReengagement) < d.RateLimit && conv.MessagesSinceReengagement() < d.RateLimitMessages
}

func lastUserAsked(conv *conversation.Context, _ time.Time) bool {
	last, ok := conv.LastUser()
	return ok && conversation.IsDirectAsk(last.Content)
}

func agentExpectsReply(conv *conversation.Context, _ time.Time) bool {
	if conv.Len() < 2 {
		return false
	}
	last, ok := conv.LastAgent()
	return ok && conversation.ContainsAny(strings.ToLower(last.Content), expectationPhrases)
}

func criticalDisengagement(m *engagement.Metrics, _ engagement.LoopAnalysis) (Decision, bool) {
	if m.Score >= 0.05 {
		return Decision{}, false
	}
	return Decision{
		Reason:     "critical disengagement",
		Urgency:    UrgencyCritical,
		Category:   CategoryRandom,
		Strategy:   StrategyRandomInterruption,
		Confidence: 0.9,
	}, true
}

func deadEndLoop(_ *engagement.Metrics, loop engagement.LoopAnalysis) (Decision, bool) {
	if !loop.Detected || loop.Type != engagement.LoopDeadEnd {
		return Decision{}, false
	}
	return Decision{
		Reason:     "dead-end pattern",
		Urgency:    UrgencyHigh,
		Category:   CategoryRandom,
		Strategy:   StrategyRandomInterruption,
		Confidence: loop.Confidence,
	}, true
}

func gradualDecline(m *engagement.Metrics, _ engagement.LoopAnalysis) (Decision, bool) {
	if m.Score >= 0.5 || m.Trend != engagement.Falling || m.TrendVelocity >= -0.3 {
		return Decision{}, false
	}
	return Decision{
		Reason:     "gradual engagement decline",
		Urgency:    UrgencyNormal,
		Category:   CategoryCallback,
		Strategy:   StrategyCallback,
		Confidence: 0.75,
	}, true
}

func severeLoop(_ *engagement.Metrics, loop engagement.LoopAnalysis) (Decision, bool) {
	if !loop.Detected || loop.Severity <= 0.7 {
		return Decision{}, false
	}
	d := Decision{
		Reason:     "loop detected: " + string(loop.Type),
		Urgency:    UrgencyNormal,
		Category:   CategoryRandom,
		Strategy:   StrategyRandomInterruption,
		Confidence: loop.Confidence,
	}
	switch loop.Type {
	case engagement.LoopInterviewMode:
		d.Category, d.Strategy = CategoryCasual, StrategyPivot
	case engagement.LoopValidationSeeking:
		d.Category, d.Strategy = CategoryPlayful, StrategyPlayfulChallenge
	}
	return d, true
}
