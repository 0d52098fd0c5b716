package engagement

import (
	"strings"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
)

type LoopType string

const (
	LoopNone                LoopType = "none"
	LoopInterviewMode       LoopType = "interview_mode"
	LoopValidationSeeking   LoopType = "validation_seeking"
	LoopTopicExhaustion     LoopType = "topic_exhaustion"
	LoopDeadEnd             LoopType = "dead_end"
	LoopPoliteDisengagement LoopType = "polite_disengagement"
)

// LoopAnalysis reports at most one loop per turn.
type LoopAnalysis struct {
	Detected          bool     `json:"loop_detected"`
	Type              LoopType `json:"loop_type"`
	Severity          float64  `json:"severity"`
	AffectedTopics    []string `json:"affected_topics,omitempty"`
	ConsecutiveCount  int      `json:"consecutive_pattern_count"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
	Confidence        float64  `json:"confidence"`
}

// NoLoop is the neutral result.
func NoLoop() LoopAnalysis { return LoopAnalysis{Type: LoopNone} }

const (
	DefaultLoopWindow      = 10
	DefaultMinLoopMessages = 6

	interviewShortReply = 15
	deadEndShortReply   = 10
	exhaustionMinLen    = 4
)

// validationPhrases mark an agent message fishing for reassurance.
var validationPhrases = []string{"really", "sure", "promise", "enough", "pretty", "think so"}

var exhaustionStopwords = map[string]bool{
	"about": true, "think": true, "really": true, "there": true, "their": true,
	"where": true, "which": true, "would": true, "could": true, "should": true,
	"these": true, "those": true,
}

type loopCheck struct {
	Type LoopType
	Fn   func(window []conversation.Message) LoopAnalysis
}

// LoopDetector scans the most recent messages for stalling patterns.
type LoopDetector struct {
	Window      int
	MinMessages int
	checks      []loopCheck
}

func NewLoopDetector() *LoopDetector {
	d := &LoopDetector{Window: DefaultLoopWindow, MinMessages: DefaultMinLoopMessages}
	// Priority order; the first positive check wins.
	d.checks = []loopCheck{
		{LoopInterviewMode, detectInterviewMode},
		{LoopValidationSeeking, detectValidationSeeking},
		{LoopTopicExhaustion, detectTopicExhaustion},
		{LoopDeadEnd, detectDeadEnd},
		{LoopPoliteDisengagement, detectPoliteDisengagement},
	}
	return d
}

// Order exposes the check priority.
func (d *LoopDetector) Order() []LoopType {
	out := make([]LoopType, len(d.checks))
	for i, c := range d.checks {
		out[i] = c.Type
	}
	return out
}

func (d *LoopDetector) Detect(conv *conversation.Context) LoopAnalysis {
	if conv == nil || conv.Len() < d.MinMessages {
		return NoLoop()
	}
	window := conv.Recent(d.Window)
	for _, check := range d.checks {
		if res := check.Fn(window); res.Detected {
			return res
		}
	}
	return NoLoop()
}

func countSeverity(count int, full float64) float64 {
	return clamp01(float64(count) / full)
}

// detectInterviewMode counts agent questions answered with a short reply.
func detectInterviewMode(window []conversation.Message) LoopAnalysis {
	count := 0
	for i := 0; i+1 < len(window); i++ {
		agent, user := window[i], window[i+1]
		if !agent.Role.IsAgent() || user.Role != conversation.RoleUser {
			continue
		}
		if strings.Contains(agent.Content, "?") && conversation.WordCount(user.Content) < interviewShortReply {
			count++
		}
	}
	if count < 3 {
		return NoLoop()
	}
	return LoopAnalysis{
		Detected:          true,
		Type:              LoopInterviewMode,
		Severity:          countSeverity(count, 5),
		ConsecutiveCount:  count,
		RecommendedAction: "switch to self-disclosure",
		Confidence:        0.85,
	}
}

func detectValidationSeeking(window []conversation.Message) LoopAnalysis {
	count := 0
	for _, m := range window {
		if m.Role.IsAgent() && conversation.ContainsAny(strings.ToLower(m.Content), validationPhrases) {
			count++
		}
	}
	if count < 3 {
		return NoLoop()
	}
	return LoopAnalysis{
		Detected:          true,
		Type:              LoopValidationSeeking,
		Severity:          countSeverity(count, 5),
		ConsecutiveCount:  count,
		RecommendedAction: "switch to confident or playful mode",
		Confidence:        0.80,
	}
}

func detectTopicExhaustion(window []conversation.Message) LoopAnalysis {
	counts := make(map[string]int)
	var order []string
	for _, m := range window {
		for _, w := range conversation.Words(m.Content) {
			if len(w) <= exhaustionMinLen || exhaustionStopwords[w] {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	top, topCount := "", 0
	for _, w := range order {
		if counts[w] > topCount {
			top, topCount = w, counts[w]
		}
	}
	if topCount < 4 {
		return NoLoop()
	}
	return LoopAnalysis{
		Detected:          true,
		Type:              LoopTopicExhaustion,
		Severity:          countSeverity(topCount, 6),
		AffectedTopics:    []string{top},
		ConsecutiveCount:  topCount,
		RecommendedAction: "pivot to a new topic",
		Confidence:        0.70,
	}
}

// detectDeadEnd counts trailing short user replies, ignoring agent turns.
func detectDeadEnd(window []conversation.Message) LoopAnalysis {
	count := 0
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Role != conversation.RoleUser {
			continue
		}
		if conversation.WordCount(window[i].Content) >= deadEndShortReply {
			break
		}
		count++
	}
	if count < 3 {
		return NoLoop()
	}
	return LoopAnalysis{
		Detected:          true,
		Type:              LoopDeadEnd,
		Severity:          countSeverity(count, 5),
		ConsecutiveCount:  count,
		RecommendedAction: "dramatic topic shift",
		Confidence:        0.90,
	}
}

func emotionDensity(s string) float64 {
	n := len([]rune(s))
	if n < 1 {
		n = 1
	}
	return float64(conversation.CountEmoji(s)+conversation.CountExpressivePunct(s)) / float64(n)
}

func detectPoliteDisengagement(window []conversation.Message) LoopAnalysis {
	if len(window) < 5 {
		return NoLoop()
	}
	var users []conversation.Message
	for _, m := range window {
		if m.Role == conversation.RoleUser {
			users = append(users, m)
		}
	}
	if len(users) < 3 {
		return NoLoop()
	}
	if len(users) > 5 {
		users = users[len(users)-5:]
	}
	densities := make([]float64, len(users))
	for i, m := range users {
		densities[i] = emotionDensity(m.Content)
	}
	first, second := mean(densities[:2]), mean(densities[2:])
	decline := first - second
	if decline <= 0.01 || second >= 0.05 {
		return NoLoop()
	}
	return LoopAnalysis{
		Detected:          true,
		Type:              LoopPoliteDisengagement,
		Severity:          clamp01(decline * 20),
		RecommendedAction: "create an emotional connection",
		Confidence:        0.75,
	}
}
