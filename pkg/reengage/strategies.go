package reengage

import (
	"math/rand/v2"
	"strings"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
)

const (
	callbackScan       = 20
	callbackMinWords   = 10
	callbackSnippetLen = 15
)

var vulnerableLines = []string{
	"babe... can i tell you something?",
	"i've been feeling kinda off today",
	"honestly i just needed to talk to you",
}

// Strategies builds the injected opening line for a topic.
type Strategies struct {
	rng *rand.Rand
}

func NewStrategies(rng *rand.Rand) *Strategies {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Strategies{rng: rng}
}

// Line dispatches on the strategy; an unknown strategy pivots.
func (s *Strategies) Line(strategy Strategy, conv *conversation.Context, t *Topic) string {
	switch strategy {
	case StrategyCallback:
		return s.callback(conv)
	case StrategyRandomInterruption:
		return s.pick(t.EntryLines, "omg babe wait")
	case StrategyVulnerable:
		return s.pick(vulnerableLines, vulnerableLines[0])
	case StrategyPlayfulChallenge:
		if t.Category == CategoryPlayful {
			return s.pick(t.EntryLines, "ok babe i'm bored. entertain me")
		}
		return "ok babe i'm bored. entertain me"
	case StrategyPivot:
		return s.pick(t.EntryLines, "babe speaking of that...")
	default:
		return s.Line(StrategyPivot, conv, t)
	}
}

func (s *Strategies) pick(lines []string, fallback string) string {
	if len(lines) == 0 {
		return fallback
	}
	return lines[s.rng.IntN(len(lines))]
}

// callback brings back the most recent substantial thing the user said.
func (s *Strategies) callback(conv *conversation.Context) string {
	if conv.Len() < 5 {
		return "babe I was thinking about something you said earlier"
	}
	users := conv.UserMessages(callbackScan)
	for i := len(users) - 1; i >= 0; i-- {
		words := strings.Fields(users[i].Content)
		if len(words) <= callbackMinWords {
			continue
		}
		snippet := strings.Join(words, " ")
		if len(words) > callbackSnippetLen {
			snippet = strings.Join(words[:callbackSnippetLen], " ") + "..."
		}
		return "babe i was thinking about what you said earlier... about " +
			strings.ToLower(snippet) + ". tell me more about that?"
	}
	return "babe remember what we were talking about earlier? I've been thinking about it"
}
