package engagement

import (
	"strings"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
)

type depthTier struct {
	score    float64
	keywords []string
}

// Tiers run surface, casual, engaged, deep.
var depthTiers = []depthTier{
	{0.2, []string{"hi", "hey", "yeah", "ok", "cool", "nice", "lol", "k", "yep", "nah"}},
	{0.4, []string{"how", "what", "doing", "day", "good", "fine", "work", "weather"}},
	{0.6, []string{"because", "feel", "think", "really", "actually", "guess", "maybe", "probably"}},
	{0.8, []string{"love", "care", "want", "need", "miss", "dream", "hope", "wish", "feel like", "heart"}},
}

var (
	followupPhrases   = []string{"why", "how", "what about", "tell me more"}
	disclosurePhrases = []string{"i feel", "i think", "i want", "i need", "i love", "i hate", "i wish"}
)

// DepthAnalyzer scores how deep a single user message goes, from 0
// (surface chatter) to 1 (personal disclosure).
type DepthAnalyzer struct{}

func (DepthAnalyzer) Depth(message string) float64 {
	lower := strings.ToLower(message)

	length := clamp01(float64(len([]rune(message))) / 100)

	keyword := 0.0
	for _, tier := range depthTiers {
		if conversation.ContainsAny(lower, tier.keywords) && tier.score > keyword {
			keyword = tier.score
		}
	}
	if keyword == 0 {
		keyword = 0.3
	}

	followup := 0.3
	if conversation.ContainsAny(lower, followupPhrases) {
		followup = 0.7
	}
	personal := 0.4
	if conversation.ContainsAny(lower, disclosurePhrases) {
		personal = 0.8
	}

	return clamp01(length*0.2 + keyword*0.4 + followup*0.2 + personal*0.2)
}
