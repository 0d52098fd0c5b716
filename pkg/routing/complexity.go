package routing

import (
	"strings"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
)

type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityDeep     Complexity = "deep"
	ComplexityWeird    Complexity = "weird"
)

var stockPhrases = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yes": {}, "no": {}, "yeah": {}, "nah": {},
	"ok": {}, "okay": {}, "cool": {}, "nice": {}, "thanks": {}, "lol": {}, "haha": {},
}

var deepKeywords = []string{
	"philosophy", "quantum", "theory", "political", "religion", "spiritual",
	"existential", "consciousness", "meaning of life", "universe", "god",
	"ethics", "morality", "science", "physics", "psychology", "society",
}

var weirdKeywords = []string{
	"alien", "conspiracy", "illuminati", "flat earth", "reptilian",
	"simulation", "matrix", "dimension", "astral", "chakra",
}

type complexityRule struct {
	class Complexity
	match func(lower string, words int) bool
}

// Evaluated in order; first match wins.
var complexityRules = []complexityRule{
	{ComplexitySimple, func(lower string, words int) bool {
		_, stock := stockPhrases[lower]
		return words <= 3 || stock
	}},
	{ComplexityDeep, func(lower string, _ int) bool { return conversation.ContainsAny(lower, deepKeywords) }},
	{ComplexityWeird, func(lower string, _ int) bool { return conversation.ContainsAny(lower, weirdKeywords) }},
}

func ClassifyComplexity(message string) Complexity {
	lower := strings.ToLower(strings.TrimSpace(message))
	words := conversation.WordCount(message)
	for _, rule := range complexityRules {
		if rule.match(lower, words) {
			return rule.class
		}
	}
	return ComplexityModerate
}

type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// IntensityBucket maps a signature's intensity score; nil is medium.
func IntensityBucket(sig *energy.Signature) Intensity {
	if sig == nil {
		return IntensityMedium
	}
	switch {
	case sig.Intensity <= 0.3:
		return IntensityLow
	case sig.Intensity <= 0.7:
		return IntensityMedium
	default:
		return IntensityHigh
	}
}
