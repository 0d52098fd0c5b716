package reengage

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/routing"
)

const topTopicCandidates = 3

// Selector picks a topic for an injection.
type Selector struct {
	rng *rand.Rand
}

func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng}
}

type scoredTopic struct {
	topic *Topic
	score float64
}

// candidates filters the library and scores the survivors, best first.
// Stage is derived from the conversation's message count.
func (s *Selector) candidates(lib *Library, conv *conversation.Context, sig *energy.Signature, d Decision, now time.Time) []scoredTopic {
	stage := routing.StageFor(conv.Len())
	var out []scoredTopic
	for _, t := range lib.Topics() {
		if t.Stage != StageAny && t.Stage != stage {
			continue
		}
		if sig != nil && (sig.Level < t.MinEnergy || sig.Level > t.MaxEnergy) {
			continue
		}
		if d.Category != "" && t.Category != d.Category {
			continue
		}
		fresh := lib.Freshness(t, now)
		if fresh < MinFreshness {
			continue
		}
		out = append(out, scoredTopic{topic: t, score: scoreTopic(t, fresh, sig)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func scoreTopic(t *Topic, freshness float64, sig *energy.Signature) float64 {
	score := freshness*0.4 + t.SuccessRate*0.3 + 0.1
	if sig != nil {
		if c, ok := energyCategory(sig.Type); ok && c == t.Category {
			score += 0.2
		} else {
			score += 0.1
		}
	}
	return score
}

func energyCategory(t energy.Type) (Category, bool) {
	switch t {
	case energy.TypePlayful:
		return CategoryPlayful, true
	case energy.TypeIntimate:
		return CategoryIntimate, true
	default:
		return "", false
	}
}

// Select returns nil when no topic survives filtering.
func (s *Selector) Select(lib *Library, conv *conversation.Context, sig *energy.Signature, d Decision, now time.Time) *Topic {
	candidates := s.candidates(lib, conv, sig, d, now)
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) > topTopicCandidates {
		candidates = candidates[:topTopicCandidates]
	}
	total := 0.0
	for _, c := range candidates {
		total += c.score
	}
	target := s.rng.Float64() * total
	for _, c := range candidates {
		if target < c.score {
			return c.topic
		}
		target -= c.score
	}
	return candidates[len(candidates)-1].topic
}
