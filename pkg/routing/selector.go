package routing

import (
	"math/rand/v2"
	"sort"
)

type SelectionMethod string

const (
	MethodFallback       SelectionMethod = "fallback"
	MethodOnlyOption     SelectionMethod = "only_option"
	MethodClearWinner    SelectionMethod = "clear_winner"
	MethodWeightedRandom SelectionMethod = "weighted_random"
	// MethodForced marks a path imposed by topic re-engagement.
	MethodForced SelectionMethod = "forced"
)

const (
	DefaultClearWinnerMargin = 20.0
	DefaultTopCandidates     = 3
)

// Selector picks one path from the scored set. The random source is
// injected so sessions and tests control reproducibility.
type Selector struct {
	rng    *rand.Rand
	Margin float64
	TopN   int
}

func NewSelector(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng, Margin: DefaultClearWinnerMargin, TopN: DefaultTopCandidates}
}

// Rank orders scores by final score, highest first. Equal scores keep the
// canonical path order.
func Rank(scores map[Path]PathScore) []PathScore {
	ranked := make([]PathScore, 0, len(scores))
	for p, s := range scores {
		s.Path = p
		ranked = append(ranked, s)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Final != ranked[j].Final {
			return ranked[i].Final > ranked[j].Final
		}
		return pathIndex(ranked[i].Path) < pathIndex(ranked[j].Path)
	})
	return ranked
}

func (s *Selector) Select(scores map[Path]PathScore) (Path, SelectionMethod) {
	ranked := Rank(scores)
	switch len(ranked) {
	case 0:
		return RespondNormally, MethodFallback
	case 1:
		return ranked[0].Path, MethodOnlyOption
	}

	if ranked[0].Final-ranked[1].Final > s.Margin {
		return ranked[0].Path, MethodClearWinner
	}

	n := s.TopN
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	candidates := ranked[:n]
	weights := make([]float64, n)
	minWeight := candidates[0].Final
	for i, c := range candidates {
		weights[i] = c.Final
		if c.Final < minWeight {
			minWeight = c.Final
		}
	}
	if minWeight <= 0 {
		shift := 1 - minWeight
		for i := range weights {
			weights[i] += shift
		}
	}
	return candidates[s.draw(weights)].Path, MethodWeightedRandom
}

func (s *Selector) draw(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := s.rng.Float64() * total
	for i, w := range weights {
		if target < w {
			return i
		}
		target -= w
	}
	return len(weights) - 1
}
