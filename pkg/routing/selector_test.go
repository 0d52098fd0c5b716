package routing

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scoresWithFinals(finals map[Path]float64) map[Path]PathScore {
	out := make(map[Path]PathScore, len(finals))
	for p, f := range finals {
		out[p] = PathScore{Path: p, Final: f}
	}
	return out
}

func TestSelector_DegenerateInputs(t *testing.T) {
	s := NewSelector(rand.New(rand.NewPCG(1, 1)))

	p, method := s.Select(nil)
	assert.Equal(t, RespondNormally, p)
	assert.Equal(t, MethodFallback, method)

	p, method = s.Select(scoresWithFinals(map[Path]float64{BoundaryFirm: 10}))
	assert.Equal(t, BoundaryFirm, p)
	assert.Equal(t, MethodOnlyOption, method)
}

func TestSelector_ClearWinnerIsDeterministic(t *testing.T) {
	s := NewSelector(rand.New(rand.NewPCG(7, 7)))
	scores := scoresWithFinals(map[Path]float64{
		PlayfulTease:    90,
		RespondNormally: 60,
		MinimalResponse: 55,
		BoundaryFirm:    20,
	})
	for i := 0; i < 100; i++ {
		p, method := s.Select(scores)
		if p != PlayfulTease || method != MethodClearWinner {
			t.Fatalf("iteration %d: got %s/%s", i, p, method)
		}
	}
}

func TestSelector_MarginIsStrict(t *testing.T) {
	s := NewSelector(rand.New(rand.NewPCG(3, 3)))
	scores := scoresWithFinals(map[Path]float64{PlayfulTease: 80, RespondNormally: 60})
	_, method := s.Select(scores)
	assert.Equal(t, MethodWeightedRandom, method, "a gap of exactly 20 is not a clear winner")
}

func TestSelector_CloseRaceStaysInTopThree(t *testing.T) {
	s := NewSelector(rand.New(rand.NewPCG(42, 99)))
	scores := scoresWithFinals(map[Path]float64{
		RespondNormally:   70,
		PlayfulTease:      65,
		EmotionalReaction: 60,
		MinimalResponse:   30,
		BoundaryFirm:      10,
	})
	seen := map[Path]int{}
	for i := 0; i < 200; i++ {
		p, method := s.Select(scores)
		if method != MethodWeightedRandom {
			t.Fatalf("expected weighted_random, got %s", method)
		}
		seen[p]++
	}
	assert.Len(t, seen, 3)
	for _, p := range []Path{RespondNormally, PlayfulTease, EmotionalReaction} {
		assert.Positive(t, seen[p], "path %s never drawn", p)
	}
	assert.Zero(t, seen[MinimalResponse])
	assert.Zero(t, seen[BoundaryFirm])
}

func TestSelector_NonPositiveWeightsAreShifted(t *testing.T) {
	s := NewSelector(rand.New(rand.NewPCG(5, 5)))
	scores := scoresWithFinals(map[Path]float64{
		RespondNormally: 0,
		PlayfulTease:    -4,
		BoundaryFirm:    -8,
	})
	seen := map[Path]bool{}
	for i := 0; i < 300; i++ {
		p, _ := s.Select(scores)
		seen[p] = true
	}
	assert.True(t, seen[BoundaryFirm], "lowest candidate keeps a weight of 1 after the shift")
}

func TestRank_TiesFollowCanonicalOrder(t *testing.T) {
	ranked := Rank(scoresWithFinals(map[Path]float64{
		BoundaryFirm:    50,
		PlayfulTease:    50,
		RespondNormally: 50,
	}))
	got := []Path{ranked[0].Path, ranked[1].Path, ranked[2].Path}
	assert.Equal(t, []Path{RespondNormally, PlayfulTease, BoundaryFirm}, got)
}
