package routing

const (
	compatibleScore   = 80.0
	incompatibleScore = 20.0
)

type transitionRule struct {
	goodAfter  []Path
	avoidAfter []Path
}

// CompatibilityMatrix scores how natural a transition from the previous path feels.
type CompatibilityMatrix struct {
	rules map[Path]transitionRule
}

func NewCompatibilityMatrix() *CompatibilityMatrix {
	return &CompatibilityMatrix{rules: map[Path]transitionRule{
		RespondNormally: {
			goodAfter:  []Path{RespondNormally, PlayfulTease, EmotionalReaction},
			avoidAfter: []Path{IgnoreSelfFocus, DeflectRedirect},
		},
		RespondWithConfusion: {
			goodAfter:  []Path{RespondNormally, PlayfulTease},
			avoidAfter: []Path{RespondWithConfusion, IgnoreSelfFocus},
		},
		DeflectRedirect: {
			goodAfter:  []Path{RespondNormally, PlayfulTease},
			avoidAfter: []Path{DeflectRedirect, IgnoreSelfFocus},
		},
		MinimalResponse: {
			goodAfter:  []Path{MinimalResponse, PlayfulTease},
			avoidAfter: []Path{IgnoreSelfFocus, EmotionalReaction},
		},
		IgnoreSelfFocus: {
			goodAfter:  []Path{RespondNormally, PlayfulTease},
			avoidAfter: []Path{IgnoreSelfFocus, DeflectRedirect, MinimalResponse},
		},
		EmotionalReaction: {
			goodAfter:  []Path{RespondNormally, EmotionalReaction, VulnerableReassurance},
			avoidAfter: []Path{MinimalResponse, IgnoreSelfFocus},
		},
		JealousPossessive: {
			goodAfter:  []Path{RespondNormally, EmotionalReaction},
			avoidAfter: []Path{MinimalResponse, IgnoreSelfFocus},
		},
		PlayfulTease: {
			goodAfter:  []Path{RespondNormally, PlayfulTease, MinimalResponse},
			avoidAfter: []Path{IgnoreSelfFocus, EmotionalReaction, VulnerableReassurance},
		},
		VulnerableReassurance: {
			goodAfter:  []Path{RespondNormally, EmotionalReaction},
			avoidAfter: []Path{MinimalResponse, PlayfulTease, IgnoreSelfFocus},
		},
		BoundaryFirm: {
			goodAfter:  []Path{RespondNormally, DeflectRedirect},
			avoidAfter: []Path{IgnoreSelfFocus, VulnerableReassurance},
		},
	}}
}

// Score returns 80 for a good transition, 20 for a jarring one and 50
// otherwise, including the first turn (hasPrevious=false).
func (m *CompatibilityMatrix) Score(current, previous Path, hasPrevious bool) float64 {
	if !hasPrevious {
		return NeutralScore
	}
	rule, ok := m.rules[current]
	if !ok {
		return NeutralScore
	}
	if containsPath(rule.goodAfter, previous) {
		return compatibleScore
	}
	if containsPath(rule.avoidAfter, previous) {
		return incompatibleScore
	}
	return NeutralScore
}

func containsPath(list []Path, p Path) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}
