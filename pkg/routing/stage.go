package routing

type Stage string

const (
	StageEarly       Stage = "early"
	StageDeveloping  Stage = "developing"
	StageEstablished Stage = "established"
)

// StageFor is the pure threshold function over a message count.
func StageFor(count int) Stage {
	switch {
	case count < 10:
		return StageEarly
	case count < 50:
		return StageDeveloping
	default:
		return StageEstablished
	}
}

var stageModifiers = PreferenceTable{
	string(StageEarly): {
		RespondNormally: 80, PlayfulTease: 70, MinimalResponse: 60, VulnerableReassurance: 30,
		IgnoreSelfFocus: 60, EmotionalReaction: 50, RespondWithConfusion: 55, DeflectRedirect: 50,
		JealousPossessive: 50, BoundaryFirm: 70,
	},
	string(StageDeveloping): {
		RespondNormally: 75, PlayfulTease: 80, MinimalResponse: 65, VulnerableReassurance: 60,
		IgnoreSelfFocus: 65, EmotionalReaction: 70, RespondWithConfusion: 60, DeflectRedirect: 60,
		JealousPossessive: 75, BoundaryFirm: 65,
	},
	string(StageEstablished): {
		RespondNormally: 70, PlayfulTease: 80, MinimalResponse: 70, VulnerableReassurance: 80,
		IgnoreSelfFocus: 40, EmotionalReaction: 75, RespondWithConfusion: 55, DeflectRedirect: 55,
		JealousPossessive: 80, BoundaryFirm: 70,
	},
}

// StageTracker counts processed user turns. Increment must be called exactly
// once per turn; the Router owns that call.
type StageTracker struct {
	count int
}

func NewStageTracker() *StageTracker { return &StageTracker{} }

func (s *StageTracker) Increment()        { s.count++ }
func (s *StageTracker) MessageCount() int { return s.count }
func (s *StageTracker) Stage() Stage      { return StageFor(s.count) }

func (s *StageTracker) Modifier(p Path) float64 {
	return stageModifiers.Lookup(string(s.Stage()), p)
}
