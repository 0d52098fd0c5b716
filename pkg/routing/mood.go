package routing

import "github.com/dotsetgreg/dotpersona/pkg/energy"

type Mood string

const (
	MoodPlayful    Mood = "playful"
	MoodDramatic   Mood = "dramatic"
	MoodVulnerable Mood = "vulnerable"
	MoodConfident  Mood = "confident"
)

var moodBiases = PreferenceTable{
	string(MoodPlayful): {
		PlayfulTease: 90, RespondNormally: 70, MinimalResponse: 60, IgnoreSelfFocus: 50,
		EmotionalReaction: 40, RespondWithConfusion: 45, DeflectRedirect: 45,
		JealousPossessive: 65, VulnerableReassurance: 40, BoundaryFirm: 55,
	},
	string(MoodDramatic): {
		IgnoreSelfFocus: 95, EmotionalReaction: 85, VulnerableReassurance: 70, RespondNormally: 50,
		PlayfulTease: 60, MinimalResponse: 30, RespondWithConfusion: 45, DeflectRedirect: 55,
		JealousPossessive: 75, BoundaryFirm: 50,
	},
	string(MoodVulnerable): {
		VulnerableReassurance: 90, EmotionalReaction: 75, RespondNormally: 65, IgnoreSelfFocus: 60,
		PlayfulTease: 40, MinimalResponse: 35, RespondWithConfusion: 50, DeflectRedirect: 45,
		JealousPossessive: 70, BoundaryFirm: 55,
	},
	string(MoodConfident): {
		RespondNormally: 85, PlayfulTease: 85, MinimalResponse: 65, BoundaryFirm: 80,
		IgnoreSelfFocus: 40, EmotionalReaction: 50, RespondWithConfusion: 35, DeflectRedirect: 45,
		JealousPossessive: 60, VulnerableReassurance: 30,
	},
}

// moodRule is one row of the ordered mood transition table.
type moodRule struct {
	name  string
	match func(sig energy.Signature, engagement float64) bool
	apply func(m *MoodState)
}

var moodRules = []moodRule{
	{
		name:  "engaged_playful",
		match: func(sig energy.Signature, e float64) bool { return e > 0.7 && sig.Type == energy.TypePlayful },
		apply: func(m *MoodState) {
			m.Mood = MoodPlayful
			m.Playfulness = clamp01(m.Playfulness + 0.1)
		},
	},
	{
		name:  "disengaged",
		match: func(_ energy.Signature, e float64) bool { return e < 0.3 },
		apply: func(m *MoodState) {
			m.Mood = MoodDramatic
			m.Drama = clamp01(m.Drama + 0.1)
		},
	},
	{
		name:  "intimate",
		match: func(sig energy.Signature, _ float64) bool { return sig.Type == energy.TypeIntimate },
		apply: func(m *MoodState) {
			m.Mood = MoodVulnerable
			m.Confidence = clamp01(m.Confidence - 0.05)
		},
	},
	{
		name:  "combative",
		match: func(sig energy.Signature, _ float64) bool { return sig.Type == energy.TypeCombative },
		apply: func(m *MoodState) {
			m.Mood = MoodConfident
			m.Confidence = clamp01(m.Confidence + 0.1)
		},
	},
}

// MoodState is the persona's session-scoped mood plus three bounded dials.
type MoodState struct {
	Mood        Mood    `json:"current_mood"`
	Playfulness float64 `json:"playfulness"`
	Drama       float64 `json:"drama_level"`
	Confidence  float64 `json:"confidence"`
}

func NewMoodState() *MoodState {
	return &MoodState{Mood: MoodPlayful, Playfulness: 0.7, Drama: 0.5, Confidence: 0.8}
}

func (m *MoodState) Bias(p Path) float64 {
	return moodBiases.Lookup(string(m.Mood), p)
}

// Update applies the first matching rule and reports its name ("" when the
// mood is left unchanged).
func (m *MoodState) Update(sig energy.Signature, engagement float64) string {
	for _, rule := range moodRules {
		if rule.match(sig, engagement) {
			rule.apply(m)
			return rule.name
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
