package engagement

import "github.com/dotsetgreg/dotpersona/pkg/energy"

const scoreSampleWindow = 5

// ScoreWeights sum to 1.
type ScoreWeights struct {
	MessageLength       float64
	EmotionalExpression float64
	QuestionAsking      float64
	ResponseVariety     float64
	EnergyIntensity     float64
	ConversationDepth   float64
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		MessageLength:       0.25,
		EmotionalExpression: 0.20,
		QuestionAsking:      0.15,
		ResponseVariety:     0.15,
		EnergyIntensity:     0.15,
		ConversationDepth:   0.10,
	}
}

type Scorer struct {
	Weights ScoreWeights
}

func NewScorer() Scorer { return Scorer{Weights: DefaultScoreWeights()} }

// Score blends the last five samples of each buffer into [0,1]. Empty
// buffers fall back to fixed defaults rather than failing.
func (s Scorer) Score(m *Metrics, sig *energy.Signature) float64 {
	lengths := tailInt(m.MessageLength, scoreSampleWindow)

	lengthScore := 0.5
	if len(lengths) > 0 {
		lengthScore = clamp01(mean(lengths) / 50)
	}

	expression := 0.5
	if len(m.EmojiDensity) > 0 && len(m.PunctuationIntensity) > 0 {
		expression = (mean(tailFloat(m.EmojiDensity, scoreSampleWindow)) +
			mean(tailFloat(m.PunctuationIntensity, scoreSampleWindow))) / 2
	}

	question := 0.3
	if len(m.QuestionRatio) > 0 {
		question = clamp01(mean(tailFloat(m.QuestionRatio, scoreSampleWindow)))
	}

	variety := 0.5
	if len(m.MessageLength) >= scoreSampleWindow {
		if sd, ok := stddev(lengths); ok {
			variety = clamp01(sd / 20)
		}
	}

	intensity := 0.5
	if sig != nil {
		intensity = sig.Intensity
	}

	w := s.Weights
	return clamp01(lengthScore*w.MessageLength +
		expression*w.EmotionalExpression +
		question*w.QuestionAsking +
		variety*w.ResponseVariety +
		intensity*w.EnergyIntensity +
		m.Depth*w.ConversationDepth)
}
