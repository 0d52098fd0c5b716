package routing

// PathScore is recomputed for every path on every turn.
type PathScore struct {
	Path             Path    `json:"path"`
	Base             float64 `json:"base_score"`
	Context          float64 `json:"context_modifier"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	Personality      float64 `json:"personality_bias"`
	Compatibility    float64 `json:"compatibility_score"`
	EnergyAlignment  float64 `json:"energy_alignment"`
	Stage            float64 `json:"relationship_stage_modifier"`
	Final            float64 `json:"final_score"`
	Reasoning        string  `json:"reasoning"`
}

// Weights blends the modifiers into the final score. They sum to 1.
type Weights struct {
	Base            float64
	Context         float64
	Frequency       float64
	Personality     float64
	Compatibility   float64
	EnergyAlignment float64
	Stage           float64
}

func DefaultWeights() Weights {
	return Weights{
		Base:            0.35,
		Context:         0.15,
		Frequency:       0.20,
		Personality:     0.10,
		Compatibility:   0.10,
		EnergyAlignment: 0.05,
		Stage:           0.05,
	}
}

func (w Weights) Sum() float64 {
	return w.Base + w.Context + w.Frequency + w.Personality + w.Compatibility + w.EnergyAlignment + w.Stage
}

// FinalScore applies the weights. The frequency term uses 100 minus the penalty.
func (w Weights) FinalScore(s PathScore) float64 {
	return s.Base*w.Base +
		s.Context*w.Context +
		(100-s.FrequencyPenalty)*w.Frequency +
		s.Personality*w.Personality +
		s.Compatibility*w.Compatibility +
		s.EnergyAlignment*w.EnergyAlignment +
		s.Stage*w.Stage
}
