package engagement

const trendWindow = 10

type TrendAnalysis struct {
	Direction  Direction `json:"trend_direction"`
	Velocity   float64   `json:"trend_velocity"`
	Confidence float64   `json:"trend_confidence"`
	Critical   bool      `json:"is_critical"`
}

type TrendAnalyzer struct{}

// Analyze compares the two halves of the last ten scores. Fewer than three
// points yield a stable trend.
func (TrendAnalyzer) Analyze(history []float64) TrendAnalysis {
	if len(history) < 3 {
		return TrendAnalysis{Direction: Stable}
	}
	recent := tailFloat(history, trendWindow)
	half := len(recent) / 2
	first, second := mean(recent[:half]), mean(recent[half:])
	velocity := (second - first) / max(0.1, first)

	out := TrendAnalysis{Direction: Stable, Velocity: velocity}
	switch {
	case velocity < -0.1:
		out.Direction = Falling
		out.Critical = velocity < -0.3
	case velocity > 0.1:
		out.Direction = Rising
	}

	out.Confidence = 0.5
	if sd, ok := stddev(recent); ok {
		out.Confidence = 1 - min(1, sd/max(0.1, mean(recent)))
	}
	return out
}
