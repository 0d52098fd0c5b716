package routing

// NeutralScore is returned by every table lookup that has no entry.
const NeutralScore = 50.0

// PreferenceTable maps a context dimension (mood, stage, energy key) to
// per-path scores on a 0-100 scale.
type PreferenceTable map[string]map[Path]float64

// Lookup returns the score for path under dimension, or NeutralScore.
func (t PreferenceTable) Lookup(dimension string, p Path) float64 {
	row, ok := t[dimension]
	if !ok {
		return NeutralScore
	}
	if v, ok := row[p]; ok {
		return v
	}
	return NeutralScore
}

// Has reports whether dimension has a row.
func (t PreferenceTable) Has(dimension string) bool {
	_, ok := t[dimension]
	return ok
}
