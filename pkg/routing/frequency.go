package routing

// DefaultFrequencyWindow is the number of recent choices the penalty looks at.
const DefaultFrequencyWindow = 10

// PenaltyForCount maps recent-use count to the overuse penalty.
func PenaltyForCount(n int) float64 {
	switch {
	case n >= 4:
		return 60
	case n == 3:
		return 40
	case n == 2:
		return 20
	case n == 1:
		return 5
	default:
		return 0
	}
}

// FrequencyTracker records chosen paths in a FIFO window plus lifetime counts.
type FrequencyTracker struct {
	window int
	recent []Path
	counts map[Path]int
}

func NewFrequencyTracker(window int) *FrequencyTracker {
	if window <= 0 {
		window = DefaultFrequencyWindow
	}
	return &FrequencyTracker{window: window, counts: make(map[Path]int)}
}

func (f *FrequencyTracker) RecordUsage(p Path) {
	f.counts[p]++
	f.recent = append(f.recent, p)
	if len(f.recent) > f.window {
		f.recent = f.recent[len(f.recent)-f.window:]
	}
}

func (f *FrequencyTracker) RecentCount(p Path) int {
	n := 0
	for _, r := range f.recent {
		if r == p {
			n++
		}
	}
	return n
}

func (f *FrequencyTracker) Penalty(p Path) float64 {
	return PenaltyForCount(f.RecentCount(p))
}

// Previous returns the most recently recorded path.
func (f *FrequencyTracker) Previous() (Path, bool) {
	if len(f.recent) == 0 {
		return "", false
	}
	return f.recent[len(f.recent)-1], true
}

func (f *FrequencyTracker) Recent() []Path {
	out := make([]Path, len(f.recent))
	copy(out, f.recent)
	return out
}

func (f *FrequencyTracker) UsageStats() map[Path]int {
	out := make(map[Path]int, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out
}
