package reengage

import (
	"fmt"
	"sort"
	"time"
)

// TurnDuration is the assumed wall-clock length of one conversational turn,
// used to turn elapsed time into elapsed turns for freshness.
const TurnDuration = 30 * time.Second

// MinFreshness excludes topics used too recently.
const MinFreshness = 0.2

// Library holds one session's copy of the catalog with its usage tracking.
type Library struct {
	topics  map[string]*Topic
	ids     []string
	history map[string][]time.Time
}

// NewLibrary deep-copies cat so usage never leaks across sessions.
func NewLibrary(cat Catalog) *Library {
	l := &Library{
		topics:  make(map[string]*Topic, len(cat)),
		history: make(map[string][]time.Time),
	}
	for i := range cat {
		t := cat[i].clone()
		l.topics[t.ID] = t
		l.ids = append(l.ids, t.ID)
	}
	sort.Strings(l.ids)
	return l
}

func (l *Library) Topic(id string) (*Topic, error) {
	t, ok := l.topics[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	return t, nil
}

// Topics returns the live topics sorted by id.
func (l *Library) Topics() []*Topic {
	out := make([]*Topic, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.topics[id])
	}
	return out
}

func (l *Library) ByCategory(c Category) []*Topic {
	var out []*Topic
	for _, t := range l.Topics() {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

// Freshness is 1 for an unused topic and otherwise steps up with the turns
// elapsed since its last use. The value is cached on the topic.
func (l *Library) Freshness(t *Topic, now time.Time) float64 {
	f := freshnessFor(t.LastUsed, now)
	t.Freshness = f
	return f
}

func freshnessFor(lastUsed *time.Time, now time.Time) float64 {
	if lastUsed == nil {
		return 1
	}
	turns := int(now.Sub(*lastUsed) / TurnDuration)
	switch {
	case turns >= 30:
		return 0.9
	case turns >= 20:
		return 0.7
	case turns >= 10:
		return 0.5
	case turns >= 5:
		return 0.3
	default:
		return 0.1
	}
}

func (l *Library) RecordUsage(t *Topic, at time.Time) {
	used := at
	t.LastUsed = &used
	t.TimesUsed++
	l.history[t.ID] = append(l.history[t.ID], at)
}

// UsageHistory returns the injection times recorded for id.
func (l *Library) UsageHistory(id string) []time.Time {
	return append([]time.Time(nil), l.history[id]...)
}

// ApplyStats seeds learned success rates; unknown ids are ignored.
func (l *Library) ApplyStats(stats map[string]TopicStats) {
	for id, s := range stats {
		if t, ok := l.topics[id]; ok {
			t.SuccessRate = clamp01(s.SuccessRate)
		}
	}
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
