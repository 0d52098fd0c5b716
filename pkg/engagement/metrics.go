// Package engagement tracks how invested the user is in the conversation
// and detects repetitive conversational loops.
package engagement

import "time"

const DefaultBufferSize = 10

type Direction string

const (
	Rising  Direction = "rising"
	Stable  Direction = "stable"
	Falling Direction = "falling"
)

// Metrics is the per-session rolling engagement state. Every trend buffer
// holds at most the configured number of samples, oldest first.
type Metrics struct {
	MessageLength        []int     `json:"message_length_trend"`
	EmojiDensity         []float64 `json:"emoji_density_trend"`
	PunctuationIntensity []float64 `json:"punctuation_intensity"`
	QuestionRatio        []float64 `json:"question_ratio"`
	EngagementWords      []int     `json:"engagement_words_count"`

	Score         float64   `json:"current_engagement_score"`
	Trend         Direction `json:"engagement_trend"`
	TrendVelocity float64   `json:"trend_velocity"`
	Depth         float64   `json:"conversation_depth_score"`

	DeadEndCount         int `json:"dead_end_count"`
	TopicRepetitionCount int `json:"topic_repetition_count"`

	LastEngagementDrop *time.Time `json:"last_engagement_drop,omitempty"`
	LastReengagement   *time.Time `json:"last_reengagement,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{Score: 0.5, Trend: Stable, Depth: 0.5}
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (m *Metrics) Snapshot() Metrics {
	out := *m
	out.MessageLength = append([]int(nil), m.MessageLength...)
	out.EmojiDensity = append([]float64(nil), m.EmojiDensity...)
	out.PunctuationIntensity = append([]float64(nil), m.PunctuationIntensity...)
	out.QuestionRatio = append([]float64(nil), m.QuestionRatio...)
	out.EngagementWords = append([]int(nil), m.EngagementWords...)
	if m.LastEngagementDrop != nil {
		t := *m.LastEngagementDrop
		out.LastEngagementDrop = &t
	}
	if m.LastReengagement != nil {
		t := *m.LastReengagement
		out.LastReengagement = &t
	}
	return out
}

func pushInt(buf []int, v, size int) []int {
	buf = append(buf, v)
	if len(buf) > size {
		buf = append(buf[:0:0], buf[len(buf)-size:]...)
	}
	return buf
}

func pushFloat(buf []float64, v float64, size int) []float64 {
	buf = append(buf, v)
	if len(buf) > size {
		buf = append(buf[:0:0], buf[len(buf)-size:]...)
	}
	return buf
}

func tailFloat(buf []float64, n int) []float64 {
	if len(buf) <= n {
		return buf
	}
	return buf[len(buf)-n:]
}

func tailInt(buf []int, n int) []float64 {
	if len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	out := make([]float64, len(buf))
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out
}
