package engagement

import (
	"strings"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

const (
	DefaultWarmupMessages = 7

	questionBoost   = 0.3
	imperativeBoost = 0.2
	dropThreshold   = 0.4
	recoveryLevel   = 0.5
	deadEndWords    = 10
)

var engagementWords = []string{"omg", "really", "wow", "seriously", "amazing", "love", "hate", "crazy"}

type Options struct {
	WarmupMessages  int
	BufferSize      int
	LoopWindow      int
	MinLoopMessages int
	Clock           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		WarmupMessages:  DefaultWarmupMessages,
		BufferSize:      DefaultBufferSize,
		LoopWindow:      DefaultLoopWindow,
		MinLoopMessages: DefaultMinLoopMessages,
	}
}

// Monitor owns one session's engagement metrics. Not safe for concurrent use.
type Monitor struct {
	scorer  Scorer
	depth   DepthAnalyzer
	loops   *LoopDetector
	trend   TrendAnalyzer
	metrics *Metrics
	warmup  int
	bufSize int
	now     func() time.Time
}

func NewMonitor(opts Options) *Monitor {
	def := DefaultOptions()
	if opts.WarmupMessages <= 0 {
		opts.WarmupMessages = def.WarmupMessages
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	loops := NewLoopDetector()
	if opts.LoopWindow > 0 {
		loops.Window = opts.LoopWindow
	}
	if opts.MinLoopMessages > 0 {
		loops.MinMessages = opts.MinLoopMessages
	}
	return &Monitor{
		scorer:  NewScorer(),
		loops:   loops,
		metrics: NewMetrics(),
		warmup:  opts.WarmupMessages,
		bufSize: opts.BufferSize,
		now:     opts.Clock,
	}
}

// Metrics returns the live metrics owned by the monitor.
func (m *Monitor) Metrics() *Metrics { return m.metrics }

// Ready reports whether the conversation is past the warm-up gate.
func (m *Monitor) Ready(conv *conversation.Context) bool {
	return conv != nil && conv.Len() >= m.warmup
}

// Update folds one user message into the rolling metrics. Before warm-up it
// returns the metrics untouched.
func (m *Monitor) Update(message string, conv *conversation.Context, sig *energy.Signature) *Metrics {
	if !m.Ready(conv) {
		return m.metrics
	}
	mt := m.metrics
	lower := strings.ToLower(message)
	words := conversation.WordCount(message)

	chars := len([]rune(message))
	if chars < 1 {
		chars = 1
	}
	wordDenom := words
	if wordDenom < 1 {
		wordDenom = 1
	}
	question := 0.0
	if strings.Contains(message, "?") {
		question = 1
	}
	hits := 0
	for _, w := range engagementWords {
		if strings.Contains(lower, w) {
			hits++
		}
	}

	mt.MessageLength = pushInt(mt.MessageLength, words, m.bufSize)
	mt.EmojiDensity = pushFloat(mt.EmojiDensity, float64(conversation.CountEmoji(message))/float64(chars), m.bufSize)
	mt.PunctuationIntensity = pushFloat(mt.PunctuationIntensity, float64(conversation.CountExpressivePunct(message))/float64(wordDenom), m.bufSize)
	mt.QuestionRatio = pushFloat(mt.QuestionRatio, question, m.bufSize)
	mt.EngagementWords = pushInt(mt.EngagementWords, hits, m.bufSize)

	mt.Depth = m.depth.Depth(message)
	mt.Score = m.scorer.Score(mt, sig)

	// Direct asks are applied on top of the clamped base score.
	switch {
	case conversation.IsQuestion(message):
		mt.Score = min(1, mt.Score+questionBoost)
	case conversation.HasImperative(message):
		mt.Score = min(1, mt.Score+imperativeBoost)
	}

	conv.AppendEngagement(mt.Score)
	trend := m.trend.Analyze(conv.EngagementHistory)
	mt.Trend = trend.Direction
	mt.TrendVelocity = trend.Velocity

	if words < deadEndWords {
		mt.DeadEndCount++
	} else {
		mt.DeadEndCount = 0
	}

	switch {
	case mt.Score < dropThreshold && mt.LastEngagementDrop == nil:
		at := m.now()
		mt.LastEngagementDrop = &at
	case mt.Score >= recoveryLevel:
		mt.LastEngagementDrop = nil
	}

	logger.DebugCF("engagement", "Metrics updated", map[string]any{
		"score":     mt.Score,
		"trend":     string(mt.Trend),
		"velocity":  mt.TrendVelocity,
		"depth":     mt.Depth,
		"dead_ends": mt.DeadEndCount,
	})
	return mt
}

// DetectLoops runs the loop detector and records a positive result in the
// conversation's loop history.
func (m *Monitor) DetectLoops(conv *conversation.Context) LoopAnalysis {
	res := m.loops.Detect(conv)
	if !res.Detected {
		return res
	}
	if res.Type == LoopTopicExhaustion {
		m.metrics.TopicRepetitionCount++
	}
	conv.AppendLoop(conversation.LoopRecord{At: m.now(), Type: string(res.Type), Severity: res.Severity})
	logger.DebugCF("engagement", "Loop detected", map[string]any{
		"type":       string(res.Type),
		"severity":   res.Severity,
		"confidence": res.Confidence,
	})
	return res
}

// MarkReengagement stamps the metrics when a topic injection fires.
func (m *Monitor) MarkReengagement(at time.Time) {
	m.metrics.LastReengagement = &at
}
