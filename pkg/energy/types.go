// Package energy models the emotional/energy state inferred for a single
// user message.
package energy

import (
	"fmt"
	"strings"
	"time"
)

// Level is ordered: LevelNone < LevelLow < LevelMedium < LevelHigh < LevelIntense.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelIntense
)

var levelNames = [...]string{"none", "low", "medium", "high", "intense"}

func (l Level) String() string {
	if l < LevelNone || l > LevelIntense {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelNone, fmt.Errorf("unknown energy level %q", s)
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

type Type string

const (
	TypeCombative   Type = "combative"
	TypeCooperative Type = "cooperative"
	TypeNeutral     Type = "neutral"
	TypePlayful     Type = "playful"
	TypeIntimate    Type = "intimate"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeCombative, TypeCooperative, TypeNeutral, TypePlayful, TypeIntimate:
		return t, nil
	default:
		return TypeNeutral, fmt.Errorf("unknown energy type %q", s)
	}
}

type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionAnxious  Emotion = "anxious"
	EmotionJealous  Emotion = "jealous"
	EmotionLoving   Emotion = "loving"
	EmotionExcited  Emotion = "excited"
	EmotionBored    Emotion = "bored"
	EmotionConfused Emotion = "confused"
	EmotionGrateful Emotion = "grateful"
)

// emotionAliases maps labels classifiers commonly return that are not in
// the closed set.
var emotionAliases = map[string]Emotion{
	"playful":  EmotionHappy,
	"flirty":   EmotionExcited,
	"romantic": EmotionLoving,
	"neutral":  EmotionHappy,
}

// ParseEmotion never fails: aliases are mapped and unknown labels become happy.
func ParseEmotion(s string) Emotion {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := emotionAliases[s]; ok {
		return alias
	}
	switch e := Emotion(s); e {
	case EmotionHappy, EmotionSad, EmotionAngry, EmotionAnxious, EmotionJealous,
		EmotionLoving, EmotionExcited, EmotionBored, EmotionConfused, EmotionGrateful:
		return e
	default:
		return EmotionHappy
	}
}

type NervousState string

const (
	NervousRestAndDigest NervousState = "rest_and_digest"
	NervousFight         NervousState = "fight"
	NervousFlight        NervousState = "flight"
	NervousFreeze        NervousState = "freeze"
	NervousFawn          NervousState = "fawn"
)

func ParseNervousState(s string) (NervousState, error) {
	switch n := NervousState(strings.ToLower(strings.TrimSpace(s))); n {
	case NervousRestAndDigest, NervousFight, NervousFlight, NervousFreeze, NervousFawn:
		return n, nil
	default:
		return NervousRestAndDigest, fmt.Errorf("unknown nervous system state %q", s)
	}
}

// Signature is created once per message and never mutated afterwards.
type Signature struct {
	Timestamp  time.Time    `json:"timestamp"`
	Level      Level        `json:"energy_level"`
	Type       Type         `json:"energy_type"`
	Emotion    Emotion      `json:"dominant_emotion"`
	Nervous    NervousState `json:"nervous_system_state"`
	Intensity  float64      `json:"intensity_score"`
	Confidence float64      `json:"confidence"`
}

// Clamp returns a copy with Intensity and Confidence bounded to [0,1].
func (s Signature) Clamp() Signature {
	s.Intensity = clamp01(s.Intensity)
	s.Confidence = clamp01(s.Confidence)
	return s
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
