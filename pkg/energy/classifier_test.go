package energy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrdering(t *testing.T) {
	if !(LevelNone < LevelLow && LevelLow < LevelMedium && LevelMedium < LevelHigh && LevelHigh < LevelIntense) {
		t.Fatalf("energy levels are not ordered")
	}
}

func TestRuleClassifier(t *testing.T) {
	c := NewRuleClassifier()
	tests := []struct {
		msg       string
		wantType  Type
		wantLevel Level
	}{
		{msg: "hey", wantType: TypeCooperative, wantLevel: LevelMedium},
		{msg: "my cat died today", wantType: TypeCooperative, wantLevel: LevelLow},
		{msg: "i miss you babe", wantType: TypeIntimate, wantLevel: LevelMedium},
		{msg: "i want to kiss you", wantType: TypeIntimate, wantLevel: LevelHigh},
		{msg: "the bus was late", wantType: TypeNeutral, wantLevel: LevelMedium},
	}
	for _, tt := range tests {
		sig, err := c.Classify(context.Background(), tt.msg, nil)
		require.NoError(t, err)
		if sig.Type != tt.wantType || sig.Level != tt.wantLevel {
			t.Fatalf("Classify(%q)=%s/%s want %s/%s", tt.msg, sig.Level, sig.Type, tt.wantLevel, tt.wantType)
		}
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, []string) (Signature, error) {
	return Signature{}, errors.New("upstream timeout")
}

func TestWithFallbackUsesRulesOnError(t *testing.T) {
	c := WithFallback(failingClassifier{}, nil)
	sig, err := c.Classify(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, TypeCooperative, sig.Type)
	assert.Equal(t, EmotionHappy, sig.Emotion)
}

func TestWithTimeout_FallsBackToRules(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := classifierFunc(func(context.Context, string, []string) (Signature, error) {
		<-release
		return Signature{Type: TypeCombative}, nil
	})

	sig, err := WithFallback(WithTimeout(stuck, 20*time.Millisecond), nil).Classify(context.Background(), "hey", nil)
	require.NoError(t, err)
	assert.Equal(t, TypeCooperative, sig.Type, "greeting rule answers after the deadline")

	fast := classifierFunc(func(context.Context, string, []string) (Signature, error) {
		return Signature{Type: TypePlayful}, nil
	})
	sig, err = WithTimeout(fast, time.Second).Classify(context.Background(), "hey", nil)
	require.NoError(t, err)
	assert.Equal(t, TypePlayful, sig.Type)
}

type classifierFunc func(ctx context.Context, message string, recent []string) (Signature, error)

func (f classifierFunc) Classify(ctx context.Context, message string, recent []string) (Signature, error) {
	return f(ctx, message, recent)
}

func TestDecodeSignature(t *testing.T) {
	at := time.Unix(1700000000, 0)
	raw := []byte(`Sure! {"energy_level":"high","energy_type":"playful","dominant_emotion":"flirty",
		"nervous_system_state":"rest_and_digest","intensity_score":1.4,"confidence":0.7}`)
	sig, err := DecodeSignature(raw, at)
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, sig.Level)
	assert.Equal(t, TypePlayful, sig.Type)
	assert.Equal(t, EmotionExcited, sig.Emotion)
	assert.Equal(t, 1.0, sig.Intensity)
	assert.Equal(t, at, sig.Timestamp)

	sig, err = DecodeSignature([]byte(`I {think}: {"energy_level":"low","energy_type":"neutral",
		"nervous_system_state":"freeze"} then {"energy_level":"high"}`), at)
	require.NoError(t, err)
	assert.Equal(t, LevelLow, sig.Level)

	_, err = DecodeSignature([]byte(`{"energy_level":"extreme"}`), at)
	assert.ErrorIs(t, err, ErrClassifierUnavailable)

	_, err = DecodeSignature([]byte("no json here"), at)
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestParseEmotionAliases(t *testing.T) {
	tests := map[string]Emotion{
		"romantic": EmotionLoving,
		"neutral":  EmotionHappy,
		"BORED":    EmotionBored,
		"ecstatic": EmotionHappy,
	}
	for in, want := range tests {
		if got := ParseEmotion(in); got != want {
			t.Fatalf("ParseEmotion(%q)=%q want %q", in, got, want)
		}
	}
}
