package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

func TestFallback(t *testing.T) {
	res := Fallback()
	assert.Equal(t, 0.8, res.Score)
	assert.Equal(t, RecommendSafe, res.Recommendation)
	assert.Equal(t, "analysis unavailable, defaulting to safe", res.Reasoning)
	assert.False(t, res.Flagged())
	assert.True(t, res.Fallback)

	static, err := StaticOracle{}.Analyze(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, res, static)
}

func TestWithFallback_LogsAndDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	defer logger.ReplaceForTest(zap.New(core))()

	failing := OracleFunc(func(context.Context, string, []conversation.Message) (Result, error) {
		return Result{}, errors.New("rate limited")
	})
	res, err := WithFallback(failing).Analyze(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, Fallback(), res)

	entries := logs.FilterMessage("Safety oracle failed, defaulting to safe").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "safety", entries[0].ContextMap()["component"])
}

func TestWithFallback_PassesThroughAndClamps(t *testing.T) {
	primary := OracleFunc(func(context.Context, string, []conversation.Message) (Result, error) {
		return Result{Score: 1.7, Recommendation: RecommendCaution, Issues: []string{"threat"}}, nil
	})
	res, err := WithFallback(primary).Analyze(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Score)
	assert.True(t, res.Flagged())
	assert.False(t, res.Fallback)

	res, err = WithFallback(nil).Analyze(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
}

func TestWithTimeout_AbandonsStuckOracle(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := OracleFunc(func(context.Context, string, []conversation.Message) (Result, error) {
		<-release
		return Result{Score: 0.1, Recommendation: RecommendStop}, nil
	})

	start := time.Now()
	res, err := WithFallback(WithTimeout(stuck, 20*time.Millisecond)).Analyze(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = WithTimeout(stuck, 20*time.Millisecond).Analyze(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, WithTimeout(nil, time.Second))
}

func TestDecodeResult(t *testing.T) {
	res, err := DecodeResult([]byte("Here you go:\n" + `{"safety_score": 0.9, "issues": [], "risk_factors": [],
		"recommendation": "safe", "reasoning": "romantic banter"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.9, res.Score)
	assert.Equal(t, RecommendSafe, res.Recommendation)

	res, err = DecodeResult([]byte(`{"safety_score": 0.2, "recommendation": "warning"} p.s. {:}`))
	require.NoError(t, err)
	assert.Equal(t, RecommendWarning, res.Recommendation)

	tests := map[string]string{
		"no object":     "nope",
		"no score":      `{"recommendation":"SAFE"}`,
		"bad verdict":   `{"safety_score":0.4,"recommendation":"MAYBE"}`,
		"broken object": `{"safety_score": }`,
	}
	for name, raw := range tests {
		if _, err := DecodeResult([]byte(raw)); !errors.Is(err, ErrOracleUnavailable) {
			t.Fatalf("%s: expected ErrOracleUnavailable, got %v", name, err)
		}
	}
}
