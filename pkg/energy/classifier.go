package energy

import (
	"context"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

// Classifier is the external energy oracle.
type Classifier interface {
	Classify(ctx context.Context, message string, recent []string) (Signature, error)
}

type keywordRule struct {
	name     string
	exact    []string
	contains []string
	sig      Signature
}

func (r keywordRule) matches(lower string) bool {
	for _, e := range r.exact {
		if lower == e {
			return true
		}
	}
	for _, kw := range r.contains {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RuleClassifier is the deterministic keyword classifier used whenever the
// external oracle is unreachable. Rules are evaluated in order.
type RuleClassifier struct {
	rules []keywordRule
	now   func() time.Time
}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{rules: defaultRules(), now: time.Now}
}

func defaultRules() []keywordRule {
	return []keywordRule{
		{
			name: "intimate",
			contains: []string{"breast", "boob", "tits", "pussy", "cock", "dick", "fuck", "sex",
				"horny", "aroused", "touch", "kiss", "lick", "suck"},
			sig: Signature{Level: LevelHigh, Type: TypeIntimate, Emotion: EmotionLoving, Nervous: NervousRestAndDigest, Intensity: 0.8, Confidence: 0.9},
		},
		{
			name:  "greeting",
			exact: []string{"hi", "hello", "hey", "hiya", "howdy"},
			sig:   Signature{Level: LevelMedium, Type: TypeCooperative, Emotion: EmotionHappy, Nervous: NervousRestAndDigest, Intensity: 0.4, Confidence: 0.9},
		},
		{
			name:     "crisis",
			contains: []string{"died", "death", "dead", "crisis", "emergency", "sad", "down"},
			sig:      Signature{Level: LevelLow, Type: TypeCooperative, Emotion: EmotionSad, Nervous: NervousRestAndDigest, Intensity: 0.8, Confidence: 0.9},
		},
		{
			name:     "endearment",
			contains: []string{"babe", "baby", "love", "honey"},
			sig:      Signature{Level: LevelMedium, Type: TypeIntimate, Emotion: EmotionLoving, Nervous: NervousRestAndDigest, Intensity: 0.6, Confidence: 0.8},
		},
	}
}

var neutralSignature = Signature{Level: LevelMedium, Type: TypeNeutral, Emotion: EmotionHappy, Nervous: NervousRestAndDigest, Intensity: 0.5, Confidence: 0.5}

// Classify never returns an error.
func (c *RuleClassifier) Classify(_ context.Context, message string, _ []string) (Signature, error) {
	lower := strings.ToLower(strings.TrimSpace(message))
	sig := neutralSignature
	for _, rule := range c.rules {
		if rule.matches(lower) {
			sig = rule.sig
			break
		}
	}
	sig.Timestamp = c.now()
	return sig, nil
}

type fallbackClassifier struct {
	primary  Classifier
	fallback Classifier
}

// WithFallback wraps primary so that any error is logged and answered by
// fallback instead. A nil primary always uses fallback.
func WithFallback(primary, fallback Classifier) Classifier {
	if fallback == nil {
		fallback = NewRuleClassifier()
	}
	return &fallbackClassifier{primary: primary, fallback: fallback}
}

func (c *fallbackClassifier) Classify(ctx context.Context, message string, recent []string) (Signature, error) {
	if c.primary != nil {
		sig, err := c.primary.Classify(ctx, message, recent)
		if err == nil {
			return sig.Clamp(), nil
		}
		logger.WarnCF("energy", "Energy classifier failed, using rule-based fallback", map[string]any{
			"error": err.Error(),
		})
	}
	return c.fallback.Classify(ctx, message, recent)
}

type timeoutClassifier struct {
	inner   Classifier
	timeout time.Duration
}

// WithTimeout bounds every call to c. A call still running at the deadline
// is abandoned and reported as context.DeadlineExceeded, so classifiers that
// ignore ctx cannot stall a turn. A nil c stays nil.
func WithTimeout(c Classifier, timeout time.Duration) Classifier {
	if c == nil || timeout <= 0 {
		return c
	}
	return &timeoutClassifier{inner: c, timeout: timeout}
}

func (c *timeoutClassifier) Classify(ctx context.Context, message string, recent []string) (Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		sig Signature
		err error
	}
	done := make(chan result, 1)
	go func() {
		sig, err := c.inner.Classify(ctx, message, recent)
		done <- result{sig, err}
	}()
	select {
	case r := <-done:
		return r.sig, r.err
	case <-ctx.Done():
		return Signature{}, ctx.Err()
	}
}

type wireSignature struct {
	Level      string  `json:"energy_level"`
	Type       string  `json:"energy_type"`
	Emotion    string  `json:"dominant_emotion"`
	Nervous    string  `json:"nervous_system_state"`
	Intensity  float64 `json:"intensity_score"`
	Confidence float64 `json:"confidence"`
}

// DecodeSignature parses a classifier's JSON reply. Output that wraps the
// object in prose is tolerated; the first complete object is used.
func DecodeSignature(raw []byte, at time.Time) (Signature, error) {
	var w wireSignature
	if err := decodeFirstObject(raw, &w); err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	level, err := ParseLevel(w.Level)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	typ, err := ParseType(w.Type)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	nervous, err := ParseNervousState(w.Nervous)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return Signature{
		Timestamp:  at,
		Level:      level,
		Type:       typ,
		Emotion:    ParseEmotion(w.Emotion),
		Nervous:    nervous,
		Intensity:  w.Intensity,
		Confidence: w.Confidence,
	}.Clamp(), nil
}

// decodeFirstObject mirrors conversation.DecodeFirstObject, which this
// package cannot import.
func decodeFirstObject(raw []byte, v any) error {
	var obj json.RawMessage
	err := errors.New("no JSON object in reply")
	for i := bytes.IndexByte(raw, '{'); i >= 0; {
		if err = json.NewDecoder(bytes.NewReader(raw[i:])).Decode(&obj); err == nil {
			return json.Unmarshal(obj, v)
		}
		next := bytes.IndexByte(raw[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return err
}
