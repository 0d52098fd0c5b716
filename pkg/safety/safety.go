// Package safety defines the content-safety oracle consulted on every turn
// and the static answer used when it is unreachable.
package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

// ErrOracleUnavailable indicates the safety oracle produced no usable result.
var ErrOracleUnavailable = errors.New("safety oracle unavailable")

type Recommendation string

const (
	RecommendSafe    Recommendation = "SAFE"
	RecommendCaution Recommendation = "CAUTION"
	RecommendWarning Recommendation = "WARNING"
	RecommendStop    Recommendation = "STOP"
)

func ParseRecommendation(s string) (Recommendation, error) {
	switch r := Recommendation(strings.ToUpper(strings.TrimSpace(s))); r {
	case RecommendSafe, RecommendCaution, RecommendWarning, RecommendStop:
		return r, nil
	default:
		return "", fmt.Errorf("unknown safety recommendation %q", s)
	}
}

// Result is advisory. Score runs from 0 (unsafe) to 1 (safe).
type Result struct {
	Score          float64        `json:"safety_score"`
	Issues         []string       `json:"issues"`
	RiskFactors    []string       `json:"risk_factors"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	Fallback       bool           `json:"-"`
}

// Flagged reports whether the result recommends anything other than SAFE.
func (r Result) Flagged() bool { return r.Recommendation != RecommendSafe }

// Fallback is the answer used whenever the oracle fails.
func Fallback() Result {
	return Result{
		Score:          0.8,
		Issues:         []string{},
		RiskFactors:    []string{},
		Recommendation: RecommendSafe,
		Reasoning:      "analysis unavailable, defaulting to safe",
		Fallback:       true,
	}
}

type Oracle interface {
	Analyze(ctx context.Context, message string, recent []conversation.Message) (Result, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, message string, recent []conversation.Message) (Result, error)

func (f OracleFunc) Analyze(ctx context.Context, message string, recent []conversation.Message) (Result, error) {
	return f(ctx, message, recent)
}

// StaticOracle always answers with Fallback.
type StaticOracle struct{}

func (StaticOracle) Analyze(context.Context, string, []conversation.Message) (Result, error) {
	return Fallback(), nil
}

type fallbackOracle struct {
	primary Oracle
}

// WithFallback wraps primary so that errors and context expiry are logged
// and answered with Fallback. A nil primary is a StaticOracle.
func WithFallback(primary Oracle) Oracle {
	if primary == nil {
		primary = StaticOracle{}
	}
	return &fallbackOracle{primary: primary}
}

func (o *fallbackOracle) Analyze(ctx context.Context, message string, recent []conversation.Message) (Result, error) {
	res, err := o.primary.Analyze(ctx, message, recent)
	if err == nil {
		return res.clamp(), nil
	}
	logger.WarnCF("safety", "Safety oracle failed, defaulting to safe", map[string]any{
		"error": err.Error(),
	})
	return Fallback(), nil
}

type timeoutOracle struct {
	inner   Oracle
	timeout time.Duration
}

// WithTimeout bounds every call to o. A call still running at the deadline
// is abandoned and reported as context.DeadlineExceeded. A nil o stays nil.
func WithTimeout(o Oracle, timeout time.Duration) Oracle {
	if o == nil || timeout <= 0 {
		return o
	}
	return &timeoutOracle{inner: o, timeout: timeout}
}

func (o *timeoutOracle) Analyze(ctx context.Context, message string, recent []conversation.Message) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type result struct {
		res Result
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := o.inner.Analyze(ctx, message, recent)
		done <- result{res, err}
	}()
	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r Result) clamp() Result {
	r.Score = max(0, min(1, r.Score))
	if r.Recommendation == "" {
		r.Recommendation = RecommendSafe
	}
	return r
}

type wireResult struct {
	Score          *float64 `json:"safety_score"`
	Issues         []string `json:"issues"`
	RiskFactors    []string `json:"risk_factors"`
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
}

// DecodeResult parses an oracle's JSON reply, tolerating prose around the
// object. A missing safety_score is an error.
func DecodeResult(raw []byte) (Result, error) {
	var w wireResult
	if err := conversation.DecodeFirstObject(raw, &w); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if w.Score == nil {
		return Result{}, fmt.Errorf("%w: missing safety_score", ErrOracleUnavailable)
	}
	rec, err := ParseRecommendation(w.Recommendation)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	return Result{
		Score:          *w.Score,
		Issues:         w.Issues,
		RiskFactors:    w.RiskFactors,
		Recommendation: rec,
		Reasoning:      w.Reasoning,
	}.clamp(), nil
}
