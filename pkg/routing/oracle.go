package routing

import (
	"context"
	"fmt"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
)

// MessageAnalysis carries the oracle's three message-level flags.
type MessageAnalysis struct {
	RequiresThoughtfulResponse bool `json:"requires_thoughtful_response"`
	IsUncomfortable            bool `json:"is_uncomfortable"`
	IsTooComplexForPersona     bool `json:"is_too_complex_for_persona"`
}

type OraclePathScore struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// OracleScores is the oracle's judgment for a single turn.
type OracleScores struct {
	Paths    map[Path]OraclePathScore `json:"path_scores"`
	Analysis MessageAnalysis          `json:"message_analysis"`
}

// ScoreRequest is everything the oracle sees for one turn.
type ScoreRequest struct {
	Message          string
	Complexity       Complexity
	EmotionIntensity Intensity
	Signature        *energy.Signature
	Recent           []conversation.Message
	Templates        map[Path]Template
}

// ScoreOracle produces base scores for all paths. Implementations typically
// call a hosted model; errors are recovered by the Router.
type ScoreOracle interface {
	ScorePaths(ctx context.Context, req ScoreRequest) (OracleScores, error)
}

// ScoreOracleFunc adapts a function to ScoreOracle.
type ScoreOracleFunc func(ctx context.Context, req ScoreRequest) (OracleScores, error)

func (f ScoreOracleFunc) ScorePaths(ctx context.Context, req ScoreRequest) (OracleScores, error) {
	return f(ctx, req)
}

// FallbackScores strongly favors responding normally. It is fed through the
// full modifier pipeline like any oracle answer.
func FallbackScores() OracleScores {
	base := map[Path]float64{
		RespondNormally:       80,
		RespondWithConfusion:  30,
		DeflectRedirect:       40,
		MinimalResponse:       50,
		IgnoreSelfFocus:       45,
		EmotionalReaction:     45,
		JealousPossessive:     20,
		PlayfulTease:          50,
		VulnerableReassurance: 30,
		BoundaryFirm:          35,
	}
	paths := make(map[Path]OraclePathScore, len(base))
	for p, v := range base {
		paths[p] = OraclePathScore{Score: v, Reasoning: "routing analysis unavailable, neutral fallback"}
	}
	return OracleScores{
		Paths:    paths,
		Analysis: MessageAnalysis{RequiresThoughtfulResponse: true},
	}
}

// StaticOracle always answers with FallbackScores.
type StaticOracle struct{}

func (StaticOracle) ScorePaths(context.Context, ScoreRequest) (OracleScores, error) {
	return FallbackScores(), nil
}

type rawEnvelope struct {
	PathScores map[string]OraclePathScore `json:"path_scores"`
	Analysis   MessageAnalysis            `json:"message_analysis"`
}

// ParseOracleJSON decodes an oracle reply. Chatty output around the first
// JSON object is tolerated. Keys may be path ids or path names.
func ParseOracleJSON(raw []byte) (OracleScores, error) {
	var env rawEnvelope
	if err := conversation.DecodeFirstObject(raw, &env); err != nil {
		return OracleScores{}, fmt.Errorf("%w: %v", ErrMalformedScores, err)
	}
	out := OracleScores{Paths: make(map[Path]OraclePathScore, len(env.PathScores)), Analysis: env.Analysis}
	for key, score := range env.PathScores {
		p, err := ParsePath(key)
		if err != nil {
			return OracleScores{}, fmt.Errorf("%w: %v", ErrMalformedScores, err)
		}
		out.Paths[p] = score
	}
	if err := out.Validate(); err != nil {
		return OracleScores{}, err
	}
	return out, nil
}

// Validate requires every path with a score in [0,100].
func (o OracleScores) Validate() error {
	for _, p := range allPaths {
		s, ok := o.Paths[p]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrMalformedScores, p)
		}
		if s.Score < 0 || s.Score > 100 {
			return fmt.Errorf("%w: %s score %.1f out of range", ErrMalformedScores, p, s.Score)
		}
	}
	return nil
}
