package routing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/conversation"
	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

const (
	DefaultOracleTimeout = 4 * time.Second
	repetitionWindow     = 3
	repeatBreakerScore   = 70.0
	repeatFollowerScore  = 40.0
)

// repeatBreakers are the dramatic and playful paths that shake a
// conversation out of verbatim repetition.
var repeatBreakers = map[Path]bool{
	IgnoreSelfFocus:   true,
	EmotionalReaction: true,
	PlayfulTease:      true,
}

type Options struct {
	Weights         Weights
	Margin          float64
	TopN            int
	FrequencyWindow int
	OracleTimeout   time.Duration
	Rand            *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		Weights:         DefaultWeights(),
		Margin:          DefaultClearWinnerMargin,
		TopN:            DefaultTopCandidates,
		FrequencyWindow: DefaultFrequencyWindow,
		OracleTimeout:   DefaultOracleTimeout,
	}
}

// Decision is the routing outcome for one turn.
type Decision struct {
	Complexity       Complexity         `json:"complexity"`
	EmotionIntensity Intensity          `json:"emotion_intensity"`
	Analysis         MessageAnalysis    `json:"message_analysis"`
	Path             Path               `json:"path"`
	Reasoning        string             `json:"reasoning"`
	Wrapping         string             `json:"wrapping_instructions"`
	Method           SelectionMethod    `json:"selection_method"`
	Scores           map[Path]PathScore `json:"scores"`
	UsedFallback     bool               `json:"used_fallback"`
	Stage            Stage              `json:"stage"`
	Mood             Mood               `json:"mood"`
	MoodRule         string             `json:"mood_rule,omitempty"`
}

// Router owns every routing tracker for one session. It is not safe for
// concurrent use; the owning session serializes turns.
type Router struct {
	oracle    ScoreOracle
	weights   Weights
	timeout   time.Duration
	selector  *Selector
	frequency *FrequencyTracker
	compat    *CompatibilityMatrix
	mood      *MoodState
	stage     *StageTracker
	alignment *EnergyAlignment
}

func NewRouter(oracle ScoreOracle, opts Options) *Router {
	if oracle == nil {
		oracle = StaticOracle{}
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = DefaultOracleTimeout
	}
	sel := NewSelector(opts.Rand)
	if opts.Margin > 0 {
		sel.Margin = opts.Margin
	}
	if opts.TopN > 0 {
		sel.TopN = opts.TopN
	}
	return &Router{
		oracle:    oracle,
		weights:   opts.Weights,
		timeout:   opts.OracleTimeout,
		selector:  sel,
		frequency: NewFrequencyTracker(opts.FrequencyWindow),
		compat:    NewCompatibilityMatrix(),
		mood:      NewMoodState(),
		stage:     NewStageTracker(),
		alignment: NewEnergyAlignment(),
	}
}

// Route scores every path, selects one and advances the session trackers:
// frequency usage, the stage counter (exactly once) and mood.
func (r *Router) Route(ctx context.Context, message string, sig *energy.Signature, conv *conversation.Context) Decision {
	complexity := ClassifyComplexity(message)
	intensity := IntensityBucket(sig)

	oracleScores, usedFallback := r.baseScores(ctx, ScoreRequest{
		Message:          message,
		Complexity:       complexity,
		EmotionIntensity: intensity,
		Signature:        sig,
		Recent:           conv.Recent(10),
		Templates:        Templates(),
	})

	scores := r.Score(oracleScores, sig, conv)
	chosen, method := r.selector.Select(scores)
	stage := r.stage.Stage()
	mood := r.mood.Mood

	logger.DebugCF("routing", "Path selected", map[string]any{
		"path":       string(chosen),
		"method":     string(method),
		"final":      scores[chosen].Final,
		"stage":      string(stage),
		"mood":       string(mood),
		"complexity": string(complexity),
		"fallback":   usedFallback,
	})

	r.frequency.RecordUsage(chosen)
	r.stage.Increment()
	moodSig := energy.Signature{Type: energy.TypeNeutral, Level: energy.LevelMedium}
	if sig != nil {
		moodSig = *sig
	}
	rule := r.mood.Update(moodSig, EstimateUserEngagement(conv))

	return Decision{
		Complexity:       complexity,
		EmotionIntensity: intensity,
		Analysis:         oracleScores.Analysis,
		Path:             chosen,
		Reasoning:        scores[chosen].Reasoning,
		Wrapping:         TemplateFor(chosen).Wrapping,
		Method:           method,
		Scores:           scores,
		UsedFallback:     usedFallback,
		Stage:            stage,
		Mood:             mood,
		MoodRule:         rule,
	}
}

func (r *Router) baseScores(ctx context.Context, req ScoreRequest) (OracleScores, bool) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scores, err := r.oracle.ScorePaths(callCtx, req)
	if err == nil {
		err = scores.Validate()
	}
	if err != nil {
		logger.WarnCF("routing", "Score oracle failed, using fallback scores", map[string]any{
			"error": err.Error(),
		})
		return FallbackScores(), true
	}
	return scores, false
}

// Score applies every modifier to the oracle's base scores.
func (r *Router) Score(base OracleScores, sig *energy.Signature, conv *conversation.Context) map[Path]PathScore {
	previous, hasPrevious := r.frequency.Previous()
	repetitive := conv != nil && conv.LastNIdentical(repetitionWindow)

	out := make(map[Path]PathScore, len(allPaths))
	for _, p := range allPaths {
		oracle := base.Paths[p]
		ps := PathScore{
			Path:             p,
			Base:             oracle.Score,
			Context:          contextModifier(p, repetitive),
			FrequencyPenalty: r.frequency.Penalty(p),
			Personality:      r.mood.Bias(p),
			Compatibility:    r.compat.Score(p, previous, hasPrevious),
			EnergyAlignment:  r.alignment.Score(p, sig),
			Stage:            r.stage.Modifier(p),
			Reasoning:        oracle.Reasoning,
		}
		ps.Final = r.weights.FinalScore(ps)
		out[p] = ps
	}
	return out
}

func contextModifier(p Path, repetitive bool) float64 {
	if !repetitive {
		return NeutralScore
	}
	if repeatBreakers[p] {
		return repeatBreakerScore
	}
	return repeatFollowerScore
}

// Force records a path imposed from outside the selector so the next turn's
// penalty and compatibility see the path actually used.
func (r *Router) Force(p Path) error {
	if !p.Valid() {
		return fmt.Errorf("force routing path: unknown path %q", p)
	}
	r.frequency.RecordUsage(p)
	return nil
}

// State is a read-only view of the router's trackers.
type State struct {
	Mood         MoodState    `json:"mood"`
	Stage        Stage        `json:"stage"`
	MessageCount int          `json:"message_count"`
	RecentPaths  []Path       `json:"recent_paths"`
	Usage        map[Path]int `json:"usage"`
}

func (r *Router) State() State {
	return State{
		Mood:         *r.mood,
		Stage:        r.stage.Stage(),
		MessageCount: r.stage.MessageCount(),
		RecentPaths:  r.frequency.Recent(),
		Usage:        r.frequency.UsageStats(),
	}
}

const (
	engagementLengthNorm  = 50.0
	engagementCountNorm   = 10.0
	engagementMarkersNorm = 5.0
	engagementRecentUsers = 5
)

// EstimateUserEngagement blends recent user message length, overall message
// count and expressive markers into [0,1].
func EstimateUserEngagement(conv *conversation.Context) float64 {
	if conv == nil {
		return 0
	}
	users := conv.UserMessages(0)
	if len(users) > engagementRecentUsers {
		users = users[len(users)-engagementRecentUsers:]
	}

	var totalLen, markers int
	for _, m := range users {
		totalLen += len([]rune(m.Content))
		markers += conversation.CountEmoji(m.Content) + conversation.CountExpressivePunct(m.Content)
	}
	avgLen := 0.0
	if len(users) > 0 {
		avgLen = float64(totalLen) / float64(len(users))
	}

	length := clamp01(avgLen / engagementLengthNorm)
	count := clamp01(float64(conv.Len()) / engagementCountNorm)
	expressive := clamp01(float64(markers) / engagementMarkersNorm)
	return 0.4*length + 0.3*count + 0.3*expressive
}
