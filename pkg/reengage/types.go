// Package reengage decides when a stalling conversation needs a new topic
// and builds the line that injects it.
package reengage

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryCasual   Category = "casual"
	CategoryPlayful  Category = "playful"
	CategoryIntimate Category = "intimate"
	CategoryDeep     Category = "deep"
	CategoryRandom   Category = "random"
	CategoryCallback Category = "callback"
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryCasual, CategoryPlayful, CategoryIntimate, CategoryDeep, CategoryRandom, CategoryCallback:
		return c, nil
	default:
		return "", fmt.Errorf("unknown topic category %q", s)
	}
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

type Strategy string

const (
	StrategyCallback           Strategy = "callback"
	StrategyPivot              Strategy = "pivot"
	StrategyRandomInterruption Strategy = "random_interruption"
	StrategyVulnerable         Strategy = "vulnerable"
	StrategyPlayfulChallenge   Strategy = "playful_challenge"
)

// Decision explains whether and how to re-engage on this turn.
type Decision struct {
	Reengage   bool     `json:"should_reengage"`
	Reason     string   `json:"reason,omitempty"`
	Urgency    Urgency  `json:"urgency"`
	Category   Category `json:"recommended_category,omitempty"`
	Strategy   Strategy `json:"recommended_strategy,omitempty"`
	Confidence float64  `json:"confidence"`
	// SuppressedBy names the suppression rule that vetoed the turn.
	SuppressedBy string `json:"suppressed_by,omitempty"`
}
