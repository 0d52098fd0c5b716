// Package routing scores every response strategy for a turn and picks one.
package routing

import (
	"fmt"
	"strings"
)

// Path values are persisted in history and must stay stable.
type Path string

const (
	RespondNormally       Path = "PATH_A"
	RespondWithConfusion  Path = "PATH_B"
	DeflectRedirect       Path = "PATH_C"
	MinimalResponse       Path = "PATH_D"
	IgnoreSelfFocus       Path = "PATH_E"
	EmotionalReaction     Path = "PATH_F"
	JealousPossessive     Path = "PATH_G"
	PlayfulTease          Path = "PATH_I"
	VulnerableReassurance Path = "PATH_L"
	BoundaryFirm          Path = "PATH_M"
)

var allPaths = []Path{
	RespondNormally, RespondWithConfusion, DeflectRedirect, MinimalResponse,
	IgnoreSelfFocus, EmotionalReaction, JealousPossessive, PlayfulTease,
	VulnerableReassurance, BoundaryFirm,
}

// AllPaths returns the ten paths in canonical order.
func AllPaths() []Path {
	out := make([]Path, len(allPaths))
	copy(out, allPaths)
	return out
}

var pathNames = map[Path]string{
	RespondNormally:       "respond_normally",
	RespondWithConfusion:  "respond_with_confusion",
	DeflectRedirect:       "deflect_redirect",
	MinimalResponse:       "minimal_response",
	IgnoreSelfFocus:       "ignore_self_focus",
	EmotionalReaction:     "emotional_reaction",
	JealousPossessive:     "jealous_possessive",
	PlayfulTease:          "playful_tease",
	VulnerableReassurance: "vulnerable_reassurance",
	BoundaryFirm:          "boundary_firm",
}

func (p Path) Name() string {
	if n, ok := pathNames[p]; ok {
		return n
	}
	return strings.ToLower(string(p))
}

func (p Path) Valid() bool {
	_, ok := pathNames[p]
	return ok
}

// ParsePath accepts either the stable id ("PATH_I") or the name ("playful_tease").
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if p := Path(strings.ToUpper(s)); p.Valid() {
		return p, nil
	}
	lower := strings.ToLower(s)
	for p, name := range pathNames {
		if name == lower {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown routing path %q", s)
}

func pathIndex(p Path) int {
	for i, candidate := range allPaths {
		if candidate == p {
			return i
		}
	}
	return len(allPaths)
}
