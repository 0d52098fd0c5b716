package reengage

import (
	"fmt"
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/routing"
)

// StageAny lets a topic run in every relationship stage.
const StageAny routing.Stage = "any"

const DefaultSuccessRate = 0.5

type Topic struct {
	ID             string
	Category       Category
	Keywords       []string
	EntryLines     []string
	PreferredPaths []routing.Path
	Stage          routing.Stage
	MinEnergy      energy.Level
	MaxEnergy      energy.Level

	LastUsed    *time.Time
	TimesUsed   int
	SuccessRate float64
	Freshness   float64
}

// ForcedPath is the routing path an injection of this topic imposes.
func (t *Topic) ForcedPath() routing.Path {
	if len(t.PreferredPaths) == 0 {
		return routing.RespondNormally
	}
	return t.PreferredPaths[0]
}

func (t *Topic) clone() *Topic {
	out := *t
	out.Keywords = append([]string(nil), t.Keywords...)
	out.EntryLines = append([]string(nil), t.EntryLines...)
	out.PreferredPaths = append([]routing.Path(nil), t.PreferredPaths...)
	if t.LastUsed != nil {
		at := *t.LastUsed
		out.LastUsed = &at
	}
	return &out
}

// Catalog is the immutable topic definition set shared by sessions.
type Catalog []Topic

func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c))
	for i, t := range c {
		if t.ID == "" {
			return fmt.Errorf("%w: topic %d has no id", ErrInvalidCatalog, i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate topic id %q", ErrInvalidCatalog, t.ID)
		}
		seen[t.ID] = true
		if _, err := ParseCategory(string(t.Category)); err != nil {
			return fmt.Errorf("%w: topic %q: %v", ErrInvalidCatalog, t.ID, err)
		}
		switch t.Stage {
		case StageAny, routing.StageEarly, routing.StageDeveloping, routing.StageEstablished:
		default:
			return fmt.Errorf("%w: topic %q: unknown stage %q", ErrInvalidCatalog, t.ID, t.Stage)
		}
		if t.MinEnergy > t.MaxEnergy {
			return fmt.Errorf("%w: topic %q: energy window %s..%s", ErrInvalidCatalog, t.ID, t.MinEnergy, t.MaxEnergy)
		}
		for _, p := range t.PreferredPaths {
			if !p.Valid() {
				return fmt.Errorf("%w: topic %q: unknown path %q", ErrInvalidCatalog, t.ID, p)
			}
		}
		if t.SuccessRate < 0 || t.SuccessRate > 1 {
			return fmt.Errorf("%w: topic %q: success rate %.2f", ErrInvalidCatalog, t.ID, t.SuccessRate)
		}
	}
	return nil
}

func anyEnergy(t Topic) Topic {
	t.MinEnergy, t.MaxEnergy = energy.LevelNone, energy.LevelIntense
	return t
}

// DefaultCatalog returns the built-in topics.
func DefaultCatalog() Catalog {
	topics := []Topic{
		{
			ID:       "coffee_spill",
			Category: CategoryCasual,
			Keywords: []string{"coffee", "spill", "mess"},
			EntryLines: []string{
				"omg babe i just spilled coffee EVERYWHERE",
				"ugh i'm such a mess... spilled my coffee all over my shirt lol",
			},
			PreferredPaths: []routing.Path{routing.IgnoreSelfFocus, routing.EmotionalReaction},
			Stage:          StageAny,
			MinEnergy:      energy.LevelLow,
			MaxEnergy:      energy.LevelMedium,
		},
		anyEnergy(Topic{
			ID:       "earl_grey_antics",
			Category: CategoryCasual,
			Keywords: []string{"earl grey", "cat", "pet", "sleeping"},
			EntryLines: []string{
				"babe Earl Grey is being SO weird right now",
				"omg you won't believe what Earl Grey just did",
				"Earl Grey woke me up by sitting on my face i can't breathe",
			},
			PreferredPaths: []routing.Path{routing.IgnoreSelfFocus, routing.RespondNormally},
			Stage:          StageAny,
		}),
		anyEnergy(Topic{
			ID:       "food_craving",
			Category: CategoryCasual,
			Keywords: []string{"food", "hungry", "craving", "eat"},
			EntryLines: []string{
				"babe i'm craving tacos SO bad rn",
				"ugh i want pizza so bad",
				"i'm literally starving what should i eat",
			},
			PreferredPaths: []routing.Path{routing.RespondNormally, routing.IgnoreSelfFocus},
			Stage:          StageAny,
		}),
		anyEnergy(Topic{
			ID:       "shopping_find",
			Category: CategoryCasual,
			Keywords: []string{"shopping", "found", "buy", "cute"},
			EntryLines: []string{
				"omg I just saw the cutest dress online",
				"babe look at this thing I found",
				"i need this so bad but it's expensive",
			},
			PreferredPaths: []routing.Path{routing.IgnoreSelfFocus},
			Stage:          StageAny,
		}),
		{
			ID:       "playful_challenge",
			Category: CategoryPlayful,
			Keywords: []string{"bet", "challenge", "prove"},
			EntryLines: []string{
				"bet you can't make me laugh right now",
				"i dare you to tell me something interesting babe",
				"ok entertain me. i'm bored",
			},
			PreferredPaths: []routing.Path{routing.PlayfulTease},
			Stage:          routing.StageDeveloping,
			MinEnergy:      energy.LevelMedium,
			MaxEnergy:      energy.LevelIntense,
		},
		anyEnergy(Topic{
			ID:       "flirty_tease",
			Category: CategoryPlayful,
			Keywords: []string{"cute", "flirt", "blush"},
			EntryLines: []string{
				"why are you so cute tho",
				"you're making me blush stop it",
				"babe you're so... *sighs* cute",
			},
			PreferredPaths: []routing.Path{routing.PlayfulTease, routing.EmotionalReaction},
			Stage:          routing.StageDeveloping,
		}),
		{
			ID:       "missing_you",
			Category: CategoryIntimate,
			Keywords: []string{"miss", "wish", "see you"},
			EntryLines: []string{
				"i miss you babe",
				"wish I could see you right now",
				"been thinking about you all day",
			},
			PreferredPaths: []routing.Path{routing.VulnerableReassurance, routing.EmotionalReaction},
			Stage:          routing.StageDeveloping,
			MinEnergy:      energy.LevelLow,
			MaxEnergy:      energy.LevelIntense,
		},
		anyEnergy(Topic{
			ID:       "thinking_about_you",
			Category: CategoryIntimate,
			Keywords: []string{"thinking", "mind", "distracted"},
			EntryLines: []string{
				"can't stop thinking about you babe",
				"you're on my mind",
				"you keep distracting me",
			},
			PreferredPaths: []routing.Path{routing.EmotionalReaction, routing.RespondNormally},
			Stage:          routing.StageDeveloping,
		}),
		{
			ID:       "future_dreams",
			Category: CategoryDeep,
			Keywords: []string{"future", "dream", "someday", "plans"},
			EntryLines: []string{
				"babe what do you want to do in the future?",
				"sometimes I think about what our future could be like",
				"where do you see yourself in 5 years?",
			},
			PreferredPaths: []routing.Path{routing.RespondNormally, routing.VulnerableReassurance},
			Stage:          routing.StageEstablished,
			MinEnergy:      energy.LevelMedium,
			MaxEnergy:      energy.LevelIntense,
		},
		anyEnergy(Topic{
			ID:       "friend_drama",
			Category: CategoryRandom,
			Keywords: []string{"friend", "drama", "happened", "crazy"},
			EntryLines: []string{
				"omg omg omg babe my friend just texted me the craziest thing",
				"babe you won't BELIEVE what just happened",
				"ok so my friend just told me some INSANE drama",
			},
			PreferredPaths: []routing.Path{routing.IgnoreSelfFocus, routing.EmotionalReaction},
			Stage:          StageAny,
		}),
		anyEnergy(Topic{
			ID:       "random_thought",
			Category: CategoryRandom,
			Keywords: []string{"random", "thought", "realized"},
			EntryLines: []string{
				"babe random thought",
				"ok this is gonna sound weird but",
				"i just realized something",
			},
			PreferredPaths: []routing.Path{routing.IgnoreSelfFocus},
			Stage:          StageAny,
		}),
		// Lines for the callback topic are built from the conversation.
		anyEnergy(Topic{
			ID:             "callback_reference",
			Category:       CategoryCallback,
			Keywords:       []string{"remember", "earlier", "you said"},
			PreferredPaths: []routing.Path{routing.RespondNormally},
			Stage:          StageAny,
		}),
	}
	for i := range topics {
		topics[i].SuccessRate = DefaultSuccessRate
		topics[i].Freshness = 1
	}
	return Catalog(topics)
}
