// Package conversation holds the session-owned conversation record that
// every analyzer reads from.
package conversation

import (
	"time"

	"github.com/dotsetgreg/dotpersona/pkg/energy"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAgent     Role = "agent"
	RoleAssistant Role = "assistant"
)

// IsAgent reports whether the role belongs to the persona side.
func (r Role) IsAgent() bool { return r == RoleAgent || r == RoleAssistant }

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EngagementHistoryCap = 20
	LoopHistoryCap       = 20
)

// LoopRecord is a compact entry in the loop-detection history.
type LoopRecord struct {
	At       time.Time `json:"at"`
	Type     string    `json:"type"`
	Severity float64   `json:"severity"`
}

// Context is owned by exactly one session. It is not safe for concurrent
// mutation; the session serializes turns.
type Context struct {
	Messages          []Message
	EnergyHistory     []energy.Signature
	EngagementHistory []float64
	LoopDetections    []LoopRecord
	SessionStart      time.Time
	LastActivity      time.Time

	// LastReengagement is zero until the first injection.
	LastReengagement       time.Time
	MessagesAtReengagement int
}

func NewContext(now time.Time) *Context {
	return &Context{SessionStart: now, LastActivity: now}
}

func (c *Context) Append(role Role, content string, at time.Time) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: at})
	c.LastActivity = at
}

func (c *Context) Len() int { return len(c.Messages) }

// Recent returns up to the last n messages. The slice aliases the history.
func (c *Context) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if n >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// RecentContents returns the content strings of the last n messages.
func (c *Context) RecentContents(n int) []string {
	recent := c.Recent(n)
	out := make([]string, 0, len(recent))
	for _, m := range recent {
		out = append(out, m.Content)
	}
	return out
}

func (c *Context) LastUser() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

func (c *Context) LastAgent() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role.IsAgent() {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// UserMessages returns the user messages among the last n messages, in order.
// n <= 0 means the whole history.
func (c *Context) UserMessages(n int) []Message {
	window := c.Messages
	if n > 0 {
		window = c.Recent(n)
	}
	out := make([]Message, 0, len(window))
	for _, m := range window {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// LastNIdentical reports whether the last n messages exist and all have
// byte-identical content.
func (c *Context) LastNIdentical(n int) bool {
	if n < 2 || len(c.Messages) < n {
		return false
	}
	recent := c.Recent(n)
	for _, m := range recent[1:] {
		if m.Content != recent[0].Content {
			return false
		}
	}
	return true
}

func (c *Context) AppendEnergy(sig energy.Signature) {
	c.EnergyHistory = append(c.EnergyHistory, sig)
}

// CurrentEnergy returns the most recent signature, or nil.
func (c *Context) CurrentEnergy() *energy.Signature {
	if len(c.EnergyHistory) == 0 {
		return nil
	}
	sig := c.EnergyHistory[len(c.EnergyHistory)-1]
	return &sig
}

func (c *Context) AppendEngagement(score float64) {
	c.EngagementHistory = append(c.EngagementHistory, score)
	if len(c.EngagementHistory) > EngagementHistoryCap {
		c.EngagementHistory = c.EngagementHistory[len(c.EngagementHistory)-EngagementHistoryCap:]
	}
}

func (c *Context) AppendLoop(rec LoopRecord) {
	c.LoopDetections = append(c.LoopDetections, rec)
	if len(c.LoopDetections) > LoopHistoryCap {
		c.LoopDetections = c.LoopDetections[len(c.LoopDetections)-LoopHistoryCap:]
	}
}

// MarkReengagement records an injection at the current message count.
func (c *Context) MarkReengagement(at time.Time) {
	c.LastReengagement = at
	c.MessagesAtReengagement = len(c.Messages)
}

// MessagesSinceReengagement is the number of messages appended after the
// last injection, or the full count when none happened yet.
func (c *Context) MessagesSinceReengagement() int {
	if c.LastReengagement.IsZero() {
		return len(c.Messages)
	}
	return len(c.Messages) - c.MessagesAtReengagement
}
