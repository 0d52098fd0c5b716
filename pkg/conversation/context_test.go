package conversation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestContextRecentAndLastN(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewContext(now)
	c.Append(RoleUser, "hey", now)
	c.Append(RoleAgent, "hi babe", now)
	c.Append(RoleUser, "ok", now)
	c.Append(RoleUser, "ok", now)
	c.Append(RoleUser, "ok", now)

	if got := c.RecentContents(2); !cmp.Equal(got, []string{"ok", "ok"}) {
		t.Fatalf("RecentContents diff: %s", cmp.Diff([]string{"ok", "ok"}, got))
	}
	if !c.LastNIdentical(3) {
		t.Fatalf("expected last 3 identical")
	}
	if c.LastNIdentical(4) {
		t.Fatalf("last 4 are not identical")
	}
	last, ok := c.LastAgent()
	if !ok || last.Content != "hi babe" {
		t.Fatalf("LastAgent=%v,%v", last, ok)
	}
	if got := len(c.UserMessages(0)); got != 4 {
		t.Fatalf("UserMessages=%d want 4", got)
	}
}

func TestEngagementHistoryCap(t *testing.T) {
	c := NewContext(time.Now())
	for i := 0; i < 30; i++ {
		c.AppendEngagement(float64(i))
	}
	if len(c.EngagementHistory) != EngagementHistoryCap {
		t.Fatalf("len=%d want %d", len(c.EngagementHistory), EngagementHistoryCap)
	}
	if c.EngagementHistory[0] != 10 || c.EngagementHistory[19] != 29 {
		t.Fatalf("unexpected window: %v", c.EngagementHistory)
	}
}

func TestMessagesSinceReengagement(t *testing.T) {
	now := time.Now()
	c := NewContext(now)
	for i := 0; i < 4; i++ {
		c.Append(RoleUser, "x", now)
	}
	if c.MessagesSinceReengagement() != 4 {
		t.Fatalf("expected full count before first injection")
	}
	c.MarkReengagement(now)
	c.Append(RoleAgent, "y", now)
	if got := c.MessagesSinceReengagement(); got != 1 {
		t.Fatalf("MessagesSinceReengagement=%d want 1", got)
	}
}

func TestDirectAskDetection(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "why do you think that?", want: true},
		{in: "what are you doing", want: true},
		{in: "tell me about your day", want: true},
		{in: "ok", want: false},
		{in: "cool cool", want: false},
	}
	for _, tt := range tests {
		if got := IsDirectAsk(tt.in); got != tt.want {
			t.Fatalf("IsDirectAsk(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}

func TestCountEmoji(t *testing.T) {
	if got := CountEmoji("hi 😊🔥 ☀"); got != 3 {
		t.Fatalf("CountEmoji=%d want 3", got)
	}
}
