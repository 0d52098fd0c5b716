package reengage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGhostDetector_QuietBeforeFirstMessage(t *testing.T) {
	g := NewGhostDetector(DefaultGhostOptions())
	_, ok := g.Check(epoch.Add(time.Hour))
	assert.False(t, ok, "no check-in before the user has said anything")
}

func TestGhostDetector_EscalatesAndCaps(t *testing.T) {
	g := NewGhostDetector(DefaultGhostOptions())
	g.RecordUserActivity(epoch)

	steps := []struct {
		after time.Duration
		want  GhostKind
		due   bool
	}{
		{59 * time.Second, "", false},
		{60 * time.Second, GhostGentle, true},
		{80 * time.Second, "", false}, // inside the 30s gap
		{90 * time.Second, GhostCurious, true},
		{110 * time.Second, "", false},
		{120 * time.Second, GhostPlayful, true},
		{10 * time.Minute, "", false}, // capped at three
	}
	for i, step := range steps {
		c, ok := g.Check(epoch.Add(step.after))
		require.Equal(t, step.due, ok, "step %d at %s", i, step.after)
		if ok {
			assert.Equal(t, step.want, c.Kind, "step %d", i)
			assert.Equal(t, step.after, c.Silence)
		}
	}

	st := g.Status(epoch.Add(10 * time.Minute))
	assert.True(t, st.Ghosting)
	assert.Equal(t, 3, st.Sent)
	assert.Equal(t, 10*time.Minute, st.Silence)
}

func TestGhostDetector_GapUsesLastCheckIn(t *testing.T) {
	g := NewGhostDetector(DefaultGhostOptions())
	g.RecordUserActivity(epoch)

	first, ok := g.Check(epoch.Add(85 * time.Second))
	require.True(t, ok)
	assert.Equal(t, 1, first.Level)

	_, ok = g.Check(epoch.Add(100 * time.Second))
	assert.False(t, ok, "90s of silence is met but the last check-in was 15s ago")

	second, ok := g.Check(epoch.Add(115 * time.Second))
	require.True(t, ok)
	assert.Equal(t, GhostCurious, second.Kind)
	assert.Equal(t, 2, second.Level)
}

func TestGhostDetector_UserActivityResets(t *testing.T) {
	g := NewGhostDetector(DefaultGhostOptions())
	g.RecordUserActivity(epoch)
	_, ok := g.Check(epoch.Add(time.Minute))
	require.True(t, ok)

	back := epoch.Add(2 * time.Minute)
	g.RecordUserActivity(back)
	assert.Equal(t, GhostStatus{MaxMessages: DefaultGhostMaxMessages}, g.Status(back))

	_, ok = g.Check(back.Add(30 * time.Second))
	assert.False(t, ok)
	c, ok := g.Check(back.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, GhostGentle, c.Kind, "the ladder restarts")
}

func TestGhostDetector_Disabled(t *testing.T) {
	g := NewGhostDetector(GhostOptions{})
	g.RecordUserActivity(epoch)
	_, ok := g.Check(epoch.Add(time.Hour))
	assert.False(t, ok)
}
