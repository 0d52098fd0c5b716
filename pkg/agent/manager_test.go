package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/dotpersona/pkg/energy"
	"github.com/dotsetgreg/dotpersona/pkg/reengage"
)

func newTestManager(t *testing.T, stats reengage.StatsStore, now *time.Time, max int) *Manager {
	t.Helper()
	opts := ManagerOptions{Session: DefaultOptions(), MaxSessions: max}
	opts.Session.Seed = 11
	opts.Session.Clock = fixedClock(now)
	m, err := NewManager(reengage.DefaultCatalog(), stats, Oracles{}, opts)
	require.NoError(t, err)
	return m
}

func TestManager_SessionsDoNotShareTrackers(t *testing.T) {
	now := epoch
	m := newTestManager(t, nil, &now, 0)
	ctx := context.Background()

	a, err := m.Open(ctx, SessionIdentity{Channel: "cli", ConversationID: "c", ActorID: "alice"})
	require.NoError(t, err)
	b, err := m.Open(ctx, SessionIdentity{Channel: "cli", ConversationID: "c", ActorID: "bob"})
	require.NoError(t, err)
	require.NotEqual(t, a.Key, b.Key)

	for _, msg := range []string{"hey", "how was your day", "mine was fine"} {
		_, err := a.ProcessTurn(ctx, msg)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, a.State().Routing.MessageCount)
	assert.Equal(t, 0, b.State().Routing.MessageCount)
	assert.Empty(t, b.State().Routing.RecentPaths)

	again, err := m.Open(ctx, SessionIdentity{Channel: "CLI", ConversationID: "c", ActorID: "alice"})
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, 2, m.Len())
}

func TestManager_LookupAndClose(t *testing.T) {
	now := epoch
	m := newTestManager(t, nil, &now, 0)

	_, err := m.Get("v1:missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s, err := m.OpenKey(context.Background(), "local:x")
	require.NoError(t, err)
	got, err := m.Get("local:x")
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close("local:x"))
	assert.ErrorIs(t, m.Close("local:x"), ErrSessionNotFound)
	_, err = s.ProcessTurn(context.Background(), "still there?")
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = m.Open(context.Background(), SessionIdentity{Channel: "cli"})
	assert.Error(t, err)
}

func TestManager_MaxSessions(t *testing.T) {
	now := epoch
	m := newTestManager(t, nil, &now, 1)
	ctx := context.Background()

	_, err := m.OpenKey(ctx, "local:a")
	require.NoError(t, err)
	_, err = m.OpenKey(ctx, "local:b")
	assert.ErrorIs(t, err, ErrTooManySessions)
	_, err = m.OpenKey(ctx, "local:a")
	assert.NoError(t, err, "existing sessions stay reachable at the cap")
}

func TestManager_SweepEvictsIdle(t *testing.T) {
	now := epoch
	m := newTestManager(t, nil, &now, 0)
	ctx := context.Background()

	_, err := m.OpenKey(ctx, "local:old")
	require.NoError(t, err)
	now = epoch.Add(2 * time.Hour)
	fresh, err := m.OpenKey(ctx, "local:fresh")
	require.NoError(t, err)

	assert.Equal(t, []string{"local:old"}, m.Sweep(now))
	assert.Equal(t, []string{"local:fresh"}, m.Keys())
	_, err = m.Get("local:old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, m.Sweep(now.Add(time.Minute)))

	m.CloseAll()
	assert.Equal(t, 0, m.Len())
	assert.ErrorIs(t, fresh.RecordAgentReply("bye"), ErrSessionClosed)
}

func TestManager_SeedsLibraryFromStats(t *testing.T) {
	now := epoch
	ctx := context.Background()
	stats := reengage.NewMemoryStatsStore()
	require.NoError(t, stats.Record(ctx, "friend_drama", true, 0.9))

	m := newTestManager(t, stats, &now, 0)
	s, err := m.OpenKey(ctx, "local:a")
	require.NoError(t, err)

	topic, err := s.reengage.Library().Topic("friend_drama")
	require.NoError(t, err)
	assert.Equal(t, 0.9, topic.SuccessRate)
	other, err := s.reengage.Library().Topic("random_thought")
	require.NoError(t, err)
	assert.Equal(t, reengage.DefaultSuccessRate, other.SuccessRate)
}

func TestNewManager_RejectsInvalidCatalog(t *testing.T) {
	_, err := NewManager(reengage.Catalog{{ID: "x", Category: "spicy"}}, nil, Oracles{}, ManagerOptions{})
	assert.ErrorIs(t, err, reengage.ErrInvalidCatalog)
}

func TestManager_SetCatalogAppliesToNewSessions(t *testing.T) {
	now := epoch
	m := newTestManager(t, nil, &now, 0)
	ctx := context.Background()

	before, err := m.OpenKey(ctx, "local:before")
	require.NoError(t, err)

	small := reengage.Catalog{reengage.DefaultCatalog()[0]}
	require.NoError(t, m.SetCatalog(small))
	assert.ErrorIs(t, m.SetCatalog(reengage.Catalog{{}}), reengage.ErrInvalidCatalog)

	after, err := m.OpenKey(ctx, "local:after")
	require.NoError(t, err)
	assert.Len(t, before.reengage.Library().Topics(), len(reengage.DefaultCatalog()))
	assert.Len(t, after.reengage.Library().Topics(), 1)
}

func TestManager_HungOracleDoesNotBlockRegistry(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	rules := energy.NewRuleClassifier()
	hanging := energyFunc(func(ctx context.Context, msg string, recent []string) (energy.Signature, error) {
		if msg == "hang" {
			close(entered)
			<-release
		}
		return rules.Classify(ctx, msg, recent)
	})

	now := epoch
	opts := ManagerOptions{Session: DefaultOptions()}
	opts.Session.Clock = fixedClock(&now)
	opts.Session.Routing.OracleTimeout = 50 * time.Millisecond
	m, err := NewManager(reengage.DefaultCatalog(), nil, Oracles{Energy: hanging}, opts)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := m.OpenKey(ctx, "local:a")
	require.NoError(t, err)
	turn := make(chan TurnResult, 1)
	go func() {
		res, err := a.ProcessTurn(ctx, "hang")
		assert.NoError(t, err)
		turn <- res
	}()
	<-entered

	registry := make(chan error, 1)
	go func() {
		m.Sweep(now.Add(time.Minute))
		m.PollGhosts(now.Add(time.Minute))
		_, err := m.OpenKey(ctx, "local:b")
		registry <- err
	}()
	select {
	case err := <-registry:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("registry blocked while another session's oracle hangs")
	}

	select {
	case res := <-turn:
		assert.Equal(t, energy.TypeNeutral, res.Signature.Type, "rule-based answer after the timeout")
	case <-time.After(2 * time.Second):
		t.Fatalf("turn did not fall back after the oracle timeout")
	}
}

func TestManager_PollGhosts(t *testing.T) {
	now := epoch
	m := newTestManager(t, nil, &now, 0)
	ctx := context.Background()

	talker, err := m.OpenKey(ctx, "local:talker")
	require.NoError(t, err)
	_, err = m.OpenKey(ctx, "local:silent")
	require.NoError(t, err)
	_, err = talker.ProcessTurn(ctx, "hey")
	require.NoError(t, err)

	assert.Empty(t, m.PollGhosts(now.Add(30*time.Second)))

	now = epoch.Add(time.Minute)
	due := m.PollGhosts(now)
	require.Len(t, due, 1, "a session with no user message never gets a check-in")
	assert.Equal(t, "local:talker", due[0].SessionKey)
	assert.Equal(t, reengage.GhostGentle, due[0].Kind)
	assert.Empty(t, m.PollGhosts(now), "a delivered check-in is not repeated")
	assert.True(t, talker.State().Ghost.Ghosting)

	_, err = talker.ProcessTurn(ctx, "sorry, was driving")
	require.NoError(t, err)
	assert.False(t, talker.State().Ghost.Ghosting)

	require.NoError(t, m.Close("local:talker"))
	assert.Empty(t, m.PollGhosts(now.Add(time.Hour)))
}
