package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dotsetgreg/dotpersona/pkg/bus"
)

func TestAgentLoop_RunPublishesResultsWithoutLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	now := epoch
	mb := bus.NewMessageBus()
	m := newTestManager(t, nil, &now, 0)
	al := NewAgentLoop(mb, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- al.Run(ctx) }()

	mb.PublishInbound(bus.InboundMessage{Channel: "cli", ChatID: "c1", SenderID: "alice", Content: "hey"})
	mb.PublishInbound(bus.InboundMessage{Channel: "cli", ChatID: "c1", SenderID: "alice", Content: "hi there", Kind: bus.KindAgent})
	mb.PublishInbound(bus.InboundMessage{Channel: "cli", ChatID: "c2", SenderID: "bob", Content: "what's up"})
	mb.PublishInbound(bus.InboundMessage{Channel: "cli", SenderID: "nobody", Content: "no conversation id"})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	results := map[string]TurnResult{}
	for len(results) < 2 {
		out, ok := mb.SubscribeOutbound(waitCtx)
		require.True(t, ok, "timed out waiting for turn results")
		require.Empty(t, out.Error)
		assert.Equal(t, bus.OutboundTurn, out.Kind)
		res, ok := out.Result.(TurnResult)
		require.True(t, ok)
		assert.Equal(t, res.TurnID, out.TurnID)
		results[out.SessionKey] = res
	}

	cancel()
	require.NoError(t, <-done)
	mb.Close()

	assert.Equal(t, 2, m.Len())
	alice, err := ResolveSessionKey("", "cli", "c1", "alice")
	require.NoError(t, err)
	s, err := m.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, 2, s.State().Messages, "user turn and recorded reply")
}

func TestAgentLoop_RunReturnsWhenBusCloses(t *testing.T) {
	defer goleak.VerifyNone(t)

	now := epoch
	mb := bus.NewMessageBus()
	al := NewAgentLoop(mb, newTestManager(t, nil, &now, 0))

	done := make(chan error, 1)
	go func() { done <- al.Run(context.Background()) }()
	mb.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after the bus closed")
	}
}

func TestAgentLoop_ProcessDirect(t *testing.T) {
	now := epoch
	al := NewAgentLoop(bus.NewMessageBus(), newTestManager(t, nil, &now, 0))
	ctx := context.Background()

	res, err := al.ProcessDirect(ctx, "local:cli", "hey")
	require.NoError(t, err)
	assert.Equal(t, "local:cli", res.SessionKey)
	require.NoError(t, al.RecordDirectReply("local:cli", "hi babe"))
	assert.ErrorIs(t, al.RecordDirectReply("local:nobody", "hi"), ErrSessionNotFound)

	s, err := al.Sessions().Get("local:cli")
	require.NoError(t, err)
	assert.Equal(t, 2, s.State().Messages)
}

func TestAgentLoop_PublishCheckIn(t *testing.T) {
	now := epoch
	mb := bus.NewMessageBus()
	defer mb.Close()
	al := NewAgentLoop(mb, newTestManager(t, nil, &now, 0))

	al.PublishCheckIn(GhostCheckIn{SessionKey: "local:quiet"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, ok := mb.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, bus.OutboundCheckIn, out.Kind)
	assert.Equal(t, "local:quiet", out.SessionKey)
	assert.IsType(t, GhostCheckIn{}, out.Result)
}
