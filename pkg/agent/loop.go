// DotPersona - Persona conversation decision engine
// License: MIT
//
// Copyright (c) 2026 DotPersona contributors

package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dotsetgreg/dotpersona/pkg/bus"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

const sessionQueueSize = 16

// AgentLoop consumes turns from the bus. Sessions run concurrently with one
// worker each, so a session sees its messages in publish order.
type AgentLoop struct {
	bus      *bus.MessageBus
	sessions *Manager
	running  atomic.Bool
	workers  map[string]chan bus.InboundMessage
	wg       sync.WaitGroup
}

func NewAgentLoop(msgBus *bus.MessageBus, sessions *Manager) *AgentLoop {
	return &AgentLoop{
		bus:      msgBus,
		sessions: sessions,
		workers:  make(map[string]chan bus.InboundMessage),
	}
}

// Run blocks until ctx is done, the bus closes or Stop is called, and
// returns only after every session worker has drained.
func (al *AgentLoop) Run(ctx context.Context) error {
	al.running.Store(true)
	defer func() {
		for key, ch := range al.workers {
			close(ch)
			delete(al.workers, key)
		}
		al.wg.Wait()
	}()

	for al.running.Load() {
		msg, ok := al.bus.ConsumeInbound(ctx)
		if !ok {
			return nil
		}
		key, err := ResolveSessionKey(msg.SessionKey, msg.Channel, msg.ChatID, msg.SenderID)
		if err != nil {
			logger.WarnCF("agent", "Dropping message without session identity", map[string]any{
				"channel":   msg.Channel,
				"sender_id": msg.SenderID,
				"error":     err.Error(),
			})
			continue
		}
		msg.SessionKey = key

		select {
		case al.worker(ctx, key) <- msg:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (al *AgentLoop) worker(ctx context.Context, key string) chan bus.InboundMessage {
	if ch, ok := al.workers[key]; ok {
		return ch
	}
	ch := make(chan bus.InboundMessage, sessionQueueSize)
	al.workers[key] = ch
	al.wg.Add(1)
	go func() {
		defer al.wg.Done()
		for msg := range ch {
			al.handle(ctx, msg)
		}
	}()
	return ch
}

func (al *AgentLoop) Stop() {
	al.running.Store(false)
}

func (al *AgentLoop) handle(ctx context.Context, msg bus.InboundMessage) {
	out := bus.OutboundMessage{Kind: bus.OutboundTurn, SessionKey: msg.SessionKey, Channel: msg.Channel, ChatID: msg.ChatID}

	sess, err := al.sessions.OpenKey(ctx, msg.SessionKey)
	if err != nil {
		out.Error = err.Error()
		al.bus.PublishOutbound(out)
		return
	}

	if msg.Kind == bus.KindAgent {
		if err := sess.RecordAgentReply(msg.Content); err != nil {
			logger.WarnCF("agent", "Failed to record agent reply", map[string]any{
				"session": msg.SessionKey,
				"error":   err.Error(),
			})
		}
		return
	}

	res, err := sess.ProcessTurn(ctx, msg.Content)
	if err != nil {
		out.Error = err.Error()
		al.bus.PublishOutbound(out)
		return
	}
	out.TurnID = res.TurnID
	out.Result = res
	al.bus.PublishOutbound(out)
}

// PublishCheckIn sends a silence check-in to the transport.
func (al *AgentLoop) PublishCheckIn(c GhostCheckIn) {
	al.bus.PublishOutbound(bus.OutboundMessage{Kind: bus.OutboundCheckIn, SessionKey: c.SessionKey, Result: c})
}

// ProcessDirect runs one user turn synchronously, bypassing the bus.
func (al *AgentLoop) ProcessDirect(ctx context.Context, sessionKey, content string) (TurnResult, error) {
	sess, err := al.sessions.OpenKey(ctx, sessionKey)
	if err != nil {
		return TurnResult{}, err
	}
	return sess.ProcessTurn(ctx, content)
}

// RecordDirectReply records an agent reply on an open session.
func (al *AgentLoop) RecordDirectReply(sessionKey, content string) error {
	sess, err := al.sessions.Get(sessionKey)
	if err != nil {
		return fmt.Errorf("record reply: %w", err)
	}
	return sess.RecordAgentReply(content)
}

func (al *AgentLoop) Sessions() *Manager { return al.sessions }
