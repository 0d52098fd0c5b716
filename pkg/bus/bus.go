package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MessageBus hands turns from transports to the agent loop and decisions
// back. Publishing never blocks longer than publishTimeout; overflow is
// counted and dropped.
type MessageBus struct {
	inbound       chan InboundMessage
	outbound      chan OutboundMessage
	closed        bool
	inboundClosed bool
	dropped       droppedCounters
	mu            sync.RWMutex
}

type droppedCounters struct {
	inbound  atomic.Uint64
	outbound atomic.Uint64
}

const (
	publishTimeout    = 100 * time.Millisecond
	DefaultBufferSize = 100
)

func NewMessageBus() *MessageBus {
	return NewMessageBusSize(DefaultBufferSize)
}

func NewMessageBusSize(size int) *MessageBus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, size),
		outbound: make(chan OutboundMessage, size),
	}
}

// PublishInbound reports whether msg was queued.
func (mb *MessageBus) PublishInbound(msg InboundMessage) bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed || mb.inboundClosed {
		return false
	}
	if msg.Kind == "" {
		msg.Kind = KindUser
	}

	select {
	case mb.inbound <- msg:
		return true
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.inbound <- msg:
			return true
		case <-timer.C:
			mb.dropped.inbound.Add(1)
			return false
		}
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		if !ok {
			return InboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return false
	}

	select {
	case mb.outbound <- msg:
		return true
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.outbound <- msg:
			return true
		case <-timer.C:
			mb.dropped.outbound.Add(1)
			return false
		}
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg, ok := <-mb.outbound:
		if !ok {
			return OutboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// CloseInbound stops accepting turns. Queued turns are still consumed and
// outbound keeps flowing until Close.
func (mb *MessageBus) CloseInbound() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed || mb.inboundClosed {
		return
	}
	mb.inboundClosed = true
	close(mb.inbound)
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	if !mb.inboundClosed {
		mb.inboundClosed = true
		close(mb.inbound)
	}
	close(mb.outbound)
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.dropped.inbound.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.dropped.outbound.Load()
}
