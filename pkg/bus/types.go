package bus

type MessageKind string

const (
	// KindUser is a user turn to be decided on.
	KindUser MessageKind = "user"
	// KindAgent records a reply the generator sent.
	KindAgent MessageKind = "agent"
)

type InboundMessage struct {
	SessionKey string            `json:"session_key,omitempty"`
	Channel    string            `json:"channel"`
	ChatID     string            `json:"chat_id"`
	SenderID   string            `json:"sender_id"`
	Content    string            `json:"content"`
	Kind       MessageKind       `json:"kind"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type OutboundKind string

const (
	// OutboundTurn answers an inbound user turn.
	OutboundTurn OutboundKind = "turn"
	// OutboundCheckIn is unprompted: the user has gone quiet.
	OutboundCheckIn OutboundKind = "check_in"
)

// OutboundMessage carries a decision back to the transport. Result is set on
// success and Error otherwise.
type OutboundMessage struct {
	Kind       OutboundKind `json:"kind"`
	SessionKey string       `json:"session_key"`
	Channel    string       `json:"channel,omitempty"`
	ChatID     string       `json:"chat_id,omitempty"`
	TurnID     string       `json:"turn_id,omitempty"`
	Result     any          `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}
