package agent

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

const sessionKeyVersion = "v1"

// SessionIdentity names the conversation a session belongs to. Two
// identities that canonicalize the same share one session.
type SessionIdentity struct {
	Channel        string
	ConversationID string
	ActorID        string
}

func (id SessionIdentity) Validate() error {
	if strings.TrimSpace(id.Channel) == "" {
		return fmt.Errorf("missing channel")
	}
	if strings.TrimSpace(id.ConversationID) == "" {
		return fmt.Errorf("missing conversation id")
	}
	if strings.TrimSpace(id.ActorID) == "" {
		return fmt.Errorf("missing actor id")
	}
	return nil
}

func (id SessionIdentity) Canonical() string {
	return strings.ToLower(strings.TrimSpace(id.Channel)) + "|" +
		strings.TrimSpace(id.ConversationID) + "|" +
		strings.TrimSpace(id.ActorID)
}

func (id SessionIdentity) SessionKey() string {
	sum := sha1.Sum([]byte(id.Canonical()))
	return sessionKeyVersion + ":" + hex.EncodeToString(sum[:16])
}

// IsSessionKey reports whether key was produced by SessionKey.
func IsSessionKey(key string) bool {
	return strings.HasPrefix(strings.TrimSpace(key), sessionKeyVersion+":")
}

// ResolveSessionKey prefers an explicit v1 key, then the identity. An
// explicit key in any other format is used verbatim when the identity is
// incomplete, so operators can name local sessions.
func ResolveSessionKey(explicitKey, channel, conversationID, actorID string) (string, error) {
	explicitKey = strings.TrimSpace(explicitKey)
	if IsSessionKey(explicitKey) {
		return explicitKey, nil
	}
	identity := SessionIdentity{
		Channel:        strings.TrimSpace(channel),
		ConversationID: strings.TrimSpace(conversationID),
		ActorID:        strings.TrimSpace(actorID),
	}
	if err := identity.Validate(); err != nil {
		if explicitKey != "" {
			return explicitKey, nil
		}
		return "", fmt.Errorf("resolve session identity: %w", err)
	}
	return identity.SessionKey(), nil
}
