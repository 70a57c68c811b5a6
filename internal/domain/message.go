package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Turn is one role-tagged message in a conversation
type Turn struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// UserTurn builds a user turn
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Transport names the wire a message arrived on
type Transport string

const (
	TransportStream   Transport = "tcp"
	TransportDatagram Transport = "udp"
)

// ArchivedTurn is a turn as written to the audit archive
type ArchivedTurn struct {
	ID         uuid.UUID   `json:"id" bson:"_id"`
	InstanceID uuid.UUID   `json:"instance_id" bson:"instance_id"`
	Transport  Transport   `json:"transport" bson:"transport"`
	SessionKey string      `json:"session_key" bson:"session_key"`
	Role       MessageRole `json:"role" bson:"role"`
	Content    string      `json:"content" bson:"content"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
}

// TurnArchive is a write-only sink for accepted turns. It is never read back
// into a SessionStore.
type TurnArchive interface {
	Record(ctx context.Context, turn *ArchivedTurn) error
	Close() error
}
