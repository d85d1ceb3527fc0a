package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable entry of the conversation log.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Suggestions []string  `json:"suggestions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMessage stamps a message with a time-ordered UUIDv7 id.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

type ConversationRepository interface {
	// LoadHistory retrieves the persisted log for a conversation, oldest first.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// SaveHistory rewrites the persisted log wholesale (last writer wins).
	SaveHistory(ctx context.Context, conversationID string, messages []Message) error

	// ClearHistory removes all conversation history for a conversation.
	ClearHistory(ctx context.Context, conversationID string) error
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []Message
}
