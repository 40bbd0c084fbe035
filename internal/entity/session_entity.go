package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConversationTurn is one message of the in-memory chat history.
type ConversationTurn struct {
	Role    string // "user" or "assistant"
	Content string
}

// SessionTurn is the durable copy of a conversation turn.
type SessionTurn struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId string
	Role      string
	Content   string
	CreatedAt time.Time
}
