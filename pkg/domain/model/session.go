package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionID is a UUID-based identifier for a realtime session
type SessionID string

// NewSessionID generates a new UUID v4 SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Session pairs a user and a conversation with one live realtime
// connection. It exists for the lifetime of a single WebSocket
// interaction and is discarded on disconnect.
type Session struct {
	ID             SessionID `json:"session_id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

// NewSession creates a Session for the given user and conversation.
func NewSession(userID, conversationID string) *Session {
	return &Session{
		ID:             NewSessionID(),
		UserID:         userID,
		ConversationID: conversationID,
		StartedAt:      time.Now().UTC(),
	}
}
