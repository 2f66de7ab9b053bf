package model

import (
	"time"

	"github.com/secmon-lab/mnemo/pkg/domain/types"
)

// ChatMessage is a single conversation turn. Messages are ephemeral:
// the client holds the transcript and sends recent turns with each
// request, the server never persists them.
type ChatMessage struct {
	Role      types.Role `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp,omitzero"`
}

// ChatRequest is the input to one chat turn.
type ChatRequest struct {
	UserID         string        `json:"user_id"`
	ConversationID string        `json:"conversation_id"`
	Message        string        `json:"message"`
	History        []ChatMessage `json:"history,omitempty"`

	// MemoryIDs are memories explicitly attached by the user. When set,
	// they replace the automatic nearest-neighbor search.
	MemoryIDs []MemoryID `json:"memory_ids,omitempty"`
}

// ChatResponse is the result of one chat turn.
type ChatResponse struct {
	Message ChatMessage `json:"message"`

	// MemoriesUsed lists the memories injected into the system prompt
	// for this turn (attached or retrieved).
	MemoriesUsed []*Memory `json:"memories_used,omitempty"`
}
