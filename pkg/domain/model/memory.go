package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
)

// EmbeddingDimension is the dimension of the embedding vector
// used for memory similarity search.
const EmbeddingDimension = 768

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory represents a single remembered concept extracted from a
// conversation (or registered directly). Memories are scoped to exactly
// one user and one conversation, and are never updated in place.
type Memory struct {
	ID             MemoryID         `json:"id"`
	UserID         string           `json:"user_id"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Content        string           `json:"content"`    // The fact, preference, or context to remember
	Kind           types.MemoryKind `json:"kind"`       // fact, preference, or context
	Importance     float64          `json:"importance"` // Relevance weight in [0, 1]
	Embedding      []float32        `json:"-"`          // Vector embedding, kept out of API payloads
	CreatedAt      time.Time        `json:"created_at"`

	// Distance is the similarity distance to the query vector. It is set
	// only on results returned from FindByEmbedding (smaller is closer)
	// and is never persisted.
	Distance float64 `json:"distance,omitempty"`
}

// ClampImportance normalizes the importance score into [0, 1].
// LLM-provided scores occasionally drift outside the range.
func (m *Memory) ClampImportance() {
	if m.Importance < 0 {
		m.Importance = 0
	}
	if m.Importance > 1 {
		m.Importance = 1
	}
}
