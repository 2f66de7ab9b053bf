package extract

import (
	"context"

	"github.com/secmon-lab/mnemo/pkg/domain/types"
)

// Service defines the interface for concept extraction from a chat exchange
type Service interface {
	// Extract analyzes a single user/assistant exchange and returns the
	// concepts worth remembering, each with an embedding vector.
	Extract(ctx context.Context, input Input) ([]Concept, error)
}

// Input represents a single exchange to analyze
type Input struct {
	UserID            string
	ConversationID    string
	UserMessage       string
	AssistantResponse string

	// MaxConcepts caps the number of concepts returned. Zero means the
	// default limit.
	MaxConcepts int
}

// Concept is a single extracted memory candidate
type Concept struct {
	Content    string
	Kind       types.MemoryKind
	Importance float64
	Embedding  []float32
}

// llmResponse is the structured output from the LLM
type llmResponse struct {
	// Concepts contains only facts, preferences, or context worth
	// remembering about the user
	Concepts []extractedConcept `json:"concepts"`
}

// extractedConcept is a single concept as returned by the LLM
type extractedConcept struct {
	Content    string  `json:"content"`
	Kind       string  `json:"kind"`       // fact, preference, or context
	Importance float64 `json:"importance"` // 0.0 to 1.0
}
