package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemo/pkg/domain/model"
)

// MemoryRepository defines the interface for Memory data persistence.
// Every operation is scoped by user ID: memories never cross users.
type MemoryRepository interface {
	// Create creates a new memory entry
	Create(ctx context.Context, userID string, memory *model.Memory) (*model.Memory, error)

	// Get retrieves a memory entry by ID
	Get(ctx context.Context, userID string, memoryID model.MemoryID) (*model.Memory, error)

	// Delete deletes a memory entry by ID
	Delete(ctx context.Context, userID string, memoryID model.MemoryID) error

	// List retrieves all memory entries for a user, newest first
	List(ctx context.Context, userID string) ([]*model.Memory, error)

	// FindByEmbedding performs vector similarity search using cosine
	// distance. Returns up to limit Memory entries most similar to the
	// given embedding, with Distance populated.
	FindByEmbedding(ctx context.Context, userID string, embedding []float32, limit int) ([]*model.Memory, error)
}
