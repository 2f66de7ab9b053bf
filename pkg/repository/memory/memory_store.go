package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
)

type memoryRepository struct {
	mu sync.RWMutex

	// memories is keyed by userID, then by memoryID
	memories map[string]map[model.MemoryID]*model.Memory
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		memories: make(map[string]map[model.MemoryID]*model.Memory),
	}
}

func copyMemory(memory *model.Memory) *model.Memory {
	copied := *memory
	copied.Embedding = make([]float32, len(memory.Embedding))
	copy(copied.Embedding, memory.Embedding)
	return &copied
}

func (r *memoryRepository) Create(ctx context.Context, userID string, memory *model.Memory) (*model.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if memory.ID == "" {
		memory.ID = model.NewMemoryID()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	memory.UserID = userID

	if _, ok := r.memories[userID]; !ok {
		r.memories[userID] = make(map[model.MemoryID]*model.Memory)
	}
	r.memories[userID][memory.ID] = copyMemory(memory)

	return memory, nil
}

func (r *memoryRepository) Get(ctx context.Context, userID string, memoryID model.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memory, ok := r.memories[userID][memoryID]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "memory not found",
			goerr.V("userID", userID),
			goerr.V("memoryID", memoryID))
	}

	return copyMemory(memory), nil
}

func (r *memoryRepository) Delete(ctx context.Context, userID string, memoryID model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memories[userID][memoryID]; !ok {
		return goerr.Wrap(ErrNotFound, "memory not found",
			goerr.V("userID", userID),
			goerr.V("memoryID", memoryID))
	}

	delete(r.memories[userID], memoryID)
	return nil
}

func (r *memoryRepository) List(ctx context.Context, userID string) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memories := make([]*model.Memory, 0, len(r.memories[userID]))
	for _, memory := range r.memories[userID] {
		memories = append(memories, copyMemory(memory))
	}

	// Newest first, matching the Firestore backend ordering
	sort.Slice(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})

	return memories, nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, userID string, embedding []float32, limit int) ([]*model.Memory, error) {
	if len(embedding) == 0 {
		return nil, goerr.New("embedding is required for similarity search")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var memories []*model.Memory
	for _, memory := range r.memories[userID] {
		if len(memory.Embedding) != len(embedding) {
			continue
		}
		copied := copyMemory(memory)
		copied.Distance = 1 - cosineSimilarity(embedding, memory.Embedding)
		memories = append(memories, copied)
	}

	sort.Slice(memories, func(i, j int) bool {
		return memories[i].Distance < memories[j].Distance
	})

	if len(memories) > limit {
		memories = memories[:limit]
	}

	return memories, nil
}

// cosineSimilarity computes the cosine similarity of two vectors of the
// same length. Zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
