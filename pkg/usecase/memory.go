package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"github.com/secmon-lab/mnemo/pkg/utils/logging"
)

// Remember stores a new memory for the user. If an existing memory already
// covers the content (bidirectional case-insensitive substring match), the
// existing memory is returned and nothing is created.
func (uc *UseCases) Remember(ctx context.Context, userID string, content string, kind types.MemoryKind, importance float64) (*model.Memory, bool, error) {
	if userID == "" {
		return nil, false, goerr.Wrap(ErrUserIDRequired, "remember requires a user")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false, goerr.Wrap(ErrEmptyContent, "remember requires content", goerr.V(UserIDKey, userID))
	}

	existing, err := uc.repo.Memory().List(ctx, userID)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to list memories for dedup", goerr.V(UserIDKey, userID))
	}
	for _, memory := range existing {
		if isDuplicateContent(memory.Content, content) {
			return memory, false, nil
		}
	}

	embedding, err := uc.generateEmbedding(ctx, content)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to embed memory content", goerr.V(UserIDKey, userID))
	}

	memory := &model.Memory{
		Content:    content,
		Kind:       kind,
		Importance: importance,
		Embedding:  embedding,
	}
	memory.ClampImportance()

	created, err := uc.repo.Memory().Create(ctx, userID, memory)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to create memory", goerr.V(UserIDKey, userID))
	}

	return created, true, nil
}

// ListMemories returns all memories of the user, newest first.
func (uc *UseCases) ListMemories(ctx context.Context, userID string) ([]*model.Memory, error) {
	if userID == "" {
		return nil, goerr.Wrap(ErrUserIDRequired, "list requires a user")
	}

	memories, err := uc.repo.Memory().List(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V(UserIDKey, userID))
	}

	return memories, nil
}

// Forget deletes a memory of the user.
func (uc *UseCases) Forget(ctx context.Context, userID string, memoryID model.MemoryID) error {
	if userID == "" {
		return goerr.Wrap(ErrUserIDRequired, "forget requires a user")
	}

	if err := uc.repo.Memory().Delete(ctx, userID, memoryID); err != nil {
		if isNotFound(err) {
			return goerr.Wrap(ErrMemoryNotFound, "cannot forget unknown memory",
				goerr.V(UserIDKey, userID),
				goerr.V(MemoryIDKey, memoryID))
		}
		return goerr.Wrap(err, "failed to delete memory",
			goerr.V(UserIDKey, userID),
			goerr.V(MemoryIDKey, memoryID))
	}

	return nil
}

// SearchMemories performs semantic search over the user's memories.
func (uc *UseCases) SearchMemories(ctx context.Context, userID string, query string, limit int) ([]*model.Memory, error) {
	if userID == "" {
		return nil, goerr.Wrap(ErrUserIDRequired, "search requires a user")
	}
	if strings.TrimSpace(query) == "" {
		return nil, goerr.Wrap(ErrEmptyQuery, "search requires a query", goerr.V(UserIDKey, userID))
	}
	if limit <= 0 {
		limit = uc.persona.RetrieveLimit
	}

	embedding, err := uc.generateEmbedding(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query", goerr.V(UserIDKey, userID))
	}

	memories, err := uc.repo.Memory().FindByEmbedding(ctx, userID, embedding, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories", goerr.V(UserIDKey, userID))
	}

	return memories, nil
}

// DedupSweep removes duplicated memories of the user, keeping the earliest
// created memory of each duplicate group. Returns the number of removed
// memories.
func (uc *UseCases) DedupSweep(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, goerr.Wrap(ErrUserIDRequired, "dedup requires a user")
	}

	memories, err := uc.repo.Memory().List(ctx, userID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list memories for dedup", goerr.V(UserIDKey, userID))
	}

	// Oldest first: the earliest memory of each duplicate group survives
	sort.Slice(memories, func(i, j int) bool {
		return memories[i].CreatedAt.Before(memories[j].CreatedAt)
	})

	var kept []*model.Memory
	removed := 0
	for _, memory := range memories {
		duplicate := false
		for _, k := range kept {
			if isDuplicateContent(k.Content, memory.Content) {
				duplicate = true
				break
			}
		}

		if !duplicate {
			kept = append(kept, memory)
			continue
		}

		if err := uc.repo.Memory().Delete(ctx, userID, memory.ID); err != nil {
			return removed, goerr.Wrap(err, "failed to delete duplicate memory",
				goerr.V(UserIDKey, userID),
				goerr.V(MemoryIDKey, memory.ID))
		}
		removed++
	}

	if removed > 0 {
		logging.From(ctx).Info("removed duplicate memories", "userID", userID, "removed", removed)
	}

	return removed, nil
}

// isDuplicateContent reports whether two memory contents duplicate each
// other: one contains the other, ignoring case and surrounding whitespace.
func isDuplicateContent(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// generateEmbedding embeds a single text into the fixed dimension used by
// the memory store.
func (uc *UseCases) generateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := uc.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	return result, nil
}
