package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"github.com/secmon-lab/mnemo/pkg/service/extract"
	"github.com/secmon-lab/mnemo/pkg/utils/async"
	"github.com/secmon-lab/mnemo/pkg/utils/logging"
)

//go:embed prompt/chat_system.md
var chatSystemPromptTmpl string

var chatSystemPrompt = template.Must(template.New("chat_system").Parse(chatSystemPromptTmpl))

// ChatEvents carries optional callbacks fired during a chat turn. Any
// field may be nil. Callbacks are invoked synchronously from the chat
// goroutine except OnMemoryCreated, which fires from the background
// extraction task.
type ChatEvents struct {
	OnMemories      func(ctx context.Context, memories []*model.Memory)
	OnDelta         func(ctx context.Context, delta string)
	OnMemoryCreated func(ctx context.Context, memory *model.Memory)
}

// Chat runs one conversation turn: retrieves relevant memories, generates
// the assistant response, and schedules concept extraction in the
// background.
func (uc *UseCases) Chat(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	return uc.chat(ctx, req, nil, false)
}

// ChatStream is Chat with incremental delivery: response fragments are
// passed to events.OnDelta as they arrive from the LLM.
func (uc *UseCases) ChatStream(ctx context.Context, req *model.ChatRequest, events *ChatEvents) (*model.ChatResponse, error) {
	return uc.chat(ctx, req, events, true)
}

func (uc *UseCases) chat(ctx context.Context, req *model.ChatRequest, events *ChatEvents, stream bool) (*model.ChatResponse, error) {
	if req.UserID == "" {
		return nil, goerr.Wrap(ErrUserIDRequired, "chat requires a user")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, goerr.Wrap(ErrEmptyMessage, "chat requires a message", goerr.V(UserIDKey, req.UserID))
	}

	memories, err := uc.resolveMemories(ctx, req)
	if err != nil {
		return nil, err
	}
	if events != nil && events.OnMemories != nil {
		events.OnMemories(ctx, memories)
	}

	systemPrompt, err := buildChatSystemPrompt(uc.persona, memories, req.History)
	if err != nil {
		return nil, err
	}

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session", goerr.V(UserIDKey, req.UserID))
	}

	var answer string
	if stream {
		answer, err = generateStreaming(ctx, session, req.Message, events)
	} else {
		answer, err = generateOnce(ctx, session, req.Message)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate chat response", goerr.V(UserIDKey, req.UserID))
	}

	// Concept extraction must not delay the response
	async.Dispatch(ctx, func(ctx context.Context) error {
		return uc.rememberExchange(ctx, req, answer, events)
	})

	return &model.ChatResponse{
		Message: model.ChatMessage{
			Role:      types.RoleAssistant,
			Content:   answer,
			Timestamp: time.Now(),
		},
		MemoriesUsed: memories,
	}, nil
}

// resolveMemories returns the memories to ground this turn on. Explicitly
// attached memory IDs win over automatic retrieval; unknown IDs are
// skipped. When no attached ID resolves, automatic retrieval kicks in.
func (uc *UseCases) resolveMemories(ctx context.Context, req *model.ChatRequest) ([]*model.Memory, error) {
	logger := logging.From(ctx)

	if len(req.MemoryIDs) > 0 {
		memories := make([]*model.Memory, 0, len(req.MemoryIDs))
		for _, memoryID := range req.MemoryIDs {
			memory, err := uc.repo.Memory().Get(ctx, req.UserID, memoryID)
			if err != nil {
				if isNotFound(err) {
					logger.Warn("attached memory not found, skipping",
						"userID", req.UserID,
						"memoryID", memoryID)
					continue
				}
				return nil, goerr.Wrap(err, "failed to get attached memory",
					goerr.V(UserIDKey, req.UserID),
					goerr.V(MemoryIDKey, memoryID))
			}
			memories = append(memories, memory)
		}

		if len(memories) > 0 {
			return memories, nil
		}
		logger.Warn("no attached memory resolved, falling back to retrieval", "userID", req.UserID)
	}

	embedding, err := uc.generateEmbedding(ctx, req.Message)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed chat message", goerr.V(UserIDKey, req.UserID))
	}

	memories, err := uc.repo.Memory().FindByEmbedding(ctx, req.UserID, embedding, uc.persona.RetrieveLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve memories", goerr.V(UserIDKey, req.UserID))
	}

	return memories, nil
}

func generateOnce(ctx context.Context, session gollem.Session, message string) (string, error) {
	resp, err := session.GenerateContent(ctx, gollem.Text(message))
	if err != nil {
		return "", err
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("empty LLM response")
	}
	return strings.Join(resp.Texts, "\n"), nil
}

func generateStreaming(ctx context.Context, session gollem.Session, message string, events *ChatEvents) (string, error) {
	ch, err := session.GenerateStream(ctx, gollem.Text(message))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for resp := range ch {
		if resp == nil {
			continue
		}
		for _, text := range resp.Texts {
			if text == "" {
				continue
			}
			sb.WriteString(text)
			if events != nil && events.OnDelta != nil {
				events.OnDelta(ctx, text)
			}
		}
	}

	if sb.Len() == 0 {
		return "", goerr.New("empty LLM stream")
	}

	return sb.String(), nil
}

// rememberExchange extracts concepts from the finished exchange and stores
// the ones not already covered by an existing memory.
func (uc *UseCases) rememberExchange(ctx context.Context, req *model.ChatRequest, answer string, events *ChatEvents) error {
	concepts, err := uc.extractor.Extract(ctx, extract.Input{
		UserID:            req.UserID,
		ConversationID:    req.ConversationID,
		UserMessage:       req.Message,
		AssistantResponse: answer,
		MaxConcepts:       uc.persona.MaxConcepts,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to extract concepts", goerr.V(UserIDKey, req.UserID))
	}
	if len(concepts) == 0 {
		return nil
	}

	existing, err := uc.repo.Memory().List(ctx, req.UserID)
	if err != nil {
		return goerr.Wrap(err, "failed to list memories for dedup", goerr.V(UserIDKey, req.UserID))
	}

	logger := logging.From(ctx)
	for _, concept := range concepts {
		duplicate := false
		for _, memory := range existing {
			if isDuplicateContent(memory.Content, concept.Content) {
				duplicate = true
				break
			}
		}
		if duplicate {
			logger.Debug("skipping duplicate concept", "userID", req.UserID, "content", concept.Content)
			continue
		}

		memory := &model.Memory{
			ConversationID: req.ConversationID,
			Content:        concept.Content,
			Kind:           concept.Kind,
			Importance:     concept.Importance,
			Embedding:      concept.Embedding,
		}
		memory.ClampImportance()

		created, err := uc.repo.Memory().Create(ctx, req.UserID, memory)
		if err != nil {
			return goerr.Wrap(err, "failed to store extracted memory",
				goerr.V(UserIDKey, req.UserID),
				goerr.V("content", concept.Content))
		}
		existing = append(existing, created)

		logger.Info("stored new memory",
			"userID", req.UserID,
			"memoryID", created.ID,
			"kind", created.Kind)

		if events != nil && events.OnMemoryCreated != nil {
			events.OnMemoryCreated(ctx, created)
		}
	}

	return nil
}

// chatPromptMemory represents a memory for the system prompt template
type chatPromptMemory struct {
	Kind    string
	Content string
}

// chatPromptMessage represents a history entry for the template
type chatPromptMessage struct {
	Role    string
	Content string
}

// chatPromptData holds all data for the chat system prompt template
type chatPromptData struct {
	Name         string
	Instructions string
	Memories     []chatPromptMemory
	History      []chatPromptMessage
}

func buildChatSystemPrompt(persona *model.Persona, memories []*model.Memory, history []model.ChatMessage) (string, error) {
	data := chatPromptData{
		Name:         persona.Name,
		Instructions: persona.Instructions,
	}

	for _, memory := range memories {
		data.Memories = append(data.Memories, chatPromptMemory{
			Kind:    string(memory.Kind),
			Content: memory.Content,
		})
	}

	for _, msg := range history {
		data.History = append(data.History, chatPromptMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	var buf bytes.Buffer
	if err := chatSystemPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute chat system prompt template")
	}

	return buf.String(), nil
}
