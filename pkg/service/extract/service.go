package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"github.com/secmon-lab/mnemo/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// defaultMaxConcepts bounds how many concepts one exchange may produce
// when the caller does not set a limit.
const defaultMaxConcepts = 5

// maxEmbeddingConcurrency caps concurrent embedding requests per exchange.
const maxEmbeddingConcurrency = 4

// client implements Service interface
type client struct {
	llmClient gollem.LLMClient
}

// Option is a functional option for client configuration
type Option func(*client)

// New creates a new concept extraction service with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &client{
		llmClient: llmClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Extract analyzes a user/assistant exchange and extracts memorable concepts
func (c *client) Extract(ctx context.Context, input Input) ([]Concept, error) {
	if strings.TrimSpace(input.UserMessage) == "" {
		return nil, nil
	}

	maxConcepts := input.MaxConcepts
	if maxConcepts <= 0 {
		maxConcepts = defaultMaxConcepts
	}

	concepts, err := c.extractWithLLM(ctx, input, maxConcepts)
	if err != nil {
		// The LLM response is not under our control. Fall back to keyword
		// extraction rather than losing the exchange entirely.
		logging.From(ctx).Warn("concept extraction via LLM failed, falling back to keywords",
			"error", err,
			"userID", input.UserID)
		concepts = fallbackConcepts(input.UserMessage)
	}

	if len(concepts) > maxConcepts {
		concepts = concepts[:maxConcepts]
	}

	// Generate embeddings for each concept. Embedding calls are
	// independent, so run them concurrently with a small cap to avoid
	// hammering the embedding API.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxEmbeddingConcurrency)

	results := make([]Concept, len(concepts))
	for i, concept := range concepts {
		eg.Go(func() error {
			embedding, err := c.generateEmbedding(egCtx, concept.Content)
			if err != nil {
				return goerr.Wrap(err, "failed to generate embedding",
					goerr.V("content", concept.Content))
			}
			concept.Embedding = embedding
			results[i] = concept
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (c *client) extractWithLLM(ctx context.Context, input Input, maxConcepts int) ([]Concept, error) {
	systemPrompt := buildSystemPrompt(maxConcepts)
	userPrompt := buildUserPrompt(input)
	schema := c.buildResponseSchema()

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content from LLM")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("empty LLM response")
	}

	raw := stripCodeFence(resp.Texts[0])

	extractedConcepts, err := parseConcepts(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", raw))
	}

	concepts := make([]Concept, 0, len(extractedConcepts))
	for _, extracted := range extractedConcepts {
		content := strings.TrimSpace(extracted.Content)
		if content == "" {
			continue
		}

		concept := Concept{
			Content:    content,
			Kind:       types.ParseMemoryKind(extracted.Kind),
			Importance: clampImportance(extracted.Importance),
		}
		concepts = append(concepts, concept)
	}

	return concepts, nil
}

// parseConcepts accepts both the schema-conformant object form and a bare
// JSON array, which some models return despite the response schema.
func parseConcepts(raw string) ([]extractedConcept, error) {
	if strings.HasPrefix(raw, "[") {
		var concepts []extractedConcept
		if err := json.Unmarshal([]byte(raw), &concepts); err != nil {
			return nil, err
		}
		return concepts, nil
	}

	var llmResp llmResponse
	if err := json.Unmarshal([]byte(raw), &llmResp); err != nil {
		return nil, err
	}
	return llmResp.Concepts, nil
}

// stripCodeFence removes a Markdown code fence wrapper that some models
// emit even when asked for raw JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// buildSystemPrompt creates the fixed system prompt for concept extraction
func buildSystemPrompt(maxConcepts int) string {
	var sb strings.Builder

	sb.WriteString("You are a memory extraction assistant. Your task is to analyze a conversation exchange and identify information worth remembering about the user for future conversations.\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. Read the user message and the assistant response.\n")
	sb.WriteString("2. Identify durable information about the user. For each item, provide:\n")
	sb.WriteString("   - content: A short, self-contained statement (in the same language as the conversation)\n")
	sb.WriteString("   - kind: One of \"fact\" (objective information about the user), \"preference\" (likes, dislikes, habits), or \"context\" (situational details)\n")
	sb.WriteString("   - importance: A score from 0.0 to 1.0 reflecting how useful this is for future conversations\n")
	sb.WriteString("3. Skip small talk, transient requests, and anything already implied by another concept.\n")
	fmt.Fprintf(&sb, "4. Return at most %d concepts. If nothing is worth remembering, return an empty array.\n", maxConcepts)

	return sb.String()
}

// buildUserPrompt creates the user prompt with the exchange to analyze
func buildUserPrompt(input Input) string {
	var sb strings.Builder

	sb.WriteString("## User Message:\n\n")
	sb.WriteString(input.UserMessage)
	sb.WriteString("\n\n## Assistant Response:\n\n")
	sb.WriteString(input.AssistantResponse)
	sb.WriteString("\n")

	return sb.String()
}

// buildResponseSchema creates the JSON schema for structured output
func (c *client) buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "ConceptExtractionResponse",
		Description: "Response containing concepts worth remembering about the user",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"concepts": {
				Type:        gollem.TypeArray,
				Description: "List of concepts extracted from the exchange",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"content": {
							Type:        gollem.TypeString,
							Description: "A short, self-contained statement about the user",
							Required:    true,
						},
						"kind": {
							Type:        gollem.TypeString,
							Description: "One of: fact, preference, context",
							Required:    true,
						},
						"importance": {
							Type:        gollem.TypeNumber,
							Description: "Importance score from 0.0 to 1.0",
							Required:    true,
						},
					},
				},
			},
		},
	}
}

// generateEmbedding generates an embedding vector for the given text
func (c *client) generateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}

	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	// Convert float64 to float32
	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	return result, nil
}
