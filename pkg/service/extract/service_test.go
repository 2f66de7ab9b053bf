package extract_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"github.com/secmon-lab/mnemo/pkg/service/extract"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{`{"concepts":[]}`}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn        func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.generateEmbeddingFn != nil {
		return c.generateEmbeddingFn(ctx, dimension, input)
	}
	emb := make([]float64, dimension)
	emb[0] = 1.0
	return [][]float64{emb}, nil
}

func newMockClient(response string) *mockLLMClient {
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{response}}, nil
				},
			}, nil
		},
	}
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts concepts with embeddings", func(t *testing.T) {
		llmClient := newMockClient(`{
			"concepts": [
				{"content": "User lives in Osaka", "kind": "fact", "importance": 0.9},
				{"content": "User prefers concise answers", "kind": "preference", "importance": 0.7}
			]
		}`)

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserID:            "user-1",
			UserMessage:       "I just moved to Osaka, keep it short please",
			AssistantResponse: "Got it, welcome to Osaka!",
		})
		gt.NoError(t, err).Required()

		gt.Array(t, concepts).Length(2).Required()
		gt.Value(t, concepts[0].Content).Equal("User lives in Osaka")
		gt.Value(t, concepts[0].Kind).Equal(types.MemoryKindFact)
		gt.Value(t, concepts[0].Importance).Equal(0.9)
		gt.Array(t, concepts[0].Embedding).Length(model.EmbeddingDimension)
		gt.Value(t, concepts[1].Kind).Equal(types.MemoryKindPreference)
	})

	t.Run("strips code fence from response", func(t *testing.T) {
		llmClient := newMockClient("```json\n{\"concepts\":[{\"content\":\"User has a dog\",\"kind\":\"fact\",\"importance\":0.5}]}\n```")

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "My dog chewed my keyboard",
			AssistantResponse: "Oh no!",
		})
		gt.NoError(t, err).Required()

		gt.Array(t, concepts).Length(1).Required()
		gt.Value(t, concepts[0].Content).Equal("User has a dog")
	})

	t.Run("accepts bare array response", func(t *testing.T) {
		llmClient := newMockClient(`[{"content":"User works remotely","kind":"fact","importance":0.6}]`)

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "I work from home these days",
			AssistantResponse: "Nice!",
		})
		gt.NoError(t, err).Required()

		gt.Array(t, concepts).Length(1).Required()
		gt.Value(t, concepts[0].Content).Equal("User works remotely")
	})

	t.Run("clamps importance into range", func(t *testing.T) {
		llmClient := newMockClient(`{
			"concepts": [
				{"content": "Too important", "kind": "fact", "importance": 4.2},
				{"content": "Negative", "kind": "context", "importance": -1.0}
			]
		}`)

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "something",
			AssistantResponse: "reply",
		})
		gt.NoError(t, err).Required()

		gt.Array(t, concepts).Length(2).Required()
		gt.Value(t, concepts[0].Importance).Equal(1.0)
		gt.Value(t, concepts[1].Importance).Equal(0.0)
	})

	t.Run("unknown kind falls back to context", func(t *testing.T) {
		llmClient := newMockClient(`{"concepts":[{"content":"Odd item","kind":"mystery","importance":0.5}]}`)

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "something",
			AssistantResponse: "reply",
		})
		gt.NoError(t, err).Required()

		gt.Array(t, concepts).Length(1).Required()
		gt.Value(t, concepts[0].Kind).Equal(types.MemoryKindContext)
	})

	t.Run("caps concepts at MaxConcepts", func(t *testing.T) {
		llmClient := newMockClient(`{
			"concepts": [
				{"content": "One", "kind": "fact", "importance": 0.9},
				{"content": "Two", "kind": "fact", "importance": 0.8},
				{"content": "Three", "kind": "fact", "importance": 0.7}
			]
		}`)

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "lots of info",
			AssistantResponse: "noted",
			MaxConcepts:       2,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, concepts).Length(2)
	})

	t.Run("falls back to keywords on invalid JSON", func(t *testing.T) {
		llmClient := newMockClient("this is not JSON at all")

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "I really love hiking in the mountains",
			AssistantResponse: "Sounds great",
		})
		gt.NoError(t, err).Required()

		gt.Array(t, concepts).Length(1).Required()
		gt.Value(t, concepts[0].Kind).Equal(types.MemoryKindContext)
		gt.S(t, concepts[0].Content).Contains("hiking")
		gt.S(t, concepts[0].Content).Contains("mountains")
	})

	t.Run("returns nothing for empty user message", func(t *testing.T) {
		llmClient := &mockLLMClient{}

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "   ",
			AssistantResponse: "reply",
		})
		gt.NoError(t, err).Required()
		gt.Array(t, concepts).Length(0)
	})

	t.Run("returns empty when nothing worth remembering", func(t *testing.T) {
		llmClient := newMockClient(`{"concepts":[]}`)

		svc, err := extract.New(llmClient)
		gt.NoError(t, err).Required()

		concepts, err := svc.Extract(ctx, extract.Input{
			UserMessage:       "hi",
			AssistantResponse: "hello",
		})
		gt.NoError(t, err).Required()
		gt.Array(t, concepts).Length(0)
	})

	t.Run("requires LLM client", func(t *testing.T) {
		_, err := extract.New(nil)
		gt.Value(t, err).NotNil()
	})
}
