package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemo/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/service/extract"
)

type UseCases struct {
	repo      interfaces.Repository
	llmClient gollem.LLMClient
	extractor extract.Service
	persona   *model.Persona
}

type Option func(*UseCases)

// WithPersona overrides the default persona.
func WithPersona(persona *model.Persona) Option {
	return func(uc *UseCases) {
		uc.persona = persona
	}
}

// WithExtractor overrides the default concept extractor. Used by tests.
func WithExtractor(extractor extract.Service) Option {
	return func(uc *UseCases) {
		uc.extractor = extractor
	}
}

func New(repo interfaces.Repository, llmClient gollem.LLMClient, opts ...Option) (*UseCases, error) {
	uc := &UseCases{
		repo:      repo,
		llmClient: llmClient,
		persona:   model.DefaultPersona(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.extractor == nil {
		extractor, err := extract.New(llmClient)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create concept extractor")
		}
		uc.extractor = extractor
	}

	return uc, nil
}

// Persona returns the active persona.
func (uc *UseCases) Persona() *model.Persona {
	return uc.persona
}
