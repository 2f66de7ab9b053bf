package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// Persona defines how the assistant presents itself and how aggressively
// the memory pipeline behaves. It is loaded from a TOML file at startup;
// every field has a usable default so the file is optional.
type Persona struct {
	Name string `toml:"name"`

	// Instructions is free-form persona text injected into the system
	// prompt ahead of the memory section.
	Instructions string `toml:"instructions"`

	// RetrieveLimit is the number of memories fetched by the automatic
	// nearest-neighbor search per turn.
	RetrieveLimit int `toml:"retrieve_limit"`

	// MaxConcepts caps how many concepts the extractor may store from a
	// single exchange.
	MaxConcepts int `toml:"max_concepts"`
}

// DefaultPersona returns the persona used when no config file is given.
func DefaultPersona() *Persona {
	return &Persona{
		Name:          "Mnemo",
		Instructions:  "You are a friendly, attentive assistant. Use what you remember about the user naturally, without announcing that you are doing so.",
		RetrieveLimit: 5,
		MaxConcepts:   5,
	}
}

// Validate checks if the Persona is valid
func (p *Persona) Validate() error {
	if p.Name == "" {
		return goerr.New("persona name is required")
	}
	if p.RetrieveLimit < 1 {
		return goerr.New("retrieve_limit must be at least 1", goerr.V("retrieve_limit", p.RetrieveLimit))
	}
	if p.MaxConcepts < 1 {
		return goerr.New("max_concepts must be at least 1", goerr.V("max_concepts", p.MaxConcepts))
	}
	return nil
}
