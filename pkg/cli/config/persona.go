package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Persona holds CLI flags for persona configuration
type Persona struct {
	configPath string
}

// Flags returns CLI flags for persona configuration
func (p *Persona) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "persona",
			Usage:       "Path to persona TOML file (defaults apply when omitted)",
			Sources:     cli.EnvVars("MNEMO_PERSONA"),
			Destination: &p.configPath,
		},
	}
}

// Configure loads the persona from the configured TOML file. Fields absent
// from the file keep their default values.
func (p *Persona) Configure() (*model.Persona, error) {
	persona := model.DefaultPersona()

	if p.configPath == "" {
		return persona, nil
	}

	data, err := os.ReadFile(p.configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read persona file", goerr.V("path", p.configPath))
	}

	if err := toml.Unmarshal(data, persona); err != nil {
		return nil, goerr.Wrap(err, "failed to parse persona file", goerr.V("path", p.configPath))
	}

	if err := persona.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid persona configuration", goerr.V("path", p.configPath))
	}

	logging.Default().Info("Loaded persona",
		"path", p.configPath,
		"name", persona.Name,
		"retrieve_limit", persona.RetrieveLimit,
		"max_concepts", persona.MaxConcepts,
	)

	return persona, nil
}
