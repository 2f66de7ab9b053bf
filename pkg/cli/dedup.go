package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/mnemo/pkg/cli/config"
	"github.com/secmon-lab/mnemo/pkg/usecase"
	"github.com/secmon-lab/mnemo/pkg/utils/logging"
)

func cmdDedup() *cli.Command {
	var userID string
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID whose memories to deduplicate",
			Required:    true,
			Sources:     cli.EnvVars("MNEMO_USER"),
			Destination: &userID,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:  "dedup",
		Usage: "Remove duplicated memories of a user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize LLM client")
			}

			uc, err := usecase.New(repo, llmClient)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}

			removed, err := uc.DedupSweep(ctx, userID)
			if err != nil {
				return goerr.Wrap(err, "failed to deduplicate memories", goerr.V("userID", userID))
			}

			fmt.Fprintf(c.Root().Writer, "Removed %d duplicated memories for %s\n", removed, userID)
			return nil
		},
	}
}
