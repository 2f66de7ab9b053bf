package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/mnemo/pkg/cli/config"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"github.com/secmon-lab/mnemo/pkg/usecase"
	"github.com/secmon-lab/mnemo/pkg/utils/logging"
)

func cmdChat() *cli.Command {
	var userID string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var personaCfg config.Persona

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID to chat as",
			Required:    true,
			Sources:     cli.EnvVars("MNEMO_USER"),
			Destination: &userID,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, personaCfg.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat session in the terminal",
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

			persona, err := personaCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load persona")
			}

			uc, err := usecase.New(repo, llmClient, usecase.WithPersona(persona))
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}

			return runChatLoop(ctx, uc, userID, os.Stdin, c.Root().Writer)
		},
	}
}

// runChatLoop drives one interactive chat session: read a line, run a
// chat turn, print the reply, until "exit" or EOF.
func runChatLoop(ctx context.Context, uc *usecase.UseCases, userID string, input io.Reader, w io.Writer) error {
	promptColor := color.New(color.FgCyan, color.Bold)
	assistantColor := color.New(color.FgGreen)
	memoryColor := color.New(color.FgYellow)

	conversationID := string(model.NewSessionID())
	var history []model.ChatMessage

	fmt.Fprintf(w, "Chat session started as %s. Type 'exit' to quit.\n", userID)

	scanner := bufio.NewScanner(input)
	for {
		promptColor.Fprintf(w, "> ") //nolint:errcheck // terminal output

		if !scanner.Scan() {
			break
		}

		message := scanner.Text()
		if message == "exit" {
			break
		}
		if message == "" {
			continue
		}

		resp, err := uc.Chat(ctx, &model.ChatRequest{
			UserID:         userID,
			ConversationID: conversationID,
			Message:        message,
			History:        history,
		})
		if err != nil {
			return goerr.Wrap(err, "failed to run chat turn")
		}

		for _, memory := range resp.MemoriesUsed {
			memoryColor.Fprintf(w, "  (recalled: %s)\n", memory.Content) //nolint:errcheck // terminal output
		}
		assistantColor.Fprintf(w, "%s\n", resp.Message.Content) //nolint:errcheck // terminal output

		history = append(history,
			model.ChatMessage{Role: types.RoleUser, Content: message},
			resp.Message,
		)
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read chat input", goerr.V("userID", userID))
	}

	fmt.Fprintf(w, "\nChat session completed\n")
	return nil
}
