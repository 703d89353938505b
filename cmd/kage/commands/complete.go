package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/kage/internal/llm/openai"
)

type CompleteCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	prompt  []string
	model   string
	baseURL string
}

// NewCompleteCommand returns the complete command.
func NewCompleteCommand(rootCmd *RootCommand, app *kingpin.Application) *CompleteCommand {
	c := &CompleteCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("complete", "Complete a prompt with the configured LLM (needs OPENAI_API_KEY).")
	c.Cmd.Arg("prompt", "Prompt text.").Required().StringsVar(&c.prompt)
	c.Cmd.Flag("model", "Model to use, overrides the settings model.").StringVar(&c.model)
	c.Cmd.Flag("api-url", "OpenAI compatible API base URL.").Hidden().StringVar(&c.baseURL)

	return c
}

func (c CompleteCommand) Name() string { return c.Cmd.FullCommand() }

func (c CompleteCommand) Run(ctx context.Context) error {
	settingsRepo, err := c.rootCmd.newSettingsRepository()
	if err != nil {
		return err
	}
	settings, err := settingsRepo.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("could not load settings: %w", err)
	}

	model := settings.Model
	if c.model != "" {
		model = c.model
	}

	client, err := openai.NewClient(openai.ClientConfig{
		APIKey:  openai.APIKeyFromEnv(),
		Model:   model,
		BaseURL: c.baseURL,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create LLM client: %w", err)
	}

	text, err := client.Complete(ctx, strings.Join(c.prompt, " "))
	if err != nil {
		return err
	}

	fmt.Fprintln(c.rootCmd.Stdout, text)
	return nil
}
