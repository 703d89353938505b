package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/kage/internal/app/approval"
	"github.com/slok/kage/internal/app/fileops"
	"github.com/slok/kage/internal/app/settings"
	"github.com/slok/kage/internal/conventions"
	"github.com/slok/kage/internal/gateway/ws"
	"github.com/slok/kage/internal/jail"
	"github.com/slok/kage/internal/llm/openai"
	"github.com/slok/kage/internal/queue"
	"github.com/slok/kage/internal/runner"
	"github.com/slok/kage/internal/utils/env"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listen      string
	token       string
	origins     []string
	timeout     time.Duration
	maxOutput   int
	envSpecs    []string
	autoExec    bool
	autoExecSet bool
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve the WebSocket API for user interfaces.")
	c.Cmd.Flag("listen", "Address to listen on.").Default(conventions.DefaultListenAddress).StringVar(&c.listen)
	c.Cmd.Flag("token", "Token clients must send to connect.").StringVar(&c.token)
	c.Cmd.Flag("origin", "Allowed cross origin host pattern. Can be repeated.").StringsVar(&c.origins)
	c.Cmd.Flag("timeout", "Maximum command duration.").Default(runner.DefaultTimeout.String()).DurationVar(&c.timeout)
	c.Cmd.Flag("max-output", "Maximum captured bytes per output stream (-1 for no limit).").Default(fmt.Sprintf("%d", runner.DefaultMaxOutputBytes)).IntVar(&c.maxOutput)
	c.Cmd.Flag("env", "Environment variables for the commands (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("auto-exec", "Approve every command without asking, overrides the settings.").IsSetByUser(&c.autoExecSet).BoolVar(&c.autoExec)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	envVars, err := env.Parse(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	hist, closeHist, err := c.rootCmd.newHistoryRepository(ctx)
	if err != nil {
		return err
	}
	defer closeHist()

	j := &jail.Jail{}
	q, err := queue.NewQueue(queue.QueueConfig{Jail: j, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create queue: %w", err)
	}

	settingsRepo, err := c.rootCmd.newSettingsRepository()
	if err != nil {
		return err
	}
	rootSvc, cfg, err := c.rootCmd.loadRootFrom(ctx, settingsRepo, j, q)
	if err != nil {
		return err
	}

	autoExec := cfg.AutoExec
	if c.autoExecSet {
		autoExec = c.autoExec
	}
	if autoExec {
		logger.Warningf("Auto exec is enabled, commands will run without approval")
	}

	r, err := runner.NewRunner(runner.RunnerConfig{
		Shell:          runner.DefaultShell(),
		Timeout:        c.timeout,
		MaxOutputBytes: c.maxOutput,
		Env:            envVars,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create runner: %w", err)
	}

	hub := ws.NewHub(logger)
	approvalSvc, err := approval.NewService(approval.ServiceConfig{
		Queue:       q,
		Runner:      r,
		Jail:        j,
		Notifier:    hub,
		History:     hist,
		AutoApprove: autoExec,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create approval service: %w", err)
	}
	// Don't close the history while auto approved commands are running.
	defer approvalSvc.Wait()

	fileSvc, err := fileops.NewService(fileops.ServiceConfig{Jail: j, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create file service: %w", err)
	}

	settingsCfg := settings.ServiceConfig{
		Settings:     settingsRepo,
		Root:         rootSvc,
		AutoApprover: approvalSvc,
		Logger:       logger,
	}

	var completer ws.Completer
	if key := openai.APIKeyFromEnv(); key != "" {
		client, err := openai.NewClient(openai.ClientConfig{APIKey: key, Model: cfg.Model, Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create LLM client: %w", err)
		}
		completer = client
		settingsCfg.ModelSetter = client
	} else {
		logger.Infof("OpenAI API key not set, completions disabled")
	}

	settingsSvc, err := settings.NewService(settingsCfg)
	if err != nil {
		return fmt.Errorf("could not create settings service: %w", err)
	}

	server, err := ws.NewServer(ws.ServerConfig{
		Hub:            hub,
		Approval:       approvalSvc,
		Root:           rootSvc,
		Files:          fileSvc,
		Settings:       settingsSvc,
		Completer:      completer,
		Token:          c.token,
		OriginPatterns: c.origins,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	logger.Infof("Jail root is %s", j.Root())

	return server.Run(ctx, c.listen)
}
