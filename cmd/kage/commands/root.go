package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/kage/internal/app/root"
	"github.com/slok/kage/internal/jail"
)

// NewRootCmdClause returns the parent command of the jail root subcommands.
func NewRootCmdClause(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("root", "Manage the jail root directory.")
}

type RootGetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewRootGetCommand returns the root get command.
func NewRootGetCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *RootGetCommand {
	c := &RootGetCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("get", "Show the jail root.")
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c RootGetCommand) Name() string { return c.Cmd.FullCommand() }

func (c RootGetCommand) Run(ctx context.Context) error {
	svc, _, err := c.rootCmd.loadRoot(ctx, &jail.Jail{}, nil)
	if err != nil {
		return err
	}

	return c.rootCmd.newPrinter(c.format).PrintRoot(svc.Get(ctx))
}

type RootSetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	path   string
	format string
}

// NewRootSetCommand returns the root set command.
func NewRootSetCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *RootSetCommand {
	c := &RootSetCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("set", "Set the jail root, the directory is created if missing.")
	c.Cmd.Arg("path", "Directory path.").Required().StringVar(&c.path)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c RootSetCommand) Name() string { return c.Cmd.FullCommand() }

func (c RootSetCommand) Run(ctx context.Context) error {
	settingsRepo, err := c.rootCmd.newSettingsRepository()
	if err != nil {
		return err
	}

	svc, err := root.NewService(root.ServiceConfig{
		Jail:     &jail.Jail{},
		Settings: settingsRepo,
		Logger:   c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	r, err := svc.Set(ctx, c.path)
	if err != nil {
		return err
	}

	return c.rootCmd.newPrinter(c.format).PrintRoot(r)
}
