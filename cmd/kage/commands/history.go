package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/kage/internal/app/history"
	"github.com/slok/kage/internal/model"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	statusFilter string
	limit        int
	format       string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the decided commands, newest first.")
	c.Cmd.Flag("status", "Filter by status (done, rejected, error).").StringVar(&c.statusFilter)
	c.Cmd.Flag("limit", "Maximum number of records (0 for all).").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	var statusFilter *model.ExecutionStatus
	if c.statusFilter != "" {
		status := model.ExecutionStatus(strings.ToLower(c.statusFilter))
		switch status {
		case model.ExecutionStatusDone, model.ExecutionStatusRejected, model.ExecutionStatusError:
			statusFilter = &status
		default:
			return fmt.Errorf("invalid status filter: %s (must be: done, rejected, error)", c.statusFilter)
		}
	}

	repo, closeRepo, err := c.rootCmd.newHistoryRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	records, err := svc.Run(ctx, history.Request{
		Limit:        c.limit,
		StatusFilter: statusFilter,
	})
	if err != nil {
		return fmt.Errorf("could not list history: %w", err)
	}

	return c.rootCmd.newPrinter(c.format).PrintHistory(records)
}
