package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/term"

	"github.com/slok/kage/internal/app/approval"
	"github.com/slok/kage/internal/jail"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/printer"
	"github.com/slok/kage/internal/queue"
	"github.com/slok/kage/internal/runner"
	"github.com/slok/kage/internal/utils/env"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	command   []string
	cwd       string
	yes       bool
	envSpecs  []string
	timeout   time.Duration
	maxOutput int
	format    string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Ask for approval and run a shell command in the jail root.")
	c.Cmd.Arg("command", "Shell command (use -- before the command).").Required().StringsVar(&c.command)
	c.Cmd.Flag("cwd", "Requested working directory, informative only, commands always run in the jail root.").StringVar(&c.cwd)
	c.Cmd.Flag("yes", "Approve without asking.").Short('y').BoolVar(&c.yes)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("timeout", "Maximum command duration.").Default(runner.DefaultTimeout.String()).DurationVar(&c.timeout)
	c.Cmd.Flag("max-output", "Maximum captured bytes per output stream (-1 for no limit).").Default(fmt.Sprintf("%d", runner.DefaultMaxOutputBytes)).IntVar(&c.maxOutput)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
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
	_, settings, err := c.rootCmd.loadRoot(ctx, j, nil)
	if err != nil {
		return err
	}

	q, err := queue.NewQueue(queue.QueueConfig{Jail: j, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create queue: %w", err)
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

	var notifier approval.Notifier = approval.NoopNotifier
	if c.format == formatTable {
		notifier = pendingPrinter{printer: printer.NewTablePrinter(c.rootCmd.Stderr, c.rootCmd.Stderr)}
	}

	svc, err := approval.NewService(approval.ServiceConfig{
		Queue:    q,
		Runner:   r,
		Jail:     j,
		Notifier: notifier,
		History:  hist,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Submit(ctx, approval.SubmitRequest{
		Command: strings.Join(c.command, " "),
		Cwd:     c.cwd,
	})
	if err != nil {
		return err
	}

	approved := c.yes || settings.AutoExec
	if !approved {
		approved, err = confirm(ctx, c.rootCmd.Stdin, c.rootCmd.Stderr)
		if err != nil {
			// Leave a trace of the request in the history.
			svc.Decide(context.WithoutCancel(ctx), approval.DecideRequest{ID: resp.Pending.ID, Approved: false})
			return err
		}
	}

	res := svc.Decide(ctx, approval.DecideRequest{ID: resp.Pending.ID, Approved: approved})
	if err := c.rootCmd.newPrinter(c.format).PrintResult(resp.Pending.ID, res); err != nil {
		return err
	}

	switch res := res.(type) {
	case model.RejectedResult:
		return ExitCodeError{Code: 1}
	case model.ErrorResult:
		if res.ExitCode != nil {
			return ExitCodeError{Code: *res.ExitCode}
		}
		return errors.New(res.Message)
	}

	return nil
}

type pendingPrinter struct {
	printer printer.Printer
}

func (p pendingPrinter) NotifyPending(_ context.Context, pc model.PendingCommand) error {
	return p.printer.PrintPending(pc)
}

func (p pendingPrinter) NotifyResult(context.Context, string, model.ExecutionResult) error {
	return nil
}

// confirm asks the user to approve the command.
func confirm(ctx context.Context, in io.Reader, out io.Writer) (bool, error) {
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal, use --yes to approve without asking")
	}

	fmt.Fprint(out, "Run this command? [y/N]: ")

	type answer struct {
		line string
		err  error
	}
	answerCh := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		answerCh <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return false, ctx.Err()
	case a := <-answerCh:
		if a.err != nil {
			if errors.Is(a.err, io.EOF) {
				fmt.Fprintln(out)
				return false, nil
			}
			return false, fmt.Errorf("could not read answer: %w", a.err)
		}
		return parseAnswer(a.line), nil
	}
}

func parseAnswer(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
