// Package runner executes approved command scripts with a hard timeout.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

const (
	// DefaultTimeout is the wall-clock limit for a command, measured from spawn.
	DefaultTimeout = 10 * time.Minute
	// DefaultMaxOutputBytes is the per stream capture limit (10MiB).
	DefaultMaxOutputBytes = 10 * 1024 * 1024

	// waitDelay bounds how long we wait for the output pipes to close once the
	// process has exited or been killed.
	waitDelay = 5 * time.Second
)

// RunnerConfig is the configuration for the command runner.
type RunnerConfig struct {
	Shell   Shell
	Timeout time.Duration
	// MaxOutputBytes limits the captured bytes of stdout and of stderr. Negative means no limit.
	MaxOutputBytes int
	// Env are extra KEY=VALUE variables added on top of the current process environment.
	Env    []string
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Shell == nil {
		c.Shell = DefaultShell()
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Command"})
	return nil
}

// Runner runs command scripts with the configured shell.
type Runner struct {
	shell     Shell
	timeout   time.Duration
	maxOutput int
	env       []string
	logger    log.Logger
}

// NewRunner returns a new command runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		shell:     cfg.Shell,
		timeout:   cfg.Timeout,
		maxOutput: cfg.MaxOutputBytes,
		env:       cfg.Env,
		logger:    cfg.Logger,
	}, nil
}

// Run executes command in cwd and waits until it exits or the timeout kills it.
//
// cwd is not validated here, callers must have resolved it with the jail.
// A non-zero exit code is not an error, the only errors are the ones preventing
// the interpreter from starting (wrapping model.ErrSpawn).
func (r *Runner) Run(ctx context.Context, command, cwd string) (model.RunOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stdout := newBoundedBuffer(r.maxOutput)
	stderr := newBoundedBuffer(r.maxOutput)

	cmd := r.shell.Command(ctx, command)
	cmd.Dir = cwd
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	r.logger.Debugf("Running command with %s in %s (timeout %s)", r.shell.Name(), cwd, r.timeout)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return model.RunOutput{}, fmt.Errorf("%w: %w", model.ErrSpawn, err)
	}

	waitErr := cmd.Wait()
	duration := time.Since(start)

	if cmd.ProcessState == nil {
		return model.RunOutput{}, fmt.Errorf("could not wait for command: %w", waitErr)
	}

	out := model.RunOutput{
		ExitCode:  r.shell.ExitCode(cmd.ProcessState),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  duration,
		TimedOut:  errors.Is(ctx.Err(), context.DeadlineExceeded),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	if out.TimedOut {
		r.logger.Warningf("Command killed after reaching the %s timeout", r.timeout)
	}
	r.logger.Debugf("Command finished with exit code %d in %s", out.ExitCode, duration)

	return out, nil
}
