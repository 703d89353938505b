package lib

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/kage/internal/app/approval"
	"github.com/slok/kage/internal/app/fileops"
	"github.com/slok/kage/internal/app/history"
	"github.com/slok/kage/internal/app/root"
	"github.com/slok/kage/internal/jail"
	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/queue"
	"github.com/slok/kage/internal/runner"
	"github.com/slok/kage/internal/storage"
	"github.com/slok/kage/internal/storage/memory"
	"github.com/slok/kage/internal/storage/sqlite"
)

// Config configures the SDK client.
type Config struct {
	// RootDir is the jail root (required). It's created if missing.
	RootDir string

	// DBPath is the SQLite history database path.
	// Default: in memory history.
	DBPath string

	// AutoApprove runs every submitted command without waiting for a decision.
	AutoApprove bool

	// Timeout is the maximum command duration, the process is killed after it.
	// Default: 10 minutes.
	Timeout time.Duration

	// MaxOutputBytes limits the captured bytes of each output stream.
	// Default: 10MiB. Negative means no limit.
	MaxOutputBytes int

	// Env are extra KEY=VALUE variables for the commands.
	Env []string

	// Notifier receives the queued commands and the results.
	// Default: no notifications.
	Notifier Notifier

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.RootDir == "" {
		return fmt.Errorf("root dir is required: %w", ErrNotValid)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	jail     *jail.Jail
	queue    *queue.Queue
	approval *approval.Service
	root     *root.Service
	files    *fileops.Service
	history  *history.Service
	closeFn  func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done:
//
//	client, err := lib.New(ctx, lib.Config{RootDir: dir})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	j, err := jail.New(cfg.RootDir)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create jail: %w", err))
	}

	repo, closeFn, err := newHistoryRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := newClient(cfg, j, repo)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	c.closeFn = closeFn

	return c, nil
}

func newHistoryRepository(ctx context.Context, cfg Config) (storage.HistoryRepository, func() error, error) {
	if cfg.DBPath == "" {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, func() error { return nil }, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}

	return repo, repo.Close, nil
}

func newClient(cfg Config, j *jail.Jail, repo storage.HistoryRepository) (*Client, error) {
	q, err := queue.NewQueue(queue.QueueConfig{Jail: j, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create queue: %w", err)
	}

	r, err := runner.NewRunner(runner.RunnerConfig{
		Timeout:        cfg.Timeout,
		MaxOutputBytes: cfg.MaxOutputBytes,
		Env:            cfg.Env,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create runner: %w", err)
	}

	var notifier approval.Notifier
	if cfg.Notifier != nil {
		notifier = notifierAdapter{n: cfg.Notifier}
	}

	approvalSvc, err := approval.NewService(approval.ServiceConfig{
		Queue:       q,
		Runner:      r,
		Jail:        j,
		Notifier:    notifier,
		History:     repo,
		AutoApprove: cfg.AutoApprove,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create approval service: %w", err)
	}

	rootSvc, err := root.NewService(root.ServiceConfig{Jail: j, Pending: q, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create root service: %w", err)
	}

	filesSvc, err := fileops.NewService(fileops.ServiceConfig{Jail: j, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create file service: %w", err)
	}

	historySvc, err := history.NewService(history.ServiceConfig{Repository: repo, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create history service: %w", err)
	}

	return &Client{
		jail:     j,
		queue:    q,
		approval: approvalSvc,
		root:     rootSvc,
		files:    filesSvc,
		history:  historySvc,
	}, nil
}

// Close waits for the auto approved commands that are still running and
// releases the history database. After Close returns, the client must not be used.
func (c *Client) Close() error {
	c.approval.Wait()
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// SetRoot changes the jail root, creating the directory if missing, and returns
// the resolved root. Commands already queued keep the root they were queued
// with, and fail with [ErrJailEscape] if it's outside the new root when approved.
func (c *Client) SetRoot(ctx context.Context, path string) (string, error) {
	r, err := c.root.Set(ctx, path)
	if err != nil {
		return "", mapError(err)
	}
	return r, nil
}

// Root returns the current jail root.
func (c *Client) Root(ctx context.Context) string {
	return c.root.Get(ctx)
}
