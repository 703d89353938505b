// Package queue keeps the commands that are waiting for an approval decision.
package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

// RootGetter returns the current jail root.
type RootGetter interface {
	Root() string
}

// QueueConfig is the configuration for the execution queue.
type QueueConfig struct {
	Jail   RootGetter
	Logger log.Logger
	// IDGen generates request IDs when the caller doesn't provide one. Defaults to ULIDs.
	IDGen func() string
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (c *QueueConfig) defaults() error {
	if c.Jail == nil {
		return fmt.Errorf("jail is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "queue.Execution"})
	if c.IDGen == nil {
		c.IDGen = func() string { return ulid.Make().String() }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Queue holds pending commands keyed by request ID.
type Queue struct {
	jail    RootGetter
	logger  log.Logger
	idGen   func() string
	now     func() time.Time
	mu      sync.Mutex
	pending map[string]model.PendingCommand
}

// NewQueue returns a new execution queue.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Queue{
		jail:    cfg.Jail,
		logger:  cfg.Logger,
		idGen:   cfg.IDGen,
		now:     cfg.Now,
		pending: map[string]model.PendingCommand{},
	}, nil
}

// Enqueue stores a new pending command and returns it.
//
// The caller cwd is only informative, the stored cwd is always the jail root at
// the moment of the call. If id is empty a new one is generated, a caller
// supplied id that is already pending is rejected with model.ErrAlreadyExists.
func (q *Queue) Enqueue(ctx context.Context, id, command, callerCwd string) (model.PendingCommand, error) {
	if strings.TrimSpace(command) == "" {
		return model.PendingCommand{}, fmt.Errorf("command is required: %w", model.ErrNotValid)
	}

	root := q.jail.Root()
	if root == "" {
		return model.PendingCommand{}, model.ErrRootNotSet
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if id == "" {
		id = q.idGen()
	}
	if _, ok := q.pending[id]; ok {
		return model.PendingCommand{}, fmt.Errorf("request %s: %w", id, model.ErrAlreadyExists)
	}

	p := model.PendingCommand{
		ID:        id,
		Command:   command,
		Cwd:       root,
		CreatedAt: q.now().UTC(),
	}
	q.pending[id] = p

	if callerCwd != "" && callerCwd != root {
		q.logger.Debugf("Request %s asked for cwd %q, using jail root %q", id, callerCwd, root)
	}
	q.logger.Debugf("Queued request %s", id)

	return p, nil
}

// Resolve removes the pending command and returns it. If there is no pending
// command with that id model.ErrUnknownRequest is returned.
func (q *Queue) Resolve(ctx context.Context, id string) (model.PendingCommand, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.pending[id]
	if !ok {
		return model.PendingCommand{}, fmt.Errorf("request %q: %w: %w", id, model.ErrUnknownRequest, model.ErrNotFound)
	}
	delete(q.pending, id)

	q.logger.Debugf("Resolved request %s", id)

	return p, nil
}

// List returns the pending commands, oldest first.
func (q *Queue) List(ctx context.Context) []model.PendingCommand {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]model.PendingCommand, 0, len(q.pending))
	for _, p := range q.pending {
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	return pending
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
