// Package approval implements the request, approve and run workflow for shell commands.
//
// A submitted command is queued and pushed to the user interface, then waits
// with no deadline until a decision arrives. Rejected commands never spawn a
// process, approved ones run in the jail root with the runner's hard timeout.
package approval

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage"
)

// UnknownRequestMessage is the error message returned when deciding a request that isn't pending.
const UnknownRequestMessage = "Unknown request id"

//go:generate mockery --case underscore --output approvalmock --outpkg approvalmock --name Runner --structname MockRunner
//go:generate mockery --case underscore --output approvalmock --outpkg approvalmock --name Notifier --structname MockNotifier

// Queue keeps the pending commands.
type Queue interface {
	Enqueue(ctx context.Context, id, command, callerCwd string) (model.PendingCommand, error)
	Resolve(ctx context.Context, id string) (model.PendingCommand, error)
	List(ctx context.Context) []model.PendingCommand
}

// Runner runs an approved command.
type Runner interface {
	Run(ctx context.Context, command, cwd string) (model.RunOutput, error)
}

// Jail checks paths against the jail root.
type Jail interface {
	IsInside(path string) bool
}

// Notifier pushes request events to the user interface.
type Notifier interface {
	NotifyPending(ctx context.Context, p model.PendingCommand) error
	NotifyResult(ctx context.Context, id string, res model.ExecutionResult) error
}

// ServiceConfig is the configuration for the approval service.
type ServiceConfig struct {
	Queue    Queue
	Runner   Runner
	Jail     Jail
	Notifier Notifier
	// History stores the terminal state of every request (optional).
	History storage.HistoryRepository
	// AutoApprove approves every submitted command right after notifying it.
	AutoApprove bool
	Logger      log.Logger
	Now         func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Queue == nil {
		return fmt.Errorf("queue is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Jail == nil {
		return fmt.Errorf("jail is required")
	}
	if c.Notifier == nil {
		c.Notifier = NoopNotifier
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Approval"})
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Service is the approval gateway.
type Service struct {
	queue       Queue
	runner      Runner
	jail        Jail
	notifier    Notifier
	history     storage.HistoryRepository
	autoApprove atomic.Bool
	logger      log.Logger
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewService creates a new approval service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Service{
		queue:    cfg.Queue,
		runner:   cfg.Runner,
		jail:     cfg.Jail,
		notifier: cfg.Notifier,
		history:  cfg.History,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	s.autoApprove.Store(cfg.AutoApprove)

	return s, nil
}

// SetAutoApprove changes the auto approval of the next submitted commands.
func (s *Service) SetAutoApprove(enabled bool) {
	s.autoApprove.Store(enabled)
	s.logger.Infof("Auto approval set to %t", enabled)
}

// AutoApprove returns if submitted commands are approved automatically.
func (s *Service) AutoApprove() bool {
	return s.autoApprove.Load()
}

// SubmitRequest is a request to run a command.
type SubmitRequest struct {
	// ID is optional, one is generated when empty.
	ID      string
	Command string
	// Cwd is advisory only, commands always run in the jail root.
	Cwd string
}

// SubmitResponse is the response of a submit.
type SubmitResponse struct {
	Queued  bool
	Pending model.PendingCommand
}

// Submit queues the command and notifies the user interface. It doesn't wait for the decision.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	p, err := s.queue.Enqueue(ctx, req.ID, req.Command, req.Cwd)
	if err != nil {
		return nil, fmt.Errorf("could not queue command: %w", err)
	}

	logger := s.logger.WithValues(log.Kv{"request": p.ID})
	logger.Infof("Command queued for approval in %s", p.Cwd)

	// The entry stays pending if the notification fails, clients can list it later.
	if err := s.notifier.NotifyPending(ctx, p); err != nil {
		logger.Warningf("could not notify pending command: %s", err)
	}

	if s.autoApprove.Load() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx := context.WithoutCancel(ctx)
			res := s.Decide(ctx, DecideRequest{ID: p.ID, Approved: true})
			if err := s.notifier.NotifyResult(ctx, p.ID, res); err != nil {
				logger.Warningf("could not notify auto approved result: %s", err)
			}
		}()
	}

	return &SubmitResponse{Queued: true, Pending: p}, nil
}

// DecideRequest is the user decision on a pending command.
type DecideRequest struct {
	ID       string
	Approved bool
}

// Decide applies the decision to a pending command and returns the final result.
// It never fails, every problem is returned as a model.ErrorResult.
func (s *Service) Decide(ctx context.Context, req DecideRequest) model.ExecutionResult {
	p, err := s.queue.Resolve(ctx, req.ID)
	if err != nil {
		s.logger.Warningf("Decision for %q ignored: %s", req.ID, err)
		return model.ErrorResult{Message: UnknownRequestMessage}
	}

	logger := s.logger.WithValues(log.Kv{"request": p.ID})
	decidedAt := s.now().UTC()

	if !req.Approved {
		logger.Infof("Command rejected")
		res := model.RejectedResult{}
		s.record(ctx, p, res, decidedAt, nil)
		return res
	}

	logger.Infof("Command approved, executing")

	// Once approved the process can only be stopped by its timeout.
	res := s.execute(context.WithoutCancel(ctx), p)
	finishedAt := s.now().UTC()
	s.record(ctx, p, res, decidedAt, &finishedAt)

	logger.Infof("Command finished with status %s", res.Status())

	return res
}

// Pending returns the commands waiting for a decision.
func (s *Service) Pending(ctx context.Context) []model.PendingCommand {
	return s.queue.List(ctx)
}

// Wait blocks until the auto approved commands in flight have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) execute(ctx context.Context, p model.PendingCommand) model.ExecutionResult {
	// The root may have been changed after the command was queued.
	if !s.jail.IsInside(p.Cwd) {
		return model.ErrorResult{Message: fmt.Sprintf("%s: %s", p.Cwd, model.ErrJailEscape)}
	}

	out, err := s.runner.Run(ctx, p.Command, p.Cwd)
	if err != nil {
		s.logger.Errorf("could not run command %s: %s", p.ID, err)
		return model.ErrorResult{Message: err.Error()}
	}

	if out.ExitCode != 0 {
		return model.NewExitErrorResult(out)
	}

	return model.DoneResult{
		ExitCode:  0,
		Stdout:    out.Stdout,
		Stderr:    out.Stderr,
		Duration:  out.Duration,
		Truncated: out.Truncated,
	}
}

func (s *Service) record(ctx context.Context, p model.PendingCommand, res model.ExecutionResult, decidedAt time.Time, finishedAt *time.Time) {
	if s.history == nil {
		return
	}

	rec := model.ExecutionRecord{
		ID:          ulid.Make().String(),
		RequestID:   p.ID,
		Command:     p.Command,
		Cwd:         p.Cwd,
		Status:      res.Status(),
		RequestedAt: p.CreatedAt,
		DecidedAt:   decidedAt,
		FinishedAt:  finishedAt,
	}

	switch r := res.(type) {
	case model.DoneResult:
		code := r.ExitCode
		rec.ExitCode = &code
		rec.StdoutBytes = len(r.Stdout)
		rec.StderrBytes = len(r.Stderr)
		rec.Truncated = r.Truncated
	case model.ErrorResult:
		rec.ExitCode = r.ExitCode
		rec.Error = r.Message
		rec.StdoutBytes = len(r.Stdout)
		rec.StderrBytes = len(r.Stderr)
		rec.Truncated = r.Truncated
	}

	err := s.history.CreateExecution(context.WithoutCancel(ctx), rec)
	if err != nil {
		s.logger.Errorf("could not store execution history for %s: %s", p.ID, err)
	}
}

// NoopNotifier discards the notifications.
var NoopNotifier Notifier = noopNotifier{}

type noopNotifier struct{}

func (noopNotifier) NotifyPending(context.Context, model.PendingCommand) error {
	return nil
}

func (noopNotifier) NotifyResult(context.Context, string, model.ExecutionResult) error {
	return nil
}

// IsUnknownRequest returns true if the result is the one returned for an unknown request id.
func IsUnknownRequest(res model.ExecutionResult) bool {
	r, ok := res.(model.ErrorResult)
	return ok && r.Message == UnknownRequestMessage && r.ExitCode == nil
}
