package lib

import (
	"context"
	"errors"
	"time"

	"github.com/slok/kage/internal/model"
)

// Sentinel errors returned by the SDK. Use [errors.Is] to check them.
var (
	// ErrNotFound is returned when a file is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a request ID is already pending.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrJailEscape is returned when a path resolves outside of the jail root.
	ErrJailEscape = errors.New("path escapes jail")
)

// ResultStatus is the final status of a request.
type ResultStatus string

const (
	// ResultStatusDone means the command ran and exited with 0.
	ResultStatusDone ResultStatus = "done"
	// ResultStatusRejected means the command was not approved.
	ResultStatusRejected ResultStatus = "rejected"
	// ResultStatusError means the command failed or could not run.
	ResultStatusError ResultStatus = "error"
)

// PendingCommand is a command waiting for a decision.
type PendingCommand struct {
	// ID identifies the request.
	ID string
	// Command is the shell script that will run.
	Command string
	// Cwd is the directory the command will run in, the jail root when it was queued.
	Cwd string
	// CreatedAt is when the command was queued.
	CreatedAt time.Time
}

// SubmitOpts configures a submit.
type SubmitOpts struct {
	// ID identifies the request, a ULID is generated when empty.
	ID string
	// Cwd is the working directory requested by the caller. It's informative
	// only, commands always run in the jail root.
	Cwd string
}

// Result is the outcome of a decision.
type Result struct {
	Status ResultStatus
	// ExitCode is set when the command ran. Nil for rejected requests and
	// commands that could not run.
	ExitCode *int
	Stdout   string
	Stderr   string
	// Error describes why the request ended in [ResultStatusError].
	Error string
	// Duration is the command run time, only for [ResultStatusDone].
	Duration time.Duration
	// Truncated is true when any output stream hit the size limit.
	Truncated bool
}

// FileContent is the content of a read file.
type FileContent struct {
	Content []byte
	// Size is the full file size.
	Size int64
	// Truncated is true when the file is bigger than the read limit.
	Truncated bool
}

// FileEntry is a directory entry.
type FileEntry struct {
	Name    string
	Dir     bool
	Size    int64
	ModTime time.Time
}

// HistoryOpts configures the history listing.
type HistoryOpts struct {
	// Limit is the maximum number of records, 0 means all.
	Limit int
	// Status only returns the records with this status.
	Status *ResultStatus
}

// HistoryRecord is the audit record of a decided request.
type HistoryRecord struct {
	ID          string
	RequestID   string
	Command     string
	Cwd         string
	Status      ResultStatus
	ExitCode    *int
	Error       string
	StdoutBytes int
	StderrBytes int
	Truncated   bool
	RequestedAt time.Time
	DecidedAt   time.Time
	FinishedAt  *time.Time
}

// Notifier receives the client events. The methods are called synchronously
// and must not block for long. Returned errors are only logged.
type Notifier interface {
	// CommandPending is called when a command is queued.
	CommandPending(ctx context.Context, p PendingCommand) error
	// CommandFinished is called with the result of auto approved commands.
	CommandFinished(ctx context.Context, id string, res Result) error
}

type notifierAdapter struct {
	n Notifier
}

func (a notifierAdapter) NotifyPending(ctx context.Context, p model.PendingCommand) error {
	return a.n.CommandPending(ctx, fromInternalPending(p))
}

func (a notifierAdapter) NotifyResult(ctx context.Context, id string, res model.ExecutionResult) error {
	return a.n.CommandFinished(ctx, id, fromInternalResult(res))
}

func fromInternalPending(p model.PendingCommand) PendingCommand {
	return PendingCommand{
		ID:        p.ID,
		Command:   p.Command,
		Cwd:       p.Cwd,
		CreatedAt: p.CreatedAt,
	}
}

func fromInternalPendingList(ps []model.PendingCommand) []PendingCommand {
	res := make([]PendingCommand, 0, len(ps))
	for _, p := range ps {
		res = append(res, fromInternalPending(p))
	}
	return res
}

func fromInternalResult(res model.ExecutionResult) Result {
	switch r := res.(type) {
	case model.DoneResult:
		code := r.ExitCode
		return Result{
			Status:    ResultStatusDone,
			ExitCode:  &code,
			Stdout:    r.Stdout,
			Stderr:    r.Stderr,
			Duration:  r.Duration,
			Truncated: r.Truncated,
		}
	case model.RejectedResult:
		return Result{Status: ResultStatusRejected}
	case model.ErrorResult:
		return Result{
			Status:    ResultStatusError,
			ExitCode:  r.ExitCode,
			Stdout:    r.Stdout,
			Stderr:    r.Stderr,
			Error:     r.Message,
			Truncated: r.Truncated,
		}
	default:
		return Result{Status: ResultStatusError, Error: "unknown result"}
	}
}

func fromInternalRecord(r model.ExecutionRecord) HistoryRecord {
	return HistoryRecord{
		ID:          r.ID,
		RequestID:   r.RequestID,
		Command:     r.Command,
		Cwd:         r.Cwd,
		Status:      ResultStatus(r.Status),
		ExitCode:    r.ExitCode,
		Error:       r.Error,
		StdoutBytes: r.StdoutBytes,
		StderrBytes: r.StderrBytes,
		Truncated:   r.Truncated,
		RequestedAt: r.RequestedAt,
		DecidedAt:   r.DecidedAt,
		FinishedAt:  r.FinishedAt,
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isInternalError(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case isInternalError(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case isInternalError(err, model.ErrJailEscape):
		return joinErrors(err, ErrJailEscape)
	case isInternalError(err, model.ErrNotValid), isInternalError(err, model.ErrRootNotSet):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func isInternalError(err, target error) bool {
	for {
		if err == target {
			return true
		}
		unwrapped := unwrapSingle(err)
		if unwrapped == nil {
			return false
		}
		err = unwrapped
	}
}

func unwrapSingle(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
