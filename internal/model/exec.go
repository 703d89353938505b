package model

import (
	"fmt"
	"time"
)

// PendingCommand is a submitted command waiting for an approval decision.
type PendingCommand struct {
	// ID identifies the request while it's pending.
	ID string
	// Command is the literal shell script that will be executed.
	Command string
	// Cwd is the directory the command will run in. It's always the jail root
	// at the moment the command was queued, never the caller's value.
	Cwd       string
	CreatedAt time.Time
}

// RunOutput is the outcome of running a process, without any policy applied.
// A non-zero exit code is still a successful run at this level.
type RunOutput struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	TimedOut  bool
	Truncated bool
}

// ExecutionStatus is the status of a finished request.
type ExecutionStatus string

const (
	ExecutionStatusDone     ExecutionStatus = "done"
	ExecutionStatusRejected ExecutionStatus = "rejected"
	ExecutionStatusError    ExecutionStatus = "error"
)

// ExecutionResult is the final result of a request. The only implementations are
// DoneResult, RejectedResult and ErrorResult, use a type switch to access
// the fields of each one.
type ExecutionResult interface {
	Status() ExecutionStatus
	executionResult()
}

// DoneResult is returned when the approved command ran and exited with 0.
type DoneResult struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	Truncated bool
}

func (DoneResult) Status() ExecutionStatus { return ExecutionStatusDone }
func (DoneResult) executionResult()        {}

// RejectedResult is returned when the command was not approved.
type RejectedResult struct{}

func (RejectedResult) Status() ExecutionStatus { return ExecutionStatusRejected }
func (RejectedResult) executionResult()        {}

// ErrorResult is returned when the request could not be run, or it ran and
// exited with a non-zero code. In the latter case ExitCode is set.
type ErrorResult struct {
	Message  string
	ExitCode *int
	Stdout   string
	Stderr   string
	// Truncated is true when any output stream hit the size limit.
	Truncated bool
}

func (ErrorResult) Status() ExecutionStatus { return ExecutionStatusError }
func (ErrorResult) executionResult()        {}

// NewExitErrorResult returns the error result of a command that exited with a non-zero code.
func NewExitErrorResult(out RunOutput) ErrorResult {
	code := out.ExitCode
	return ErrorResult{
		Message:   fmt.Sprintf("Exit %d", code),
		ExitCode:  &code,
		Stdout:    out.Stdout,
		Stderr:    out.Stderr,
		Truncated: out.Truncated,
	}
}
