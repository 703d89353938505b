package model

import "time"

// ExecutionRecord is the audit entry written when a request reaches a terminal state.
type ExecutionRecord struct {
	ID          string
	RequestID   string
	Command     string
	Cwd         string
	Status      ExecutionStatus
	ExitCode    *int
	Error       string
	StdoutBytes int
	StderrBytes int
	Truncated   bool
	RequestedAt time.Time
	DecidedAt   time.Time
	FinishedAt  *time.Time
}
