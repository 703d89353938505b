package runner

import (
	"context"
	"os"
	"os/exec"
)

// Shell is the command interpreter strategy used to run command scripts.
type Shell interface {
	// Name returns the interpreter name, used for logging.
	Name() string
	// Command returns the command that runs script as the interpreter script body.
	// The command must be killed when ctx is done.
	Command(ctx context.Context, script string) *exec.Cmd
	// ExitCode returns the exit code of a finished process.
	ExitCode(state *os.ProcessState) int
}
