//go:build !windows

package runner

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// DefaultShell returns the platform interpreter: a POSIX login shell.
func DefaultShell() Shell {
	return PosixShell{Path: "/bin/sh", Login: true}
}

// PosixShell runs scripts with `sh -c`.
type PosixShell struct {
	Path string
	// Login runs the shell as a login shell (`-l`), so the user profile is loaded.
	Login bool
}

func (s PosixShell) Name() string { return s.Path }

func (s PosixShell) Command(ctx context.Context, script string) *exec.Cmd {
	flag := "-c"
	if s.Login {
		flag = "-lc"
	}

	//nolint:gosec // Running arbitrary approved shell scripts is the purpose.
	cmd := exec.CommandContext(ctx, s.Path, flag, script)

	// The script runs in its own process group so everything it spawns (pipes,
	// background jobs) is killed together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	return cmd
}

// ExitCode follows the shell convention for killed processes: 128 + signal.
func (s PosixShell) ExitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
