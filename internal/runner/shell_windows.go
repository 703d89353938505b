//go:build windows

package runner

import (
	"context"
	"os"
	"os/exec"
	"syscall"
)

// DefaultShell returns the platform interpreter: Windows PowerShell.
func DefaultShell() Shell {
	return PowerShell{Path: "powershell.exe"}
}

// PowerShell runs scripts with `powershell.exe -Command`.
type PowerShell struct {
	Path string
}

func (s PowerShell) Name() string { return s.Path }

func (s PowerShell) Command(ctx context.Context, script string) *exec.Cmd {
	//nolint:gosec // Running arbitrary approved shell scripts is the purpose.
	cmd := exec.CommandContext(ctx, s.Path, "-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return cmd
}

func (s PowerShell) ExitCode(state *os.ProcessState) int { return state.ExitCode() }
