package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/kage/internal/model"
)

const maxCommandWidth = 40

// TablePrinter prints command information for humans.
type TablePrinter struct {
	writer    io.Writer
	errWriter io.Writer
}

// NewTablePrinter creates a new table printer. Command stderr is written to errW.
func NewTablePrinter(w, errW io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, errWriter: errW}
}

// PrintHistory prints execution records in a table format.
func (t *TablePrinter) PrintHistory(records []model.ExecutionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "REQUEST\tSTATUS\tEXIT\tOUTPUT\tDECIDED\tCOMMAND")

	for _, r := range records {
		exit := "-"
		if r.ExitCode != nil {
			exit = fmt.Sprintf("%d", *r.ExitCode)
		}
		output := FormatBytes(int64(r.StdoutBytes + r.StderrBytes))
		if r.Truncated {
			output += " (truncated)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RequestID,
			r.Status,
			exit,
			output,
			TimeAgo(r.DecidedAt),
			Shorten(r.Command, maxCommandWidth),
		)
	}

	return nil
}

// PrintPending prints a command waiting for approval.
func (t *TablePrinter) PrintPending(p model.PendingCommand) error {
	fmt.Fprintf(t.writer, "Request:  %s\n", p.ID)
	fmt.Fprintf(t.writer, "Cwd:      %s\n", p.Cwd)
	fmt.Fprintf(t.writer, "Command:\n")
	for _, l := range strings.Split(strings.TrimRight(p.Command, "\n"), "\n") {
		fmt.Fprintf(t.writer, "  %s\n", l)
	}
	return nil
}

// PrintResult prints the command output as is, followed by a summary.
func (t *TablePrinter) PrintResult(id string, res model.ExecutionResult) error {
	switch r := res.(type) {
	case model.DoneResult:
		t.printOutput(r.Stdout, r.Stderr)
		msg := fmt.Sprintf("Command %s done in %s", id, FormatDuration(r.Duration))
		if r.Truncated {
			msg += " (output truncated)"
		}
		fmt.Fprintln(t.errWriter, msg)
	case model.RejectedResult:
		fmt.Fprintf(t.errWriter, "Command %s rejected\n", id)
	case model.ErrorResult:
		t.printOutput(r.Stdout, r.Stderr)
		msg := fmt.Sprintf("Command %s failed: %s", id, r.Message)
		if r.Truncated {
			msg += " (output truncated)"
		}
		fmt.Fprintln(t.errWriter, msg)
	default:
		return fmt.Errorf("unknown result %T", res)
	}

	return nil
}

func (t *TablePrinter) printOutput(stdout, stderr string) {
	if stdout != "" {
		fmt.Fprint(t.writer, stdout)
	}
	if stderr != "" {
		fmt.Fprint(t.errWriter, stderr)
	}
}

// PrintRoot prints the jail root.
func (t *TablePrinter) PrintRoot(root string) error {
	if root == "" {
		root = "<not set>"
	}
	fmt.Fprintln(t.writer, root)
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
