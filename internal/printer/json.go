package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/kage/internal/model"
)

// JSONPrinter prints command information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type historyItem struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"request_id"`
	Command     string     `json:"command"`
	Cwd         string     `json:"cwd"`
	Status      string     `json:"status"`
	ExitCode    *int       `json:"exit_code"`
	Error       string     `json:"error,omitempty"`
	StdoutBytes int        `json:"stdout_bytes"`
	StderrBytes int        `json:"stderr_bytes"`
	Truncated   bool       `json:"truncated"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   time.Time  `json:"decided_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

type pendingOutput struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	CreatedAt time.Time `json:"created_at"`
}

type resultOutput struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Error      string `json:"error,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

type rootOutput struct {
	Root string `json:"root"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintHistory prints execution records in JSON format.
func (j *JSONPrinter) PrintHistory(records []model.ExecutionRecord) error {
	items := make([]historyItem, len(records))
	for i, r := range records {
		items[i] = historyItem{
			ID:          r.ID,
			RequestID:   r.RequestID,
			Command:     r.Command,
			Cwd:         r.Cwd,
			Status:      string(r.Status),
			ExitCode:    r.ExitCode,
			Error:       r.Error,
			StdoutBytes: r.StdoutBytes,
			StderrBytes: r.StderrBytes,
			Truncated:   r.Truncated,
			RequestedAt: r.RequestedAt.UTC(),
			DecidedAt:   r.DecidedAt.UTC(),
		}
		if r.FinishedAt != nil {
			utcTime := r.FinishedAt.UTC()
			items[i].FinishedAt = &utcTime
		}
	}

	return j.encode(items)
}

// PrintPending prints a pending command in JSON format.
func (j *JSONPrinter) PrintPending(p model.PendingCommand) error {
	return j.encode(pendingOutput{
		ID:        p.ID,
		Command:   p.Command,
		Cwd:       p.Cwd,
		CreatedAt: p.CreatedAt.UTC(),
	})
}

// PrintResult prints an execution result in JSON format.
func (j *JSONPrinter) PrintResult(id string, res model.ExecutionResult) error {
	out := resultOutput{ID: id, Status: string(res.Status())}
	switch r := res.(type) {
	case model.DoneResult:
		code := r.ExitCode
		out.ExitCode = &code
		out.Stdout = r.Stdout
		out.Stderr = r.Stderr
		out.Truncated = r.Truncated
		out.DurationMS = r.Duration.Milliseconds()
	case model.ErrorResult:
		out.ExitCode = r.ExitCode
		out.Stdout = r.Stdout
		out.Stderr = r.Stderr
		out.Error = r.Message
		out.Truncated = r.Truncated
	}

	return j.encode(out)
}

// PrintRoot prints the jail root in JSON format.
func (j *JSONPrinter) PrintRoot(root string) error {
	return j.encode(rootOutput{Root: root})
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
