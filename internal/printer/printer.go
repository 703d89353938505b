package printer

import "github.com/slok/kage/internal/model"

// Printer knows how to print command information in different formats.
type Printer interface {
	PrintHistory(records []model.ExecutionRecord) error
	PrintPending(p model.PendingCommand) error
	PrintResult(id string, res model.ExecutionResult) error
	PrintRoot(root string) error
	PrintMessage(msg string) error
}
