package storage

import (
	"context"

	"github.com/slok/kage/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name SettingsRepository --structname MockSettingsRepository
//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name HistoryRepository --structname MockHistoryRepository

// SettingsRepository is the interface for the persisted application settings.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

// HistoryRepository is the interface for the execution audit trail.
type HistoryRepository interface {
	CreateExecution(ctx context.Context, r model.ExecutionRecord) error
	// ListExecutions returns the newest records first. limit <= 0 means all.
	ListExecutions(ctx context.Context, limit int) ([]model.ExecutionRecord, error)
}
