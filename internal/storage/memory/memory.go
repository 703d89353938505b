package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.HistoryRepository and
// storage.SettingsRepository.
type Repository struct {
	executions map[string]model.ExecutionRecord
	settings   *model.Settings
	mu         sync.RWMutex
	logger     log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		executions: make(map[string]model.ExecutionRecord),
		logger:     cfg.Logger,
	}, nil
}

// CreateExecution stores an execution record.
func (r *Repository) CreateExecution(ctx context.Context, e model.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return fmt.Errorf("execution id is required: %w", model.ErrNotValid)
	}
	if _, ok := r.executions[e.ID]; ok {
		return fmt.Errorf("execution with id %s: %w", e.ID, model.ErrAlreadyExists)
	}

	r.executions[e.ID] = e
	r.logger.Debugf("Created execution in repository: %s", e.ID)

	return nil
}

// ListExecutions returns the execution records, newest first.
func (r *Repository) ListExecutions(ctx context.Context, limit int) ([]model.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]model.ExecutionRecord, 0, len(r.executions))
	for _, e := range r.executions {
		records = append(records, e)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DecidedAt.Equal(records[j].DecidedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].DecidedAt.After(records[j].DecidedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// GetSettings returns the stored settings.
func (r *Repository) GetSettings(ctx context.Context) (*model.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.settings == nil {
		return nil, fmt.Errorf("settings: %w", model.ErrNotFound)
	}

	// Return a copy
	settingsCopy := *r.settings
	return &settingsCopy, nil
}

// SaveSettings stores the settings.
func (r *Repository) SaveSettings(ctx context.Context, s model.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings = &s
	r.logger.Debugf("Saved settings in repository")

	return nil
}
