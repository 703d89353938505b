package history

import (
	"context"
	"fmt"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.HistoryRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})

	return nil
}

// Service lists the executed, rejected and failed commands.
type Service struct {
	repo   storage.HistoryRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// Limit is the maximum number of records returned, 0 means all.
	Limit int
	// StatusFilter is an optional filter to only show records with this status.
	StatusFilter *model.ExecutionStatus
}

// Run lists the history, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.ExecutionRecord, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	// With a filter the limit is applied after filtering.
	limit := req.Limit
	if req.StatusFilter != nil {
		limit = 0
	}

	records, err := s.repo.ListExecutions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list executions: %w", err)
	}

	if req.StatusFilter != nil {
		filtered := make([]model.ExecutionRecord, 0, len(records))
		for _, r := range records {
			if r.Status != *req.StatusFilter {
				continue
			}
			filtered = append(filtered, r)
			if req.Limit > 0 && len(filtered) == req.Limit {
				break
			}
		}
		records = filtered
	}

	s.logger.Debugf("found %d execution records", len(records))
	return records, nil
}
