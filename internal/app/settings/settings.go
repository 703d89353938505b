// Package settings reads and updates the application settings, applying the
// changes to the running services.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/slok/kage/internal/llm"
	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage"
)

// RootService sets the jail root and persists it.
type RootService interface {
	Set(ctx context.Context, path string) (string, error)
	Get(ctx context.Context) string
}

// AutoApprover toggles the automatic approval of commands.
type AutoApprover interface {
	SetAutoApprove(enabled bool)
}

// ModelSetter changes the model used for completions.
type ModelSetter interface {
	SetModel(model string)
}

// ServiceConfig is the configuration for the settings service.
type ServiceConfig struct {
	Settings storage.SettingsRepository
	Root     RootService
	// AutoApprover gets the auto exec changes (optional).
	AutoApprover AutoApprover
	// ModelSetter gets the model changes (optional).
	ModelSetter ModelSetter
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Settings == nil {
		return fmt.Errorf("settings repository is required")
	}
	if c.Root == nil {
		return fmt.Errorf("root service is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Settings"})

	return nil
}

// Service gets and patches the settings.
type Service struct {
	repo         storage.SettingsRepository
	root         RootService
	autoApprover AutoApprover
	modelSetter  ModelSetter
	logger       log.Logger
	mu           sync.Mutex
}

// NewService creates a new settings service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:         cfg.Settings,
		root:         cfg.Root,
		autoApprover: cfg.AutoApprover,
		modelSetter:  cfg.ModelSetter,
		logger:       cfg.Logger,
	}, nil
}

// Get returns the settings, the root is always the one the jail is using.
func (s *Service) Get(ctx context.Context) (*model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current(ctx)
}

// Patch is a partial settings update, nil fields are left unchanged.
type Patch struct {
	RootDir  *string
	AutoExec *bool
	Provider *string
	Model    *string
}

// Update applies the patch, persists the result and applies it to the running services.
// Nothing is changed if the patch is not valid.
func (s *Service) Update(ctx context.Context, p Patch) (*model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	next := *cur
	if p.AutoExec != nil {
		next.AutoExec = *p.AutoExec
	}
	if p.Provider != nil {
		next.Provider = strings.ToLower(strings.TrimSpace(*p.Provider))
	}
	if p.Model != nil {
		next.Model = strings.TrimSpace(*p.Model)
	}
	next.Defaults("")

	if !llm.Supported(next.Provider) {
		return nil, fmt.Errorf("provider %q is not supported: %w", next.Provider, model.ErrNotValid)
	}
	if p.RootDir != nil {
		if strings.TrimSpace(*p.RootDir) == "" {
			return nil, fmt.Errorf("root dir can't be empty: %w", model.ErrNotValid)
		}
		next.RootDir = *p.RootDir
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if p.RootDir != nil {
		root, err := s.root.Set(ctx, *p.RootDir)
		if err != nil {
			return nil, fmt.Errorf("could not set root: %w", err)
		}
		next.RootDir = root
	}

	if err := s.repo.SaveSettings(ctx, next); err != nil {
		return nil, fmt.Errorf("could not save settings: %w", err)
	}

	if s.autoApprover != nil && p.AutoExec != nil {
		s.autoApprover.SetAutoApprove(next.AutoExec)
	}
	if s.modelSetter != nil && p.Model != nil {
		s.modelSetter.SetModel(next.Model)
	}
	s.logger.Infof("Settings updated (provider: %s, model: %s, auto exec: %t)", next.Provider, next.Model, next.AutoExec)

	return &next, nil
}

func (s *Service) current(ctx context.Context) (*model.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("could not get settings: %w", err)
		}
		settings = &model.Settings{}
	}
	settings.Defaults("")

	if root := s.root.Get(ctx); root != "" {
		settings.RootDir = root
	}

	return settings, nil
}
