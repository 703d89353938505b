// Package root manages the jail root directory and its persistence.
package root

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage"
)

// Jail is the jail whose root is managed.
type Jail interface {
	SetRoot(path string) (string, error)
	Restore(root string)
	Root() string
}

// PendingCounter returns the number of commands waiting for a decision.
type PendingCounter interface {
	Len() int
}

// ServiceConfig is the configuration for the root service.
type ServiceConfig struct {
	Jail Jail
	// Settings persists the root, when missing the root only lives in memory.
	Settings storage.SettingsRepository
	// Pending is used to warn about root changes with queued commands (optional).
	Pending PendingCounter
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Jail == nil {
		return fmt.Errorf("jail is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Root"})

	return nil
}

// Service sets and gets the jail root.
type Service struct {
	jail     Jail
	settings storage.SettingsRepository
	pending  PendingCounter
	logger   log.Logger
}

// NewService creates a new root service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		jail:     cfg.Jail,
		settings: cfg.Settings,
		pending:  cfg.Pending,
		logger:   cfg.Logger,
	}, nil
}

// Set changes the jail root, creating the directory if required, and persists it.
// If the root can't be persisted the previous root is restored.
// Commands already queued keep the root they were queued with.
func (s *Service) Set(ctx context.Context, path string) (string, error) {
	prev := s.jail.Root()
	root, err := s.jail.SetRoot(path)
	if err != nil {
		return "", fmt.Errorf("could not set root: %w", err)
	}

	if s.settings != nil {
		err := s.persist(ctx, root)
		if err != nil {
			s.jail.Restore(prev)
			return "", err
		}
	}

	if s.pending != nil {
		if n := s.pending.Len(); n > 0 {
			s.logger.Warningf("Root changed to %s with %d pending commands, they will keep their previous working directory", root, n)
		}
	}
	s.logger.Infof("Root set to %s", root)

	return root, nil
}

func (s *Service) persist(ctx context.Context, root string) error {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return err
	}
	settings.RootDir = root

	err = s.settings.SaveSettings(ctx, *settings)
	if err != nil {
		return fmt.Errorf("could not persist root: %w", err)
	}

	return nil
}

// Get returns the current jail root, empty if not set.
func (s *Service) Get(ctx context.Context) string {
	return s.jail.Root()
}

// Load reads the persisted settings and applies the root to the jail.
// The returned settings carry the resolved root.
func (s *Service) Load(ctx context.Context) (*model.Settings, error) {
	if s.settings == nil {
		return nil, fmt.Errorf("settings repository is missing: %w", model.ErrNotValid)
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load settings: %w", err)
	}

	root, err := s.jail.SetRoot(settings.RootDir)
	if err != nil {
		return nil, fmt.Errorf("could not apply root %q: %w", settings.RootDir, err)
	}
	settings.RootDir = root

	s.logger.Debugf("Settings loaded with root %s", root)

	return settings, nil
}

func (s *Service) currentSettings(ctx context.Context) (*model.Settings, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("could not get settings: %w", err)
		}
		settings = &model.Settings{}
		settings.Defaults("")
	}

	return settings, nil
}
