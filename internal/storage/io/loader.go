package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

// SettingsYAMLRepositoryConfig is the configuration for the YAML settings repository.
type SettingsYAMLRepositoryConfig struct {
	// Path is the settings file path.
	Path string
	// DefaultRootDir is used as the jail root when the file doesn't set one.
	DefaultRootDir string
	Logger         log.Logger
}

func (c *SettingsYAMLRepositoryConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.DefaultRootDir == "" {
		return fmt.Errorf("default root dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SettingsYAML"})
	return nil
}

// SettingsYAMLRepository stores the application settings in a YAML file.
type SettingsYAMLRepository struct {
	path        string
	defaultRoot string
	logger      log.Logger
}

// NewSettingsYAMLRepository creates a new YAML settings repository.
func NewSettingsYAMLRepository(cfg SettingsYAMLRepositoryConfig) (*SettingsYAMLRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &SettingsYAMLRepository{
		path:        cfg.Path,
		defaultRoot: cfg.DefaultRootDir,
		logger:      cfg.Logger,
	}, nil
}

// GetSettings loads the settings file. A missing file returns the default settings.
func (r *SettingsYAMLRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	data, err := os.ReadFile(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var cfg SettingsFile
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	} else {
		r.logger.Debugf("Settings file %s missing, using defaults", r.path)
	}

	s := cfg.toModel()
	s.Defaults(r.defaultRoot)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &s, nil
}

// SaveSettings writes the settings file, replacing the previous one atomically.
func (r *SettingsYAMLRepository) SaveSettings(ctx context.Context, s model.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	data, err := yaml.Marshal(fromModel(s))
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("could not create temp settings file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("could not replace settings file: %w", err)
	}

	r.logger.Debugf("Settings saved to %s", r.path)
	return nil
}

// SettingsFile represents the YAML structure of the settings file.
type SettingsFile struct {
	RootDir  string `yaml:"root_dir"`
	AutoExec bool   `yaml:"auto_exec"`
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

func (c SettingsFile) toModel() model.Settings {
	return model.Settings{
		RootDir:  c.RootDir,
		AutoExec: c.AutoExec,
		Provider: c.Provider,
		Model:    c.Model,
	}
}

func fromModel(s model.Settings) SettingsFile {
	return SettingsFile{
		RootDir:  s.RootDir,
		AutoExec: s.AutoExec,
		Provider: s.Provider,
		Model:    s.Model,
	}
}
