package model

import "fmt"

const (
	// DefaultProvider is the LLM provider used when none is configured.
	DefaultProvider = "openai"
	// DefaultModel is the LLM model used when none is configured.
	DefaultModel = "gpt-4o-mini"
)

// Settings is the persisted application configuration.
type Settings struct {
	// RootDir is the jail root, applied on startup.
	RootDir string
	// AutoExec approves every submitted command without waiting for the user.
	AutoExec bool
	Provider string
	Model    string
}

// Defaults fills the unset fields. defaultRoot is used as the root when none is set.
func (s *Settings) Defaults(defaultRoot string) {
	if s.RootDir == "" {
		s.RootDir = defaultRoot
	}
	if s.Provider == "" {
		s.Provider = DefaultProvider
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
}

// Validate validates the settings.
func (s Settings) Validate() error {
	if s.RootDir == "" {
		return fmt.Errorf("root dir is required: %w", ErrNotValid)
	}
	if s.Provider != DefaultProvider {
		return fmt.Errorf("provider %q is not supported: %w", s.Provider, ErrNotValid)
	}
	return nil
}
