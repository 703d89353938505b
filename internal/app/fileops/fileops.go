// Package fileops reads and writes files inside the jail root.
package fileops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

// DefaultMaxReadBytes is the default read limit, and also the biggest one allowed.
const DefaultMaxReadBytes = 2 * 1024 * 1024

// Jail resolves request paths inside the jail root.
type Jail interface {
	Resolve(p string) (string, error)
	Rel(path string) (string, bool)
}

// ServiceConfig is the configuration for the file operations service.
type ServiceConfig struct {
	Jail     Jail
	FileMode os.FileMode
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Jail == nil {
		return fmt.Errorf("jail is required")
	}
	if c.FileMode == 0 {
		c.FileMode = 0o644
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.FileOps"})
	return nil
}

// Service handles jailed file operations.
type Service struct {
	jail     Jail
	fileMode os.FileMode
	logger   log.Logger
}

// NewService creates a new file operations service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		jail:     cfg.Jail,
		fileMode: cfg.FileMode,
		logger:   cfg.Logger,
	}, nil
}

// Write writes content to the root relative path, creating the parent directories.
// It returns the clean root relative path of the written file.
func (s *Service) Write(ctx context.Context, rel string, content []byte) (string, error) {
	path, err := s.jail.Resolve(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("could not create parent directory: %w", err)
	}

	if err := os.WriteFile(path, content, s.fileMode); err != nil {
		return "", fmt.Errorf("could not write file: %w", err)
	}

	clean, _ := s.jail.Rel(path)
	s.logger.Infof("Wrote %d bytes to %s", len(content), clean)

	return clean, nil
}

// ReadResult is the result of a read.
type ReadResult struct {
	Content []byte
	// Size is the full file size.
	Size int64
	// Truncated is true when the file is bigger than the read limit.
	Truncated bool
}

// Read reads up to max bytes of the root relative file. If max is 0 or
// less, or bigger than DefaultMaxReadBytes, DefaultMaxReadBytes is used.
func (s *Service) Read(ctx context.Context, rel string, max int64) (*ReadResult, error) {
	if max <= 0 || max > DefaultMaxReadBytes {
		max = DefaultMaxReadBytes
	}

	path, err := s.jail.Resolve(rel)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", rel, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory: %w", rel, model.ErrNotValid)
	}

	content, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("could not read file: %w", err)
	}

	res := &ReadResult{Content: content, Size: info.Size()}
	if int64(len(content)) > max {
		res.Content = content[:max]
		res.Truncated = true
	}

	return res, nil
}

// Entry is a directory entry.
type Entry struct {
	Name    string
	Dir     bool
	Size    int64
	ModTime time.Time
}

// List lists the root relative directory, directories first then by name.
func (s *Service) List(ctx context.Context, rel string) ([]Entry, error) {
	path, err := s.jail.Resolve(rel)
	if err != nil {
		return nil, err
	}

	des, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", rel, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read directory: %w", err)
	}

	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if err != nil {
			// Removed while listing.
			continue
		}
		e := Entry{Name: de.Name(), Dir: de.IsDir(), ModTime: info.ModTime()}
		if !e.Dir {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Dir != entries[j].Dir {
			return entries[i].Dir
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}
