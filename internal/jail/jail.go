// Package jail confines filesystem paths to a single root directory.
//
// Every operation that touches the filesystem on behalf of a request must get
// its path from Jail.Resolve, there is no other trusted boundary check.
package jail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/slok/kage/internal/model"
)

// Jail holds the root directory and resolves paths inside of it.
// The zero value is a jail without root, use SetRoot before resolving paths.
type Jail struct {
	mu   sync.RWMutex
	root string
}

// New returns a jail rooted at root, creating the directory if required.
func New(root string) (*Jail, error) {
	j := &Jail{}
	if _, err := j.SetRoot(root); err != nil {
		return nil, err
	}
	return j, nil
}

// SetRoot sets the jail root. The path is made absolute and cleaned, and the
// directory (with its parents) is created if missing. It returns the resolved root.
func (j *Jail) SetRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("root path is required: %w", model.ErrNotValid)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("could not resolve root %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("root %q is not a directory: %w", abs, model.ErrNotValid)
	case err != nil && !os.IsNotExist(err):
		return "", fmt.Errorf("could not stat root %q: %w", abs, err)
	case err != nil:
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", fmt.Errorf("could not create root %q: %w", abs, err)
		}
	}

	j.mu.Lock()
	j.root = abs
	j.mu.Unlock()

	return abs, nil
}

// Restore sets back a root previously returned by Root, without any check.
// An empty root leaves the jail unset.
func (j *Jail) Restore(root string) {
	j.mu.Lock()
	j.root = root
	j.mu.Unlock()
}

// Root returns the current root, or an empty string if it has not been set.
func (j *Jail) Root() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.root
}

// Resolve returns the absolute path of p inside the jail root.
//
// p is treated as relative to the root even if it's absolute: leading separators
// (and volume names) are stripped before joining. The joined path is cleaned
// again and must be the root itself or a descendant of it, otherwise
// model.ErrJailEscape is returned. An empty path resolves to the root.
func (j *Jail) Resolve(p string) (string, error) {
	root := j.Root()
	if root == "" {
		return "", model.ErrRootNotSet
	}

	clean := filepath.Clean(p)
	clean = strings.TrimPrefix(clean, filepath.VolumeName(clean))
	clean = strings.TrimLeft(clean, `/\`)

	resolved := filepath.Join(root, clean)
	if !within(root, resolved) {
		return "", fmt.Errorf("%q: %w", p, model.ErrJailEscape)
	}

	return resolved, nil
}

// IsInside returns true if path, once made absolute, is the root or is below it.
// Unlike Resolve, relative paths are resolved against the process working directory.
func (j *Jail) IsInside(path string) bool {
	root := j.Root()
	if root == "" || path == "" {
		return false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	return within(root, abs)
}

// Rel returns the path relative to the root if the path is inside the jail.
func (j *Jail) Rel(path string) (string, bool) {
	if !j.IsInside(path) {
		return "", false
	}

	abs, _ := filepath.Abs(path)
	rel, err := filepath.Rel(j.Root(), abs)
	if err != nil {
		return "", false
	}

	return rel, true
}

// within checks with cleaned absolute paths. An exact match or a separator
// boundary is required so "/jail-evil" is not inside "/jail".
func within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)

	if path == root {
		return true
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	return strings.HasPrefix(path, prefix)
}
