// Package pathutil holds the path helpers shared by the indexer, mover,
// and watcher: tilde expansion, existence checks, and the containment
// check that guards every destructive sweep.
package pathutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading tilde against the user's home directory
// and makes the result absolute.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to make path absolute: %w", err)
	}
	return abs, nil
}

// ValidatePath confirms the path exists on disk.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("failed to access path: %w", err)
	}
	return nil
}

// ExpandAndValidatePath expands the path and confirms the result exists.
func ExpandAndValidatePath(path string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if err := ValidatePath(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}

// WithinRoot reports whether path sits at or below root. Both are cleaned
// before comparison; the check is purely lexical, so callers must pass
// absolute paths. The destructive sweeps in this codebase refuse to touch
// anything for which this returns false.
func WithinRoot(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	return os.MkdirAll(path, 0755)
}
