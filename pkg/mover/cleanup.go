package mover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidyfolder/tidyfolder/pkg/pathutil"
)

// FindEmptyFolders walks root and returns every directory that would be
// empty once its empty descendants are gone, deepest first. Root itself is
// never a candidate. Callers surface the list for confirmation; nothing is
// deleted here.
func FindEmptyFolders(root string) ([]string, error) {
	root = filepath.Clean(root)

	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).WithField("path", path).Debug("Skipping unreadable path")
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	// Deepest first, so a parent sees its children already marked.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})

	doomed := make(map[string]bool)
	var candidates []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		empty := true
		for _, e := range entries {
			if !doomed[filepath.Join(dir, e.Name())] {
				empty = false
				break
			}
		}
		if empty {
			doomed[dir] = true
			candidates = append(candidates, dir)
		}
	}
	return candidates, nil
}

// RemoveEmptyFolders deletes the given candidate folders, re-checking at
// delete time and refusing anything at or outside root. Returns how many
// were removed; a folder that gained content since the scan is silently
// left alone.
func RemoveEmptyFolders(root string, folders []string) int {
	root = filepath.Clean(root)
	removed := 0
	for _, dir := range folders {
		dir = filepath.Clean(dir)
		if dir == root || !pathutil.WithinRoot(root, dir) {
			log.WithField("path", dir).Warn("Refusing to remove folder outside root")
			continue
		}
		if removeIfEmpty(dir) {
			removed++
		}
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("Removed empty folders")
	}
	return removed
}

// SweepEmptyFolders finds and removes empty folders under root in one
// pass. Used where no confirmation step exists, such as after a flatten.
func SweepEmptyFolders(root string) int {
	candidates, err := FindEmptyFolders(root)
	if err != nil {
		log.WithError(err).Debug("Empty-folder sweep failed")
		return 0
	}
	return RemoveEmptyFolders(root, candidates)
}

// removeIfEmpty removes dir only when it has no entries. os.Remove refuses
// non-empty directories, which is the re-check.
func removeIfEmpty(dir string) bool {
	if err := os.Remove(dir); err != nil {
		log.WithError(err).WithField("path", dir).Debug("Folder not removed")
		return false
	}
	return true
}
