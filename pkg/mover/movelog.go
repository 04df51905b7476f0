package mover

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidyfolder/tidyfolder/internal/models"
)

const (
	logPrefix     = "moves-"
	logSuffix     = ".json"
	logTimeFormat = "20060102-150405"
)

// LogStore persists one JSON document per executed batch in a single
// directory. Filenames are moves-<timestamp>.json, so lexical order is
// chronological order.
type LogStore struct {
	dir string

	mu    sync.Mutex
	paths map[string]string // batch id -> allocated path
}

// NewLogStore creates a store writing into dir. The directory is created
// on demand by the first write.
func NewLogStore(dir string) *LogStore {
	return &LogStore{dir: dir, paths: make(map[string]string)}
}

// Write persists the entry, creating its file on first call and rewriting
// it on subsequent calls for the same batch. Returns the file path.
func (s *LogStore) Write(entry *models.MoveLogEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	path, ok := s.paths[entry.BatchID]
	if !ok {
		path = s.allocatePath(entry)
		s.paths[entry.BatchID] = path
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal move log: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write move log: %w", err)
	}
	return path, nil
}

// allocatePath picks an unused filename for a new batch. Two batches in
// the same second get distinct -2, -3... suffixes.
func (s *LogStore) allocatePath(entry *models.MoveLogEntry) string {
	stamp := entry.Timestamp.Format(logTimeFormat)
	path := filepath.Join(s.dir, logPrefix+stamp+logSuffix)
	for n := 2; pathTaken(path); n++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s%s-%d%s", logPrefix, stamp, n, logSuffix))
	}
	return path
}

func pathTaken(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// List returns the paths of all move logs, newest first. A missing log
// directory is an empty history, not an error.
func (s *LogStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Read loads one move log document.
func (s *LogStore) Read(path string) (*models.MoveLogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read move log: %w", err)
	}
	var entry models.MoveLogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse move log: %w", err)
	}
	return &entry, nil
}

// Latest returns the newest move log and its path, or nil when the history
// is empty.
func (s *LogStore) Latest() (*models.MoveLogEntry, string, error) {
	paths, err := s.List()
	if err != nil {
		return nil, "", err
	}
	if len(paths) == 0 {
		return nil, "", nil
	}
	entry, err := s.Read(paths[0])
	if err != nil {
		return nil, "", err
	}
	return entry, paths[0], nil
}

// Clear deletes every move log and returns how many were removed.
func (s *LogStore) Clear() (int, error) {
	paths, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
	}

	s.mu.Lock()
	s.paths = make(map[string]string)
	s.mu.Unlock()

	log.WithField("removed", removed).Info("Cleared move history")
	return removed, nil
}
