package home

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// State holds the small bits of watcher state that survive restarts.
// LastActive feeds catch-up mode: files older than it are assumed to
// predate the last watcher session and are not re-organized on start.
type State struct {
	LastActive *time.Time `json:"lastActive,omitempty"`
}

// LoadState reads the watcher state file. A missing file is not an error;
// it returns an empty state.
func (m *Manager) LoadState() (*State, error) {
	data, err := os.ReadFile(m.StatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	return &state, nil
}

// SaveState writes the watcher state file.
func (m *Manager) SaveState(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(m.StatePath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}
