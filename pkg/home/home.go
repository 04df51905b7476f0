// Package home manages the application home directory: its layout, the
// YAML config, and the persisted watcher state.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout of the home directory. Everything the application persists
// lives under one root, ~/.tidyfolder unless overridden.
const (
	LogsDir     = "logs"
	MoveLogsDir = "movelogs"

	ConfigFile = "config.yaml"
	IndexFile  = "index.db"
	StateFile  = "watcher.state"
)

// Manager resolves paths inside the home directory and creates its
// initial structure.
type Manager struct {
	path string
}

// NewManager returns a manager rooted at path, or at the default home
// when path is empty.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		path = DefaultHomePath()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid home path: %w", err)
	}
	return &Manager{path: abs}, nil
}

// DefaultHomePath returns TIDYFOLDER_HOME if set, otherwise
// ~/.tidyfolder.
func DefaultHomePath() string {
	if path := os.Getenv("TIDYFOLDER_HOME"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tidyfolder"
	}
	return filepath.Join(home, ".tidyfolder")
}

// Path returns the home directory root.
func (m *Manager) Path() string {
	return m.path
}

// Exists reports whether the home directory has been created.
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.path)
	return err == nil && info.IsDir()
}

// JoinPath joins elements relative to the home root.
func (m *Manager) JoinPath(elem ...string) string {
	return filepath.Join(append([]string{m.path}, elem...)...)
}

// ConfigPath is <home>/config.yaml.
func (m *Manager) ConfigPath() string {
	return m.JoinPath(ConfigFile)
}

// IndexPath is <home>/index.db.
func (m *Manager) IndexPath() string {
	return m.JoinPath(IndexFile)
}

// StatePath is <home>/watcher.state.
func (m *Manager) StatePath() string {
	return m.JoinPath(StateFile)
}

// LogsPath is <home>/logs.
func (m *Manager) LogsPath() string {
	return m.JoinPath(LogsDir)
}

// MoveLogsPath is <home>/movelogs.
func (m *Manager) MoveLogsPath() string {
	return m.JoinPath(MoveLogsDir)
}

// Initialize creates the home directory tree plus a starter config and
// .gitignore. Running it on an existing home is safe; nothing present
// is overwritten.
func (m *Manager) Initialize() error {
	for _, dir := range []string{m.path, m.LogsPath(), m.MoveLogsPath()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := m.writeDefaultConfig(); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	if err := m.writeGitignore(); err != nil {
		return fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return nil
}

func (m *Manager) writeDefaultConfig() error {
	path := m.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	content := `# tidyfolder configuration

# Folders the watcher organizes. Each folder carries its own instruction;
# prefix an instruction with [AUTO-ORGANIZE] to force full coverage (files
# the planner leaves out land in a "misc" folder).
watcher:
  folders: []
  #  - path: ~/Downloads
  #    instruction: "[AUTO-ORGANIZE] Sort by file type"
  pollIntervalSeconds: 2
  debounceSeconds: 3
  maxFolderDepth: 2

# Planner backend. provider is "openai" (any OpenAI-compatible endpoint)
# or "ollama". The API key is read from the environment variable named by
# apiKeyEnv, never stored here.
planner:
  provider: openai
  baseURL: https://api.openai.com
  model: gpt-4o-mini
  apiKeyEnv: OPENAI_API_KEY
  timeoutSeconds: 180

# File index settings
index:
  path: index.db  # Relative to home directory

# Logging settings
logging:
  level: info            # trace, debug, info, warn, error
  file: logs/tidyfolder.log
  maxSizeMB: 50
  maxBackups: 3

# Server settings (serve command)
server:
  port: 3000
  host: localhost
`

	return os.WriteFile(path, []byte(content), 0644)
}

func (m *Manager) writeGitignore() error {
	path := m.JoinPath(".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	content := `# Database files
*.db
*.db-shm
*.db-wal

# Move logs
movelogs/

# Log files
logs/
*.log

# Watcher state
watcher.state

# OS files
.DS_Store
Thumbs.db
`

	return os.WriteFile(path, []byte(content), 0644)
}
