package home

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	// Initialize to create default config
	err = mgr.Initialize()
	require.NoError(t, err)

	// Load config
	config, err := mgr.LoadConfig()
	require.NoError(t, err)

	// Verify default values
	assert.Empty(t, config.Watcher.Folders)
	assert.Equal(t, 2, config.Watcher.PollIntervalSeconds)
	assert.Equal(t, 3, config.Watcher.DebounceSeconds)
	assert.Equal(t, 2, config.Watcher.MaxFolderDepth)
	assert.Equal(t, "openai", config.Planner.Provider)
	assert.Equal(t, "https://api.openai.com", config.Planner.BaseURL)
	assert.Equal(t, "gpt-4o-mini", config.Planner.Model)
	assert.Equal(t, "OPENAI_API_KEY", config.Planner.APIKeyEnv)
	assert.Equal(t, 180, config.Planner.TimeoutSeconds)
	assert.Equal(t, "index.db", config.Index.Path)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	// Create a config
	config := &Config{
		Watcher: WatcherConfig{
			Folders: []WatchedFolder{
				{Path: "/data/downloads", Instruction: "[AUTO-ORGANIZE] Sort by file type"},
				{Path: "/data/scans", Instruction: "Group scanned receipts by month"},
			},
			PollIntervalSeconds: 5,
			DebounceSeconds:     10,
			MaxFolderDepth:      3,
		},
		Planner: PlannerConfig{
			Provider:       "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1",
			TimeoutSeconds: 60,
		},
		Index: IndexConfig{
			Path: "custom.db",
		},
		Logging: LoggingConfig{
			Level:      "debug",
			File:       "custom.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
	}

	// Save config
	err = mgr.SaveConfig(config)
	require.NoError(t, err)

	// Verify file exists
	_, err = os.Stat(mgr.ConfigPath())
	assert.NoError(t, err)

	// Load and verify
	loaded, err := mgr.LoadConfig()
	require.NoError(t, err)

	require.Len(t, loaded.Watcher.Folders, 2)
	assert.Equal(t, "/data/downloads", loaded.Watcher.Folders[0].Path)
	assert.Equal(t, "[AUTO-ORGANIZE] Sort by file type", loaded.Watcher.Folders[0].Instruction)
	assert.Equal(t, "/data/scans", loaded.Watcher.Folders[1].Path)
	assert.Equal(t, 5, loaded.Watcher.PollIntervalSeconds)
	assert.Equal(t, 10, loaded.Watcher.DebounceSeconds)
	assert.Equal(t, 3, loaded.Watcher.MaxFolderDepth)
	assert.Equal(t, "ollama", loaded.Planner.Provider)
	assert.Equal(t, "http://localhost:11434", loaded.Planner.BaseURL)
	assert.Equal(t, "llama3.1", loaded.Planner.Model)
	assert.Equal(t, 60, loaded.Planner.TimeoutSeconds)
	assert.Equal(t, "custom.db", loaded.Index.Path)
	assert.Equal(t, "debug", loaded.Logging.Level)
	assert.Equal(t, 10, loaded.Logging.MaxSizeMB)
	assert.Equal(t, 5, loaded.Logging.MaxBackups)
	assert.Equal(t, 8080, loaded.Server.Port)
	assert.Equal(t, "0.0.0.0", loaded.Server.Host)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Empty(t, config.Watcher.Folders)
	assert.Equal(t, 2, config.Watcher.PollIntervalSeconds)
	assert.Equal(t, 3, config.Watcher.DebounceSeconds)
	assert.Equal(t, 2, config.Watcher.MaxFolderDepth)
	assert.Equal(t, "openai", config.Planner.Provider)
	assert.Equal(t, "https://api.openai.com", config.Planner.BaseURL)
	assert.Equal(t, "gpt-4o-mini", config.Planner.Model)
	assert.Equal(t, "OPENAI_API_KEY", config.Planner.APIKeyEnv)
	assert.Equal(t, 180, config.Planner.TimeoutSeconds)
	assert.Equal(t, IndexFile, config.Index.Path)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "logs/tidyfolder.log", config.Logging.File)
	assert.Equal(t, 50, config.Logging.MaxSizeMB)
	assert.Equal(t, 3, config.Logging.MaxBackups)
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestConfigDurations(t *testing.T) {
	var w WatcherConfig
	assert.Equal(t, 2*time.Second, w.PollInterval())
	assert.Equal(t, 3*time.Second, w.Debounce())
	assert.Equal(t, 2, w.MaxDepth())

	w = WatcherConfig{PollIntervalSeconds: 7, DebounceSeconds: 1, MaxFolderDepth: 4}
	assert.Equal(t, 7*time.Second, w.PollInterval())
	assert.Equal(t, time.Second, w.Debounce())
	assert.Equal(t, 4, w.MaxDepth())

	var p PlannerConfig
	assert.Equal(t, 180*time.Second, p.Timeout())
	p.TimeoutSeconds = 30
	assert.Equal(t, 30*time.Second, p.Timeout())
}

func TestLoadConfigErrorHandling(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	t.Run("returns error when config file doesn't exist", func(t *testing.T) {
		_, err := mgr.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		// Write invalid YAML
		invalidYAML := "invalid: yaml: content: :"
		err := os.WriteFile(mgr.ConfigPath(), []byte(invalidYAML), 0644)
		require.NoError(t, err)

		_, err = mgr.LoadConfig()
		assert.Error(t, err)
	})
}
