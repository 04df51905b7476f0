package home

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	mgr, err := NewManager("/tmp/tidy-home")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tidy-home", mgr.Path())

	mgr, err = NewManager("")
	require.NoError(t, err)
	assert.NotEmpty(t, mgr.Path())
	assert.True(t, filepath.IsAbs(mgr.Path()))
}

func TestDefaultHomePath(t *testing.T) {
	t.Run("env override wins", func(t *testing.T) {
		t.Setenv("TIDYFOLDER_HOME", "/custom/tidy/home")
		assert.Equal(t, "/custom/tidy/home", DefaultHomePath())
	})

	t.Run("defaults under the user home", func(t *testing.T) {
		t.Setenv("TIDYFOLDER_HOME", "")
		assert.True(t, strings.HasSuffix(DefaultHomePath(), ".tidyfolder"))
	})
}

func TestManagerExists(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)
	assert.True(t, mgr.Exists())

	mgr, err = NewManager("/tmp/tidyfolder-nowhere-12345")
	require.NoError(t, err)
	assert.False(t, mgr.Exists())
}

func TestManagerPaths(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   func() string
		expected string
	}{
		{"ConfigPath", mgr.ConfigPath, filepath.Join(tmpDir, ConfigFile)},
		{"IndexPath", mgr.IndexPath, filepath.Join(tmpDir, IndexFile)},
		{"StatePath", mgr.StatePath, filepath.Join(tmpDir, StateFile)},
		{"LogsPath", mgr.LogsPath, filepath.Join(tmpDir, LogsDir)},
		{"MoveLogsPath", mgr.MoveLogsPath, filepath.Join(tmpDir, MoveLogsDir)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.method())
		})
	}
}

func TestManagerInitialize(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, mgr.Initialize())

	for _, path := range []string{mgr.LogsPath(), mgr.MoveLogsPath()} {
		info, err := os.Stat(path)
		require.NoError(t, err, "missing directory %s", path)
		assert.True(t, info.IsDir())
	}

	config, err := os.ReadFile(mgr.ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(config), "watcher:")
	assert.Contains(t, string(config), "planner:")

	_, err = os.Stat(mgr.JoinPath(".gitignore"))
	assert.NoError(t, err)

	// A second Initialize must leave user edits alone.
	edited := []byte("watcher:\n  folders: []\n")
	require.NoError(t, os.WriteFile(mgr.ConfigPath(), edited, 0644))
	require.NoError(t, mgr.Initialize())

	config, err = os.ReadFile(mgr.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, edited, config)
}

func TestState(t *testing.T) {
	tmpDir := t.TempDir()
	mgr, err := NewManager(tmpDir)
	require.NoError(t, err)

	t.Run("missing state file yields empty state", func(t *testing.T) {
		state, err := mgr.LoadState()
		require.NoError(t, err)
		assert.Nil(t, state.LastActive)
	})

	t.Run("round-trips lastActive", func(t *testing.T) {
		stamp := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
		err := mgr.SaveState(&State{LastActive: &stamp})
		require.NoError(t, err)

		state, err := mgr.LoadState()
		require.NoError(t, err)
		require.NotNil(t, state.LastActive)
		assert.True(t, stamp.Equal(*state.LastActive))
	})

	t.Run("corrupt state file errors", func(t *testing.T) {
		err := os.WriteFile(mgr.StatePath(), []byte("{not json"), 0644)
		require.NoError(t, err)

		_, err = mgr.LoadState()
		assert.Error(t, err)
	})
}
