package logger

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithName(t *testing.T) {
	entry := WithName("watcher")
	require.NotNil(t, entry)
	assert.Equal(t, "watcher", entry.Data["component"])
	assert.Same(t, GetLogger(), entry.Logger)
}

func TestWithFields(t *testing.T) {
	entry := WithFields(logrus.Fields{
		"folder": "/watch/downloads",
		"count":  3,
	})
	require.NotNil(t, entry)
	assert.Equal(t, "/watch/downloads", entry.Data["folder"])
	assert.Equal(t, 3, entry.Data["count"])
}

func TestSetLevel(t *testing.T) {
	original := defaultLogger.Level
	defer SetLevel(original)

	SetLevel(logrus.DebugLevel)
	assert.Equal(t, logrus.DebugLevel, defaultLogger.Level)
	assert.True(t, IsLevelEnabled(logrus.InfoLevel))
	assert.False(t, IsLevelEnabled(logrus.TraceLevel))

	SetLevel(logrus.ErrorLevel)
	assert.False(t, IsLevelEnabled(logrus.InfoLevel))
	assert.True(t, IsLevelEnabled(logrus.ErrorLevel))
}

func TestConfigureFromString(t *testing.T) {
	originalLevel := defaultLogger.Level
	originalOut := defaultLogger.Out
	originalEnv := os.Getenv("GO_ENV")
	defer func() {
		SetLevel(originalLevel)
		defaultLogger.Out = originalOut
		os.Setenv("GO_ENV", originalEnv)
	}()

	t.Run("level names parse case-insensitively", func(t *testing.T) {
		os.Setenv("GO_ENV", "")
		for _, level := range []string{"trace", "debug", "Info", "WARN", "error"} {
			assert.NoError(t, ConfigureFromString(level), "level %q", level)
		}
	})

	t.Run("unknown level is an error", func(t *testing.T) {
		os.Setenv("GO_ENV", "")
		assert.Error(t, ConfigureFromString("loud"))
	})

	t.Run("silent discards output", func(t *testing.T) {
		os.Setenv("GO_ENV", "")
		assert.NoError(t, ConfigureFromString("silent"))
		assert.Equal(t, io.Discard, defaultLogger.Out)
	})

	t.Run("test mode wins over the requested level", func(t *testing.T) {
		defaultLogger.Out = os.Stdout
		os.Setenv("GO_ENV", "test")
		assert.NoError(t, ConfigureFromString("debug"))
		assert.Equal(t, io.Discard, defaultLogger.Out)
	})
}

func TestConfigureFile(t *testing.T) {
	originalOut := defaultLogger.Out
	defer func() { defaultLogger.Out = originalOut }()

	t.Run("empty path is a no-op", func(t *testing.T) {
		ConfigureFile(FileConfig{})
		assert.Equal(t, originalOut, defaultLogger.Out)
	})

	t.Run("writes through to the rotating file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidyfolder.log")

		ConfigureFile(FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1})
		defaultLogger.Error("rotation smoke test")

		info, err := os.Stat(path)
		assert.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	})
}
