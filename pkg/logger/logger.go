// Package logger wraps the process-wide logrus instance. Packages grab a
// component-tagged entry once in init via WithName; level and file output
// are applied later from config.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var defaultLogger *logrus.Logger

func init() {
	defaultLogger = logrus.New()

	defaultLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	defaultLogger.SetOutput(os.Stdout)

	// Tests run silent unless LOG_LEVEL overrides.
	isTest := os.Getenv("GO_ENV") == "test"

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		if isTest {
			logLevel = "silent"
		} else {
			logLevel = "info"
		}
	}

	if logLevel == "silent" {
		defaultLogger.SetOutput(io.Discard)
	} else {
		level, err := logrus.ParseLevel(strings.ToLower(logLevel))
		if err != nil {
			level = logrus.InfoLevel
		}
		defaultLogger.SetLevel(level)
	}
}

// GetLogger returns the shared logger.
func GetLogger() *logrus.Logger {
	return defaultLogger
}

// WithName returns an entry tagged with a component name.
func WithName(name string) *logrus.Entry {
	return defaultLogger.WithField("component", name)
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return defaultLogger.WithFields(fields)
}

// SetLevel changes the level of the shared logger.
func SetLevel(level logrus.Level) {
	defaultLogger.SetLevel(level)
}

// IsLevelEnabled reports whether level would currently be logged. Hot
// paths check it before building per-entry fields.
func IsLevelEnabled(level logrus.Level) bool {
	return defaultLogger.IsLevelEnabled(level)
}

// ConfigureFromString applies a level name from config. "silent" turns
// output off entirely; test mode stays silent regardless.
func ConfigureFromString(levelStr string) error {
	if os.Getenv("GO_ENV") == "test" {
		defaultLogger.SetOutput(io.Discard)
		return nil
	}

	if levelStr == "silent" {
		defaultLogger.SetOutput(io.Discard)
		return nil
	}

	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return err
	}
	defaultLogger.SetLevel(level)
	return nil
}

// FileConfig controls rotating file output.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ConfigureFile mirrors log output to a rotating file in addition to
// stdout. Safe to call once at startup after the config is loaded.
func ConfigureFile(cfg FileConfig) {
	if cfg.Path == "" {
		return
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	defaultLogger.SetOutput(io.MultiWriter(os.Stdout, rotating))
}
