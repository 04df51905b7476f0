package home

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Watcher WatcherConfig `yaml:"watcher"`
	Planner PlannerConfig `yaml:"planner"`
	Index   IndexConfig   `yaml:"index"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// WatchedFolder pairs a folder with the instruction used to organize it
type WatchedFolder struct {
	Path        string `yaml:"path"`
	Instruction string `yaml:"instruction"`
}

// WatcherConfig contains folder watcher settings
type WatcherConfig struct {
	Folders             []WatchedFolder `yaml:"folders"`
	PollIntervalSeconds int             `yaml:"pollIntervalSeconds"`
	DebounceSeconds     int             `yaml:"debounceSeconds"`
	MaxFolderDepth      int             `yaml:"maxFolderDepth"`
}

// PollInterval returns the poll cadence as a duration.
func (w *WatcherConfig) PollInterval() time.Duration {
	if w.PollIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// Debounce returns the settle window as a duration.
func (w *WatcherConfig) Debounce() time.Duration {
	if w.DebounceSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(w.DebounceSeconds) * time.Second
}

// MaxDepth returns the folder depth limit, defaulting when unset.
func (w *WatcherConfig) MaxDepth() int {
	if w.MaxFolderDepth <= 0 {
		return 2
	}
	return w.MaxFolderDepth
}

// PlannerConfig contains planner backend settings
type PlannerConfig struct {
	Provider       string `yaml:"provider"` // "openai" or "ollama"
	BaseURL        string `yaml:"baseURL"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"apiKeyEnv"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Timeout returns the per-call planner timeout as a duration.
func (p *PlannerConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 180 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// IndexConfig contains file index settings
type IndexConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// ServerConfig contains server settings
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// LoadConfig loads configuration from config.yaml
func (m *Manager) LoadConfig() (*Config, error) {
	configPath := m.ConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to config.yaml
func (m *Manager) SaveConfig(config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := m.ConfigPath()
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Watcher: WatcherConfig{
			Folders:             []WatchedFolder{},
			PollIntervalSeconds: 2,
			DebounceSeconds:     3,
			MaxFolderDepth:      2,
		},
		Planner: PlannerConfig{
			Provider:       "openai",
			BaseURL:        "https://api.openai.com",
			Model:          "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 180,
		},
		Index: IndexConfig{
			Path: IndexFile,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "logs/tidyfolder.log",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Port: 3000,
			Host: "localhost",
		},
	}
}
