package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tagwatch/internal/logger"

	"gopkg.in/yaml.v3"
)

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	ServerConfig   ServerConfig          `json:"server_config,omitempty" yaml:"server_config,omitempty"`
	StorageConfig  StorageConfig         `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	GitHubConfig   GitHubConfig          `json:"github_config,omitempty" yaml:"github_config,omitempty"`
	MonitorConfig  MonitorDefaultsConfig `json:"monitor_config,omitempty" yaml:"monitor_config,omitempty"`
	LogConfig      logger.FileLogConfig  `json:"log_config,omitempty" yaml:"log_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		ServerConfig:  NewDefaultServerConfig(),
		StorageConfig: NewDefaultStorageConfig(),
		GitHubConfig:  NewDefaultGitHubConfig(),
		MonitorConfig: NewDefaultMonitorDefaultsConfig(),
		LogConfig:     logger.NewDefaultFileLogConfig(),
	}
}

// LoadGlobalConfig loads the configuration file at the given path over the
// defaults. An empty path returns the defaults unchanged.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := parseConfigContent(data, path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

func parseConfigContent(data []byte, path string, cfg *GlobalConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
}
