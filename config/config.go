package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration. Image selects the ephemeral
// container mode; DataDir selects the long-lived shared worker mode.
// DataDir wins when both are present.
type SandboxConfig struct {
	Image          string   `mapstructure:"image"`
	DataDir        string   `mapstructure:"data_dir"`
	MemoryMB       int      `mapstructure:"memory_mb"`
	CPUShares      int      `mapstructure:"cpu_shares"`
	ExecTimeoutSec int      `mapstructure:"exec_timeout_sec"`
	PollIntervalMs int      `mapstructure:"poll_interval_ms"`
	StopTimeoutSec int      `mapstructure:"stop_timeout_sec"`
	WorkspaceBase  string   `mapstructure:"workspace_base"`
	WorkerCommand  []string `mapstructure:"worker_command"`
	DockerHost     string   `mapstructure:"docker_host"`
}

// DatasetConfig holds data source configuration
type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration from the default
// search paths.
func New() (*Config, error) {
	return load("")
}

// NewFromFile loads and validates the configuration from an explicit
// file path.
func NewFromFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Set default values
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("sandbox.image", "databox-worker:latest")
	v.SetDefault("sandbox.data_dir", "")
	v.SetDefault("sandbox.memory_mb", 512)
	v.SetDefault("sandbox.cpu_shares", 2)
	v.SetDefault("sandbox.exec_timeout_sec", 60)
	v.SetDefault("sandbox.poll_interval_ms", 500)
	v.SetDefault("sandbox.stop_timeout_sec", 10)
	v.SetDefault("sandbox.workspace_base", "")
	v.SetDefault("dataset.path", "")
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.Image == "" && c.Sandbox.DataDir == "" {
		return fmt.Errorf("no sandbox image or data directory configured")
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.CPUShares <= 0 {
		return fmt.Errorf("sandbox.cpu_shares must be positive, got: %d", c.Sandbox.CPUShares)
	}

	if c.Sandbox.ExecTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.exec_timeout_sec must be positive, got: %d", c.Sandbox.ExecTimeoutSec)
	}

	if c.Sandbox.PollIntervalMs <= 0 {
		return fmt.Errorf("sandbox.poll_interval_ms must be positive, got: %d", c.Sandbox.PollIntervalMs)
	}

	return nil
}

// ExecTimeout returns the execution wait bound as a duration.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Sandbox.ExecTimeoutSec) * time.Second
}

// PollInterval returns the response poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Sandbox.PollIntervalMs) * time.Millisecond
}

// StopTimeout returns the graceful stop bound as a duration.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Sandbox.StopTimeoutSec) * time.Second
}
