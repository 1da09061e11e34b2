package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			HTTPPort:  8080,
		},
		Sandbox: SandboxConfig{
			Image:          "databox-worker:latest",
			MemoryMB:       512,
			CPUShares:      2,
			ExecTimeoutSec: 60,
			PollIntervalMs: 500,
			StopTimeoutSec: 10,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	t.Run("InvalidServerTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Transport = "invalid"
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.transport")
	})

	t.Run("NoImageOrDataDir", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Image = ""
		cfg.Sandbox.DataDir = ""
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no sandbox image or data directory")
	})

	t.Run("DataDirAloneIsEnough", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Image = ""
		cfg.Sandbox.DataDir = "/var/lib/databox/shared"
		require.NoError(t, cfg.validate())
	})

	t.Run("NonPositiveMemory", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.MemoryMB = 0
		require.Error(t, cfg.validate())
	})

	t.Run("NonPositiveCPUShares", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.CPUShares = -1
		require.Error(t, cfg.validate())
	})

	t.Run("NonPositiveExecTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.ExecTimeoutSec = 0
		require.Error(t, cfg.validate())
	})

	t.Run("NonPositivePollInterval", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.PollIntervalMs = 0
		require.Error(t, cfg.validate())
	})
}

func TestNewFromFile(t *testing.T) {
	doc := map[string]any{
		"server": map[string]any{
			"transport": "http",
			"http_port": 9090,
		},
		"sandbox": map[string]any{
			"image":            "databox-worker:1.2",
			"memory_mb":        256,
			"cpu_shares":       4,
			"exec_timeout_sec": 30,
		},
		"dataset": map[string]any{
			"path": "/data/sales.csv",
		},
	}

	raw, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "databox-worker:1.2", cfg.Sandbox.Image)
	assert.Equal(t, 256, cfg.Sandbox.MemoryMB)
	assert.Equal(t, 4, cfg.Sandbox.CPUShares)
	assert.Equal(t, 30, cfg.Sandbox.ExecTimeoutSec)
	assert.Equal(t, "/data/sales.csv", cfg.Dataset.Path)

	// Unset values keep their defaults.
	assert.Equal(t, 500, cfg.Sandbox.PollIntervalMs)
	assert.Equal(t, "production", cfg.Logging.Mode)
}

func TestNewFromFileInvalid(t *testing.T) {
	doc := map[string]any{
		"sandbox": map[string]any{
			"image":     "",
			"data_dir":  "",
			"memory_mb": 512,
		},
	}

	raw, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = NewFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation error")
}

func TestDurationHelpers(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "1m0s", cfg.ExecTimeout().String())
	assert.Equal(t, "500ms", cfg.PollInterval().String())
	assert.Equal(t, "10s", cfg.StopTimeout().String())
}
