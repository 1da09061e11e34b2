package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestContainerSpecSecurity(t *testing.T) {
	cfg := Config{
		Image:     "databox-worker:latest",
		MemoryMB:  512,
		CPUShares: 2,
	}

	containerConfig, hostConfig := containerSpec(cfg, "/tmp/ws")

	assert.Equal(t, "databox-worker:latest", containerConfig.Image)
	assert.Equal(t, containerWorkdir, containerConfig.WorkingDir)
	assert.Equal(t, defaultWorkerCommand, []string(containerConfig.Cmd))

	// The sandbox never gets a network; curl and friends have nowhere to go.
	assert.Equal(t, "none", string(hostConfig.NetworkMode))

	assert.Equal(t, int64(512*1024*1024), hostConfig.Resources.Memory)
	assert.Equal(t, int64(2), hostConfig.Resources.CPUShares)

	require.Len(t, hostConfig.Mounts, 1)
	assert.Equal(t, "/tmp/ws", hostConfig.Mounts[0].Source)
	assert.Equal(t, containerWorkdir, hostConfig.Mounts[0].Target)
}

func TestContainerSpecDefaultsAndOverrides(t *testing.T) {
	cfg := Config{
		Image:         "databox-worker:latest",
		WorkerCommand: []string{"/opt/worker", "--interval", "250ms"},
	}

	containerConfig, hostConfig := containerSpec(cfg, "/tmp/ws")

	assert.Equal(t, []string{"/opt/worker", "--interval", "250ms"}, []string(containerConfig.Cmd))
	assert.Zero(t, hostConfig.Resources.Memory, "no limit configured, none declared")
	assert.Zero(t, hostConfig.Resources.CPUShares)
}

func TestNewInstanceSelection(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("SharedWinsWhenDataDirSet", func(t *testing.T) {
		inst, err := NewInstance(logger, Config{Image: "img", DataDir: "/data"})
		require.NoError(t, err)
		assert.IsType(t, &SharedInstance{}, inst)
	})

	t.Run("DockerWhenOnlyImageSet", func(t *testing.T) {
		inst, err := NewInstance(logger, Config{Image: "img"})
		require.NoError(t, err)
		assert.IsType(t, &DockerInstance{}, inst)
	})

	t.Run("NeitherIsConfigurationError", func(t *testing.T) {
		_, err := NewInstance(logger, Config{})
		require.Error(t, err)
	})
}
