package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/databox/workspace"
)

// Mount target of the workspace inside the container.
const containerWorkdir = "/workspace"

// defaultWorkerCommand is the worker entry point baked into the sandbox
// image.
var defaultWorkerCommand = []string{"/usr/local/bin/databox-worker"}

// DockerInstance runs one ephemeral worker container per supervisor,
// bind-mounted to the workspace, with the network fully disabled and the
// configured memory and CPU limits applied by the daemon.
type DockerInstance struct {
	logger *zap.Logger
	cfg    Config
	cli    *client.Client

	mu          sync.Mutex
	containerID string
	running     bool
}

// NewDockerInstance creates the instance and its docker client. The
// daemon is not contacted until Launch.
func NewDockerInstance(logger *zap.Logger, cfg Config) (*DockerInstance, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &DockerInstance{logger: logger, cfg: cfg, cli: cli}, nil
}

// containerSpec builds the container and host configuration for a
// workspace root. Split out so the security-relevant parts are testable
// without a daemon.
func containerSpec(cfg Config, wsRoot string) (*container.Config, *container.HostConfig) {
	cmd := cfg.WorkerCommand
	if len(cmd) == 0 {
		cmd = defaultWorkerCommand
	}

	containerConfig := &container.Config{
		Image:      cfg.Image,
		WorkingDir: containerWorkdir,
		Cmd:        cmd,
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: wsRoot,
				Target: containerWorkdir,
			},
		},
		AutoRemove: false,
		// The transport is file-based; the sandbox never gets a network.
		NetworkMode: "none",
	}

	if cfg.MemoryMB > 0 {
		hostConfig.Resources.Memory = int64(cfg.MemoryMB) * 1024 * 1024
	}
	if cfg.CPUShares > 0 {
		hostConfig.Resources.CPUShares = int64(cfg.CPUShares)
	}

	return containerConfig, hostConfig
}

// Launch starts the container bound to ws. Calling Launch while already
// running is a no-op.
func (d *DockerInstance) Launch(ctx context.Context, ws *workspace.Workspace) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	name := "databox-" + uuid.NewString()[:8]
	containerConfig, hostConfig := containerSpec(d.cfg, ws.Root())

	resp, err := d.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return fmt.Errorf("failed to create sandbox container: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if rmErr := d.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			d.logger.Warn("failed to remove unstarted container", zap.String("container", name), zap.Error(rmErr))
		}
		return fmt.Errorf("failed to start sandbox container: %w", err)
	}

	d.logger.Info("sandbox container started",
		zap.String("container", name),
		zap.String("image", d.cfg.Image),
		zap.Int("memory_mb", d.cfg.MemoryMB),
		zap.Int("cpu_shares", d.cfg.CPUShares))

	d.containerID = resp.ID
	d.running = true
	return nil
}

// Terminate stops the container gracefully within the configured bound,
// then force-removes it. Errors are logged and swallowed; Terminate is
// safe to call repeatedly and from finalizers.
func (d *DockerInstance) Terminate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.containerID == "" {
		d.running = false
		return nil
	}

	stopTimeout := d.cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	timeoutSec := int(stopTimeout.Seconds())

	if err := d.cli.ContainerStop(ctx, d.containerID, container.StopOptions{Timeout: &timeoutSec}); err != nil {
		d.logger.Warn("failed to stop sandbox container", zap.Error(err))
	}
	if err := d.cli.ContainerRemove(ctx, d.containerID, container.RemoveOptions{Force: true}); err != nil {
		d.logger.Warn("failed to remove sandbox container", zap.Error(err))
	}

	d.containerID = ""
	d.running = false
	return nil
}

// Running reports whether the container is believed to be up.
func (d *DockerInstance) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
