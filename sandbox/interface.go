package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/databox/codec"
	"github.com/isdmx/databox/workspace"
)

// Executor is the engine's public contract: lifecycle plus execution.
// Script failures, syntax rejections, and timeouts are returned as data
// inside the ExecuteResult; only configuration and launch failures cross
// this boundary as errors.
type Executor interface {
	Start(ctx context.Context) error
	Execute(ctx context.Context, code string) (codec.ExecuteResult, error)
	Stop(ctx context.Context)
}

// Instance is one isolated execution unit. Launch and Terminate are both
// idempotent; Terminate must be reachable from any state, including
// mid-failure.
type Instance interface {
	Launch(ctx context.Context, ws *workspace.Workspace) error
	Terminate(ctx context.Context) error
	Running() bool
}

// Config holds supervisor and instance configuration. Exactly one of
// Image (ephemeral container mode) and DataDir (long-lived shared worker
// mode) must be set; DataDir wins when both are present.
type Config struct {
	Image         string        // sandbox container image
	MemoryMB      int           // memory ceiling
	CPUShares     int           // CPU share weight
	DataDir       string        // pre-provisioned shared data directory
	WorkspaceBase string        // parent for created workspaces; "" = system temp
	WorkerCommand []string      // worker entry point inside the container
	DockerHost    string        // optional docker daemon override
	ExecTimeout   time.Duration // bound on one execution's wait
	PollInterval  time.Duration // response poll interval
	StopTimeout   time.Duration // graceful container stop bound
}

// Execution wait defaults.
const (
	DefaultExecTimeout = 60 * time.Second
	DefaultStopTimeout = 10 * time.Second
)

// NewInstance creates the instance strategy selected by the
// configuration.
func NewInstance(logger *zap.Logger, cfg Config) (Instance, error) {
	switch {
	case cfg.DataDir != "":
		return NewSharedInstance(logger, cfg), nil
	case cfg.Image != "":
		return NewDockerInstance(logger, cfg)
	default:
		return nil, fmt.Errorf("no sandbox image or data directory configured")
	}
}
