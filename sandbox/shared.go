package sandbox

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/isdmx/databox/workspace"
)

// SharedInstance reaches a long-lived worker through a pre-provisioned
// data directory. The engine does not own the worker process: Launch
// only acknowledges the exchange point and Terminate releases nothing
// beyond the supervisor's own bookkeeping.
type SharedInstance struct {
	logger *zap.Logger
	cfg    Config

	mu      sync.Mutex
	running bool
}

// NewSharedInstance creates the shared-worker strategy.
func NewSharedInstance(logger *zap.Logger, cfg Config) *SharedInstance {
	return &SharedInstance{logger: logger, cfg: cfg}
}

func (s *SharedInstance) Launch(_ context.Context, ws *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.logger.Info("attached to shared sandbox worker", zap.String("data_dir", ws.Root()))
	s.running = true
	return nil
}

func (s *SharedInstance) Terminate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info("detached from shared sandbox worker", zap.String("data_dir", s.cfg.DataDir))
	}
	s.running = false
	return nil
}

func (s *SharedInstance) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
