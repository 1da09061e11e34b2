package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/databox/codec"
	"github.com/isdmx/databox/datasource"
	"github.com/isdmx/databox/transport"
	"github.com/isdmx/databox/workspace"
)

// Supervisor owns one sandbox instance and one workspace and exposes the
// engine's execute operation over them. Requests are strictly
// serialized: the transport has a single outstanding slot.
type Supervisor struct {
	logger *zap.Logger
	cfg    Config
	source datasource.DataSource
	inst    Instance
	guard   *leakGuard
	cleanup runtime.Cleanup

	mu      sync.Mutex
	ws      *workspace.Workspace
	started bool
}

var _ Executor = (*Supervisor)(nil)

// leakGuard is the cleanup backstop for supervisors that were never
// stopped explicitly. It deliberately holds no reference to the
// Supervisor itself so the runtime can collect one independently of the
// other.
type leakGuard struct {
	logger *zap.Logger
	inst   Instance

	mu sync.Mutex
	ws *workspace.Workspace
}

// release tears down the current instance and workspace. Idempotent and
// never raises: teardown errors must not stop the remaining cleanup
// steps, and release runs from finalizers.
func (g *leakGuard) release(ctx context.Context) {
	g.mu.Lock()
	ws := g.ws
	g.ws = nil
	g.mu.Unlock()

	if err := g.inst.Terminate(ctx); err != nil {
		g.logger.Warn("failed to terminate sandbox instance", zap.Error(err))
	}
	if ws != nil {
		if err := ws.Destroy(); err != nil {
			g.logger.Warn("failed to destroy workspace", zap.String("path", ws.Root()), zap.Error(err))
		}
	}
}

// SupervisorOption defines a functional option for Supervisor.
type SupervisorOption func(*Supervisor)

// WithInstance overrides the configuration-selected instance strategy.
func WithInstance(inst Instance) SupervisorOption {
	return func(s *Supervisor) {
		s.inst = inst
	}
}

// NewSupervisor validates the configuration and builds the supervisor.
// A missing image/data-directory selection is a configuration error. The
// sandbox itself starts lazily on the first Execute (or an explicit
// Start).
func NewSupervisor(logger *zap.Logger, cfg Config, source datasource.DataSource, opts ...SupervisorOption) (*Supervisor, error) {
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = DefaultExecTimeout
	}

	s := &Supervisor{
		logger: logger,
		cfg:    cfg,
		source: source,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.inst == nil {
		inst, err := NewInstance(logger, cfg)
		if err != nil {
			return nil, err
		}
		s.inst = inst
	}

	s.guard = &leakGuard{logger: logger, inst: s.inst}

	// Backstop for callers that forget Stop: when the supervisor becomes
	// unreachable the guard still releases the instance and workspace.
	// An explicit Stop cancels it.
	s.cleanup = runtime.AddCleanup(s, func(g *leakGuard) {
		g.release(context.Background())
	}, s.guard)

	return s, nil
}

// Start provisions the workspace, stages the dataset snapshot, and
// launches the instance. It is idempotent; a launch failure is fatal and
// returned as an error after the workspace has been released.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	if s.started {
		return nil
	}

	var ws *workspace.Workspace
	var err error
	if s.cfg.DataDir != "" {
		ws, err = workspace.Open(s.cfg.DataDir)
	} else {
		ws, err = workspace.Create(s.cfg.WorkspaceBase)
	}
	if err != nil {
		return err
	}

	if err := s.stageDataset(ctx, ws); err != nil {
		s.discard(ws)
		return err
	}

	if err := s.inst.Launch(ctx, ws); err != nil {
		s.discard(ws)
		return fmt.Errorf("failed to launch sandbox: %w", err)
	}

	s.guard.mu.Lock()
	s.guard.ws = ws
	s.guard.mu.Unlock()

	s.ws = ws
	s.started = true
	s.logger.Info("sandbox started", zap.String("workspace", ws.Root()), zap.Bool("owned", ws.Owned()))
	return nil
}

// stageDataset writes the data source's full snapshot into the
// workspace. A pre-provisioned directory that already carries a dataset
// is left untouched.
func (s *Supervisor) stageDataset(ctx context.Context, ws *workspace.Workspace) error {
	if !ws.Owned() {
		if _, err := os.Stat(ws.DatasetPath()); err == nil {
			return nil
		}
	}

	table, err := s.source.GetFull(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot data source: %w", err)
	}

	f, err := os.OpenFile(ws.DatasetPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, transport.FilePermission)
	if err != nil {
		return fmt.Errorf("failed to create staged dataset: %w", err)
	}
	defer f.Close()

	if err := codec.WriteCSV(f, table); err != nil {
		return fmt.Errorf("failed to stage dataset: %w", err)
	}
	return nil
}

func (s *Supervisor) discard(ws *workspace.Workspace) {
	if err := ws.Destroy(); err != nil {
		s.logger.Warn("failed to destroy workspace", zap.String("path", ws.Root()), zap.Error(err))
	}
}

// Execute runs one script against the sandbox. Invalid syntax is
// rejected locally before the sandbox is ever touched; the sandbox
// starts lazily on the first valid script. Script failures and timeouts
// come back as unsuccessful results, not errors.
func (s *Supervisor) Execute(ctx context.Context, code string) (codec.ExecuteResult, error) {
	if err := CheckSyntax(code); err != nil {
		return codec.ExecuteResult{Success: false, Error: err.Error()}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startLocked(ctx); err != nil {
		return codec.ExecuteResult{}, err
	}

	host := transport.NewHost(s.logger, s.ws, s.cfg.PollInterval)
	if err := host.Submit(code); err != nil {
		return codec.ExecuteResult{}, fmt.Errorf("failed to submit request: %w", err)
	}

	payload, err := host.Await(ctx, s.cfg.ExecTimeout)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrTimeout):
			// A sandbox that stopped responding cannot be trusted again:
			// force teardown and report the timeout as data.
			s.logger.Warn("execution timed out, discarding sandbox",
				zap.Duration("timeout", s.cfg.ExecTimeout))
			s.teardownLocked(context.Background())
			return codec.ExecuteResult{Success: false, Error: "execution timed out"}, nil
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// A sandbox mid-execution at cancellation cannot be resynchronized.
			s.logger.Warn("execution cancelled, discarding sandbox")
			s.teardownLocked(context.Background())
			return codec.ExecuteResult{}, err
		default:
			return codec.ExecuteResult{}, err
		}
	}

	res, err := codec.Decode(payload)
	if err != nil {
		return codec.ExecuteResult{}, fmt.Errorf("malformed sandbox response: %w", err)
	}
	return res, nil
}

// Stop tears down the instance and workspace. Idempotent, never raises,
// and always safe to call from a finalizer or deferred cleanup.
func (s *Supervisor) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(ctx)
	// The supervisor is released explicitly; the backstop is no longer
	// needed. A mid-flight Execute teardown keeps it, since the sandbox
	// can still be lazily restarted.
	s.cleanup.Stop()
}

func (s *Supervisor) teardownLocked(ctx context.Context) {
	if !s.started && s.ws == nil {
		return
	}

	stopCtx := ctx
	if s.cfg.StopTimeout > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(ctx, s.cfg.StopTimeout+5*time.Second)
		defer cancel()
	}

	s.guard.release(stopCtx)
	s.ws = nil
	s.started = false
	s.logger.Info("sandbox stopped")
}

// Close makes the supervisor usable as a scoped resource alongside Start.
func (s *Supervisor) Close() error {
	s.Stop(context.Background())
	return nil
}
