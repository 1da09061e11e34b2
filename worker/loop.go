package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/databox/codec"
	"github.com/isdmx/databox/transport"
	"github.com/isdmx/databox/workspace"
)

// Worker is the long-lived request loop bound to one data directory.
type Worker struct {
	logger   *zap.Logger
	listener *transport.Listener
	interp   *Interp
}

// New loads the staged dataset from dir and prepares the loop. The
// dataset file must already be present: the host stages it before the
// sandbox starts.
func New(logger *zap.Logger, dir string, interval time.Duration) (*Worker, error) {
	ws, err := workspace.Open(dir)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(ws.DatasetPath())
	if err != nil {
		return nil, fmt.Errorf("staged dataset missing: %w", err)
	}
	defer f.Close()

	table, err := codec.ReadCSV(f)
	if err != nil {
		return nil, err
	}

	logger.Info("dataset loaded",
		zap.Int("rows", len(table.Rows)),
		zap.Strings("columns", table.Columns))

	return &Worker{
		logger:   logger,
		listener: transport.NewListener(logger, ws, interval),
		interp:   NewInterp(logger, table),
	}, nil
}

// Run services requests until ctx is cancelled. Script failures produce
// failure responses; only transport-level breakage ends the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		code, err := w.listener.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		w.logger.Info("executing script", zap.Int("code_len", len(code)))
		res := w.interp.Run(code)

		payload, err := codec.Encode(res)
		if err != nil {
			w.logger.Error("failed to encode result", zap.Error(err))
			payload, _ = codec.Encode(codec.ExecuteResult{
				Success: false,
				Error:   fmt.Sprintf("failed to encode result: %v", err),
			})
		}

		if err := w.listener.Respond(payload); err != nil {
			return fmt.Errorf("failed to publish response: %w", err)
		}

		w.logger.Info("script finished",
			zap.Bool("success", res.Success),
			zap.Bool("has_figure", len(res.Figure) > 0))
	}
}
