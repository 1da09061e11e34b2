package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/isdmx/databox/codec"
)

// DataSource supplies a full tabular snapshot. Implementations must be
// safe to call repeatedly; the engine itself snapshots once per sandbox
// start.
type DataSource interface {
	GetFull(ctx context.Context) (codec.Table, error)
}

// Static serves a fixed in-memory table.
type Static struct {
	Table codec.Table
}

func (s Static) GetFull(context.Context) (codec.Table, error) {
	return s.Table, nil
}

// CSVFile reads the snapshot from a CSV file on every call.
type CSVFile struct {
	Path string
}

func (c CSVFile) GetFull(context.Context) (codec.Table, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return codec.Table{}, fmt.Errorf("failed to open dataset %s: %w", c.Path, err)
	}
	defer f.Close()

	return codec.ReadCSV(f)
}

// Chain tries a ranked list of providers in order and returns the first
// snapshot obtained. All failures are logged; the combined error is
// returned only when every provider fails.
type Chain struct {
	logger    *zap.Logger
	providers []DataSource
}

// NewChain builds a ranked provider chain.
func NewChain(logger *zap.Logger, providers ...DataSource) *Chain {
	return &Chain{logger: logger, providers: providers}
}

func (c *Chain) GetFull(ctx context.Context) (codec.Table, error) {
	if len(c.providers) == 0 {
		return codec.Table{}, errors.New("no data source providers configured")
	}

	var errs []error
	for i, p := range c.providers {
		table, err := p.GetFull(ctx)
		if err == nil {
			return table, nil
		}
		c.logger.Warn("data source provider failed, trying next",
			zap.Int("rank", i),
			zap.Error(err))
		errs = append(errs, err)
	}

	return codec.Table{}, fmt.Errorf("all data source providers failed: %w", errors.Join(errs...))
}
