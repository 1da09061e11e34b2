// Package main is the entry point for the in-sandbox Databox worker.
//
// The worker runs inside the sandbox (or against a pre-provisioned shared
// data directory), polling its data directory for analysis requests and
// writing back encoded results. It exits cleanly on SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/isdmx/databox/transport"
	"github.com/isdmx/databox/worker"
)

func main() {
	dir := flag.String("data-dir", "/workspace", "data directory holding the staged dataset and request files")
	interval := flag.Duration("poll-interval", transport.DefaultPollInterval, "request poll interval")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	w, err := worker.New(logger, *dir, *interval)
	if err != nil {
		logger.Fatal("worker startup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		logger.Fatal("worker loop failed", zap.Error(err))
	}

	logger.Info("worker stopped")
}
