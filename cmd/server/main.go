// Package main is the entry point for the Databox MCP server.
//
// The Databox server implements a Model Context Protocol (MCP) server that
// runs untrusted analysis scripts against a bound dataset inside isolated
// sandboxes. The server supports both stdio and HTTP transports and keeps
// script state persistent between calls until the session is reset.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/databox/config"
	"github.com/isdmx/databox/datasource"
	"github.com/isdmx/databox/logger"
	"github.com/isdmx/databox/mcpserver"
	"github.com/isdmx/databox/sandbox"
)

// newDataSource builds the ranked provider chain from configuration.
func newDataSource(cfg *config.Config, log *zap.Logger) (datasource.DataSource, error) {
	if cfg.Dataset.Path == "" {
		return nil, errors.New("no dataset configured: set dataset.path")
	}
	return datasource.NewChain(log, datasource.CSVFile{Path: cfg.Dataset.Path}), nil
}

// newExecutor maps the application configuration onto the sandbox
// supervisor and ties its teardown to the fx lifecycle.
func newExecutor(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, source datasource.DataSource) (sandbox.Executor, error) {
	s, err := sandbox.NewSupervisor(log, sandbox.Config{
		Image:         cfg.Sandbox.Image,
		MemoryMB:      cfg.Sandbox.MemoryMB,
		CPUShares:     cfg.Sandbox.CPUShares,
		DataDir:       cfg.Sandbox.DataDir,
		WorkspaceBase: cfg.Sandbox.WorkspaceBase,
		WorkerCommand: cfg.Sandbox.WorkerCommand,
		DockerHost:    cfg.Sandbox.DockerHost,
		ExecTimeout:   cfg.ExecTimeout(),
		PollInterval:  cfg.PollInterval(),
		StopTimeout:   cfg.StopTimeout(),
	}, source)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			s.Stop(ctx)
			return nil
		},
	})

	return s, nil
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Data source chain
			newDataSource,

			// Sandbox executor based on config
			newExecutor,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					// Use fx to run this as a background task
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
