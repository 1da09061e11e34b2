package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/databox/codec"
	"github.com/isdmx/databox/config"
	"github.com/isdmx/databox/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.image", s.config.Sandbox.Image),
		zap.String("sandbox.data_dir", s.config.Sandbox.DataDir),
		zap.Int("sandbox.memory_mb", s.config.Sandbox.MemoryMB),
		zap.Int("sandbox.cpu_shares", s.config.Sandbox.CPUShares),
		zap.Int("sandbox.exec_timeout_sec", s.config.Sandbox.ExecTimeoutSec),
		zap.Int("sandbox.poll_interval_ms", s.config.Sandbox.PollIntervalMs),
		zap.String("dataset.path", s.config.Dataset.Path),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("databox-executor", "A sandboxed tabular analysis server")

	// Register tools
	s.registerExecuteAnalysisTool()
	s.registerResetSessionTool()

	return s, nil
}

// registerExecuteAnalysisTool registers the execute_analysis tool
func (s *MCPServer) registerExecuteAnalysisTool() {
	tool := mcp.Tool{
		Name:        "execute_analysis",
		Description: "Execute an analysis script against the bound dataset in a sandboxed environment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Analysis script source code",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteAnalysis)
}

// registerResetSessionTool registers the reset_session tool
func (s *MCPServer) registerResetSessionTool() {
	tool := mcp.Tool{
		Name:        "reset_session",
		Description: "Tear down the analysis sandbox, discarding all accumulated script state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleResetSession)
}

// handleExecuteAnalysis handles the execute_analysis tool
func (s *MCPServer) handleExecuteAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("analysis execution requested")

	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	result, err := s.executor.Execute(ctx, code)
	if err != nil {
		s.logger.Error("sandbox execution failed", zap.Error(err))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Execution failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	s.logger.Info("analysis execution completed",
		zap.Bool("success", result.Success),
		zap.Int("output_len", len(result.Output)),
		zap.Bool("has_figure", len(result.Figure) > 0))

	resultJSON, err := codec.Encode(result)
	if err != nil {
		s.logger.Error("result encoding failed", zap.Error(err))
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(resultJSON),
			},
		},
	}, nil
}

// handleResetSession handles the reset_session tool
func (s *MCPServer) handleResetSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("session reset requested")

	s.executor.Stop(ctx)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: "Session reset. The next execution starts with a fresh context.",
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
