// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes tools
// for dataset analysis. It uses the mark3labs/mcp-go library to handle the
// protocol details and provides the execute_analysis tool as the primary
// interface for running scripts against the bound dataset, plus reset_session
// for discarding accumulated script state.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
