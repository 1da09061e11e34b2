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
