// Package mcp provides an MCP (Model Context Protocol) server adapter for testforge.
// It lets AI assistants build the knowledge base, generate grounded test
// cases and synthesize Selenium scripts.
package mcp

import "errors"

// ErrMissingAuthoringService is returned when the authoring service is not provided.
var ErrMissingAuthoringService = errors.New("mcp: authoring service is required")
