// Package server exposes the rewrite pipeline over the Model Context
// Protocol so coding agents can index, inspect and rewrite C sources.
package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"allocguard/internal/config"
	"allocguard/internal/scanner"
	"allocguard/internal/store"
)

// Version is reported in the MCP handshake and by the -version flag.
const Version = "0.3.1"

// Server wires the pipeline, the scanner and the index store behind an MCP
// stdio transport.
type Server struct {
	mcpServer *mcp.Server
	cfg       *config.Config
	store     *store.Store
	scan      *scanner.Scanner
}

// New creates a server over the given profile and store.
func New(cfg *config.Config, st *store.Store) *Server {
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "allocguard",
			Version: Version,
		}, nil),
		cfg:   cfg,
		store: st,
		scan:  scanner.NewScanner(cfg),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
