// Package mcp exposes the Weaver compiler and executor as MCP tools, so an
// agent can compile an SDD and execute it against a dataset without shelling
// out to cmd/weaver.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/weaver/internal/logging"
	"github.com/rendis/weaver/internal/store"
	"github.com/rendis/weaver/internal/validation"
)

// WeaverServerDeps holds the dependencies for creating a WeaverServer. Cache
// is optional: a nil Cache just means weaver.compile never hits or fills it.
type WeaverServerDeps struct {
	Cache     *store.WSpecCache
	Validator *validation.JSONSchemaValidator
	Logger    *slog.Logger
}

// WeaverServer wraps an MCP server with weaver.compile and weaver.execute
// tool handlers.
type WeaverServer struct {
	cache     *store.WSpecCache
	validator *validation.JSONSchemaValidator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewWeaverServer creates a new WeaverServer with both tools registered.
func NewWeaverServer(deps WeaverServerDeps) *WeaverServer {
	logger := deps.Logger
	if logger == nil {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
		logger = slog.New(logging.NewCorrelationHandler(handler))
	}

	s := &WeaverServer{
		cache:     deps.Cache,
		validator: deps.Validator,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"weaver",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Weaver compiles a Sankey Diagram Definition into a WeaverSpec and executes a WeaverSpec against a flow dataset. Use weaver.compile to turn a definition into a spec, and weaver.execute to turn a spec and a dataset into rendered Sankey data."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes.
func (s *WeaverServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom
// transports.
func (s *WeaverServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *WeaverServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: compileTool(), Handler: s.handleCompile},
		{Tool: executeTool(), Handler: s.handleExecute},
	}
}

func compileTool() mcp.Tool {
	return mcp.NewTool("weaver.compile",
		mcp.WithDescription("Compile a Sankey Diagram Definition into a WeaverSpec"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("SDD document: nodes, bundles, ordering, and optional flow/time partitions")),
		mcp.WithObject("measures", mcp.Description("Column to aggregation map, e.g. {\"value\": \"sum\"}; aggregation is sum or mean")),
		mcp.WithObject("display", mcp.Description("Display spec: {link_width, link_color}")),
		mcp.WithString("use_cache", mcp.Description("\"true\" to reuse a previously compiled spec for an identical definition, if one is cached")),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("weaver.execute",
		mcp.WithDescription("Execute a compiled WeaverSpec against a newline-delimited JSON flow dataset"),
		mcp.WithObject("spec", mcp.Required(), mcp.Description("A WeaverSpec document, as returned by weaver.compile")),
		mcp.WithString("dataset", mcp.Required(), mcp.Description("Newline-delimited JSON flow records")),
		mcp.WithString("projection", mcp.Description("Optional jq filter reshaping each record into a flat row before routing")),
	)
}
