package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/sieve/pkg/config"
	"github.com/panbanda/sieve/pkg/pipeline"
)

// Server wraps the MCP server and registers the sieve analysis tools.
type Server struct {
	server *mcp.Server
	cfg    *config.Config
	engine *pipeline.Engine
}

// NewServer creates a new MCP server with all sieve tools registered. A nil
// cfg uses the default configuration.
func NewServer(version string, cfg *config.Config, logger *slog.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts := pipeline.FromConfig(cfg)
	if logger != nil {
		opts = append(opts, pipeline.WithLogger(logger))
	}

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "sieve",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, cfg: cfg, engine: pipeline.New(opts...)}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_code",
		Description: describeAnalyzeCode(),
	}, s.handleAnalyzeCode)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_file",
		Description: describeAnalyzeFile(),
	}, s.handleAnalyzeFile)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "explain_rule",
		Description: describeExplainRule(),
	}, s.handleExplainRule)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_scopes",
		Description: describeListScopes(),
	}, s.handleListScopes)
}
