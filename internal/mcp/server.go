// Package mcp exposes the summarization service to MCP clients over
// stdio: one tool to resolve a query, one to read trending topics.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roasbeef/smaart/internal/orchestrator"
	"github.com/roasbeef/smaart/internal/trending"
)

// Trender reads aggregated trending topics.
type Trender interface {
	TopTopics(ctx context.Context, limit, hours int) ([]trending.Topic,
		error)
}

// Ensure the real store satisfies the interface at compile time.
var _ Trender = (*trending.Store)(nil)

// Server wraps the MCP server with summarization dependencies.
type Server struct {
	server  *mcp.Server
	orch    *orchestrator.Orchestrator
	trender Trender
	log     *slog.Logger
}

// NewServer creates a new MCP server with the summarization tools
// registered. trender may be nil, in which case get_trending reports an
// error to the client.
func NewServer(orch *orchestrator.Orchestrator, trender Trender,
	log *slog.Logger) *Server {

	if log == nil {
		log = slog.Default()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "smaart",
		Version: "0.1.0",
	}, nil)

	s := &Server{
		server:  mcpServer,
		orch:    orch,
		trender: trender,
		log:     log.With("component", "mcp"),
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// registerTools registers the summarization tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize_topic",
		Description: "Fetch recent content about a topic and produce an AI summary",
	}, s.handleSummarizeTopic)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_trending",
		Description: "List the most frequently resolved topics in a trailing window",
	}, s.handleGetTrending)
}
