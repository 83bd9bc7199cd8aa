// Package mcpserver exposes hybrid search and session history as MCP tools over stdio.
// Stdout carries protocol messages, so all logging must go to stderr.
package mcpserver

import (
	"context"

	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type Searcher interface {
	Search(ctx context.Context, query string, sessionID string) (rag.SearchResponse, error)
}

type Server struct {
	search   Searcher
	sessions sessionModel.Store
	pairs    int
	mcp      *mcp.Server
	logger   *logger_i.Logger
}

// New registers the tools. sessions may be nil, the history tool is then left out.
func New(search Searcher, sessions sessionModel.Store, contextPairs int, version string) *Server {
	s := &Server{
		search:   search,
		sessions: sessions,
		pairs:    contextPairs,
		logger:   logger_i.NewLogger("mcp"),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "hybridrag", Version: version}, nil)

	mcp.AddTool(s.mcp, searchTool, s.handleSearch)
	if sessions != nil {
		mcp.AddTool(s.mcp, historyTool, s.handleHistory)
	}
	return s
}

// Serve blocks until the client disconnects or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport, used by tests.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
