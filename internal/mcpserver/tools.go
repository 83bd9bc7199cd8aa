package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/memory"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var searchTool = &mcp.Tool{
	Name:        "search_docs",
	Description: "Hybrid vector and keyword search over the indexed support documentation. Returns ranked passages with their source urls.",
}

var historyTool = &mcp.Tool{
	Name:        "session_history",
	Description: "Recent question and answer pairs of a conversation session.",
}

type SearchInput struct {
	Query     string `json:"query" jsonschema:"the question or keywords to search for"`
	SessionID string `json:"session_id,omitempty" jsonschema:"optional session whose recent history is attached"`
}

type HistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"the session id"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Query) == "" {
		return errorResult("missing required parameter: query"), nil, nil
	}
	resp, err := s.search.Search(ctx, in.Query, in.SessionID)
	if err != nil {
		s.logger.WithTrace(ctx).Warn("mcp search failed", "error", err)
		return errorResult(fmt.Sprintf("search failed (%s): %v", ragErrors.Code(err), err)), nil, nil
	}
	return textResult(FormatResults(resp)), nil, nil
}

func (s *Server) handleHistory(ctx context.Context, _ *mcp.CallToolRequest, in HistoryInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return errorResult("missing required parameter: session_id"), nil, nil
	}
	history, err := s.sessions.ContextFor(ctx, in.SessionID, s.pairs)
	if err != nil {
		return errorResult(fmt.Sprintf("session lookup failed: %v", err)), nil, nil
	}
	if len(history) == 0 {
		return textResult("No history for this session, it may have expired."), nil, nil
	}
	return textResult(memory.FormatContext(history)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	r := textResult(text)
	r.IsError = true
	return r
}

// FormatResults renders a search response as markdown for the calling model.
func FormatResults(resp rag.SearchResponse) string {
	if len(resp.Results) == 0 {
		return "No results found. The documentation may not be indexed yet, run `hybridrag ingest --dir <docs>`."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results for %q", len(resp.Results), resp.Query)
	if resp.RewrittenQuery != "" {
		fmt.Fprintf(&b, " (searched as %q)", resp.RewrittenQuery)
	}
	b.WriteString(":\n\n")
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "## %d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "**Source:** %s | **Score:** %.3f\n\n", r.SourceURL, r.Score)
		b.WriteString(strings.TrimSpace(r.Text))
		b.WriteString("\n\n---\n\n")
	}
	if len(resp.Degraded) > 0 {
		fmt.Fprintf(&b, "Note: results are degraded (%s).\n", strings.Join(resp.Degraded, ", "))
	}
	if len(resp.MemoryContext) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(memory.FormatContext(resp.MemoryContext))
		b.WriteString("\n")
	}
	return b.String()
}
