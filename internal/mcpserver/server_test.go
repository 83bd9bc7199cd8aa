package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/memory"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mockSearcher struct {
	OnSearch func(query, sessionID string) (rag.SearchResponse, error)
}

func (m *mockSearcher) Search(_ context.Context, query string, sessionID string) (rag.SearchResponse, error) {
	return m.OnSearch(query, sessionID)
}

func okSearch(query, _ string) (rag.SearchResponse, error) {
	return rag.SearchResponse{
		Query:          query,
		RewrittenQuery: query + " single sign-on",
		Results: []rag.SearchResult{
			{Title: "Okta SSO", SourceURL: "https://docs.atlan.com/sso", Text: "Configure SAML.", Score: 0.91},
		},
	}, nil
}

func textOf(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := r.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", r.Content[0])
	}
	return tc.Text
}

func TestHandleSearch(t *testing.T) {
	tests := []struct {
		name     string
		input    SearchInput
		search   func(string, string) (rag.SearchResponse, error)
		isError  bool
		contains string
	}{
		{"results", SearchInput{Query: "sso"}, okSearch, false, "https://docs.atlan.com/sso"},
		{"blank query", SearchInput{Query: "  "}, okSearch, true, "query"},
		{"search error", SearchInput{Query: "sso"}, func(string, string) (rag.SearchResponse, error) {
			return rag.SearchResponse{}, ragErrors.ErrIndexUnavailable
		}, true, "search failed"},
		{"no results", SearchInput{Query: "nothing"}, func(q, _ string) (rag.SearchResponse, error) {
			return rag.SearchResponse{Query: q}, nil
		}, false, "No results found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&mockSearcher{OnSearch: tt.search}, nil, 5, "test")
			res, _, err := s.handleSearch(context.Background(), nil, tt.input)
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if res.IsError != tt.isError {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.isError)
			}
			if text := textOf(t, res); !strings.Contains(text, tt.contains) {
				t.Errorf("result %q does not contain %q", text, tt.contains)
			}
		})
	}
}

func TestSessionHistoryOverTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessions := memory.NewManager(memory.Options{Timeout: time.Hour, MaxMessages: 20, ContextPairs: 5}, nil)
	if err := sessions.Append(ctx, "s1", "how do I set up sso?", "use the admin panel"); err != nil {
		t.Fatal(err)
	}

	var gotSession string
	srv := New(&mockSearcher{OnSearch: func(q, id string) (rag.SearchResponse, error) {
		gotSession = id
		return okSearch(q, id)
	}}, sessions, 5, "test")

	serverT, clientT := mcp.NewInMemoryTransports()
	if _, err := srv.Connect(ctx, serverT); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_docs",
		Arguments: map[string]any{"query": "sso", "session_id": "s1"},
	})
	if err != nil {
		t.Fatalf("call search_docs: %v", err)
	}
	if res.IsError || !strings.Contains(textOf(t, res), "Okta SSO") {
		t.Errorf("unexpected search result %+v", res)
	}
	if gotSession != "s1" {
		t.Errorf("session id not forwarded, got %q", gotSession)
	}

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "session_history",
		Arguments: map[string]any{"session_id": "s1"},
	})
	if err != nil {
		t.Fatalf("call session_history: %v", err)
	}
	want := "User: how do I set up sso?\nAssistant: use the admin panel"
	if got := textOf(t, res); got != want {
		t.Errorf("history = %q, want %q", got, want)
	}
}

func TestFormatResults_Degraded(t *testing.T) {
	resp, _ := okSearch("sso", "")
	resp.Degraded = []string{"KEYWORD_SEARCH_FAILED"}
	out := FormatResults(resp)
	for _, want := range []string{"searched as", "KEYWORD_SEARCH_FAILED", "## 1. Okta SSO"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
