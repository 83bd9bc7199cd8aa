package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/akolanti/HybridRAG/internal/rag/indexer"
	"github.com/akolanti/HybridRAG/internal/rag/keyword"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB/chromemDB"
)

type constEmbedder struct{ dims int }

func (e constEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dims)
	v[len(text)%e.dims] = 1
	return v, nil
}

func (e constEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (e constEmbedder) Dimensions() int { return e.dims }

func TestPrintSearch(t *testing.T) {
	var buf bytes.Buffer
	printSearch(&buf, rag.SearchResponse{
		Query:          "SSO setup",
		RewrittenQuery: "SSO (single sign-on) setup",
		Degraded:       []string{"KEYWORD_SEARCH_FAILED"},
		Results: []rag.SearchResult{{
			Title:          "Okta SSO",
			SourceURL:      "https://docs.atlan.com/sso",
			Text:           "Configure   SAML\nin the admin panel.",
			Score:          0.9,
			MatchedMethods: []commonModels.SearchMethod{commonModels.MethodVector},
		}},
		MemoryContext: []sessionModel.Message{
			{Role: sessionModel.RoleUser, Text: "hi"},
			{Role: sessionModel.RoleAssistant, Text: "hello"},
		},
	})
	out := buf.String()
	for _, want := range []string{"SSO (single sign-on) setup", "KEYWORD_SEARCH_FAILED", "Okta SSO",
		"https://docs.atlan.com/sso", "score 0.900", "[vector]", "Configure SAML in the admin panel.", "User: hi"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printSearch(&buf, rag.SearchResponse{Query: "nothing"})
	if !strings.Contains(buf.String(), "no results") {
		t.Errorf("empty response output %q", buf.String())
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("a  b\nc", 10); got != "a b c" {
		t.Errorf("got %q", got)
	}
	if got := snippet("héllo wörld", 5); got != "héllo..." {
		t.Errorf("rune cut got %q", got)
	}
}

func TestRunIngest(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"sso.md":      "# Okta SSO\n\nConfigure SAML in the admin panel.",
		"lineage.txt": "Lineage shows upstream and downstream assets.",
		"data.csv":    "ignored,by,patterns",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := config.Default()
	s.EmbeddingDimensions = 4
	vectors, err := chromemDB.New(s.CollectionName, s.EmbeddingDimensions)
	if err != nil {
		t.Fatal(err)
	}
	a := &app{settings: s, vectors: vectors, keyword: keyword.NewBM25()}
	a.indexer = indexer.New(constEmbedder{dims: 4}, a.vectors, a.keyword, s)

	var buf bytes.Buffer
	if err := runIngest(context.Background(), a, &buf, dir, nil, indexer.ModeIncremental); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "documents:       2") || !strings.Contains(out, "indexed:         2") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	buf.Reset()
	if err := runIngest(context.Background(), a, &buf, dir, nil, indexer.ModeIncremental); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "already present: 2") {
		t.Errorf("second run should find every chunk present:\n%s", buf.String())
	}
}
