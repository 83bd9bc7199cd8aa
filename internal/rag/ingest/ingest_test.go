package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guides/sso.md", "# Okta SSO\n\nConfigure SAML in the admin panel.")
	writeFile(t, dir, "guides/sso.md.url", "https://docs.atlan.com/guide/sso\n")
	writeFile(t, dir, "api/auth.md", "---\ntitle: Auth\nsource_url: \"https://developer.atlan.com/auth\"\n---\n# Tokens\n\nUse API keys.")
	writeFile(t, dir, "notes.txt", "plain text notes")
	writeFile(t, dir, "empty.md", "   \n")
	writeFile(t, dir, "image.png", "not text")
	writeFile(t, dir, "node_modules/pkg/readme.md", "# vendored")

	docs, failed, err := LoadDocuments(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("unexpected failures %v", failed)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}

	byTitle := map[string]commonModels.Document{}
	for _, d := range docs {
		byTitle[d.Title] = d
	}

	sso, ok := byTitle["Okta SSO"]
	if !ok {
		t.Fatalf("missing markdown title, got %v", byTitle)
	}
	if sso.SourceURL != "https://docs.atlan.com/guide/sso" || sso.DocType != commonModels.DocTypeDocs {
		t.Errorf("sidecar url not applied: %+v", sso)
	}
	if sso.Id != DocumentID(sso.SourceURL) {
		t.Error("document id must derive from the source url")
	}

	auth, ok := byTitle["Tokens"]
	if !ok {
		t.Fatalf("front matter document missing, got %v", byTitle)
	}
	if auth.SourceURL != "https://developer.atlan.com/auth" || auth.DocType != commonModels.DocTypeDeveloper {
		t.Errorf("front matter url not applied: %+v", auth)
	}
	if strings.Contains(auth.RawText, "source_url") {
		t.Error("front matter should be stripped from the text")
	}

	notes, ok := byTitle["notes"]
	if !ok || !strings.HasPrefix(notes.SourceURL, "file://") {
		t.Errorf("txt file should fall back to a file url, got %+v", notes)
	}
}

func TestLoadDocuments_Patterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/one.md", "# One")
	writeFile(t, dir, "b/two.txt", "two")
	writeFile(t, dir, "three.md", "# Three")

	tests := []struct {
		patterns []string
		want     int
	}{
		{[]string{"**/*.md"}, 2},
		{[]string{"a/**"}, 1},
		{[]string{"*.txt"}, 1},
		{[]string{"*.pdf"}, 0},
	}
	for _, tt := range tests {
		docs, _, err := LoadDocuments(context.Background(), dir, tt.patterns)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != tt.want {
			t.Errorf("patterns %v matched %d documents, want %d", tt.patterns, len(docs), tt.want)
		}
	}
}

func TestLoadFile_Unsupported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.csv", "a,b")
	_, err := LoadFile(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("want ErrUnsupportedFile, got %v", err)
	}
}

func TestStripFrontMatter(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		text    string
		wantURL string
	}{
		{"no front matter", "# Title\nbody", "# Title\nbody", ""},
		{"with url", "---\nsource_url: https://x.io/a\n---\nbody", "body", "https://x.io/a"},
		{"unterminated", "---\nsource_url: https://x.io/a\nbody", "---\nsource_url: https://x.io/a\nbody", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, url := stripFrontMatter(tt.in)
			if text != tt.text || url != tt.wantURL {
				t.Errorf("got (%q, %q)", text, url)
			}
		})
	}
}

func TestTitleFor(t *testing.T) {
	if got := titleFor("intro\n## Setup guide\n", "x/setup.md"); got != "Setup guide" {
		t.Errorf("got %q", got)
	}
	if got := titleFor("no headers", "x/setup-notes.txt"); got != "setup-notes" {
		t.Errorf("got %q", got)
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{"a.md": true, "b.PDF": true, "c.docx": true, "d.csv": false, "noext": false} {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v", name, got)
		}
	}
}
