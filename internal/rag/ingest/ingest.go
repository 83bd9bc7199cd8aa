// Package ingest turns files on disk into documents for the chunker.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

var logger = logger_i.NewLogger("Document Ingestion")

var DefaultPatterns = []string{"**/*.md", "**/*.txt", "**/*.pdf", "**/*.docx"}

var skipDirs = map[string]bool{".git": true, "node_modules": true, "vendor": true, ".venv": true}

var documentNamespace = uuid.MustParse(config.ChunkNamespace)

// DocumentID is derived from the source url so re-ingesting a page keeps its chunk ids.
func DocumentID(sourceURL string) string {
	return uuid.NewSHA1(documentNamespace, []byte(sourceURL)).String()
}

type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// LoadDocuments walks root and loads every file matching one of the patterns, in path order.
// Unreadable files are reported and skipped; only a walk failure is an error.
func LoadDocuments(ctx context.Context, root string, patterns []string) ([]commonModels.Document, []FileError, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matches(filepath.ToSlash(rel), patterns) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	var docs []commonModels.Document
	var failed []FileError
	for _, p := range paths {
		doc, err := LoadFile(ctx, p)
		if err != nil {
			logger.WithTrace(ctx).Warn("skipping file", "path", p, "error", err)
			failed = append(failed, FileError{Path: p, Err: err})
			continue
		}
		if strings.TrimSpace(doc.RawText) == "" {
			logger.WithTrace(ctx).Debug("skipping empty file", "path", p)
			continue
		}
		docs = append(docs, doc)
	}
	logger.WithTrace(ctx).Info("loaded documents", "root", root, "matched", len(paths), "loaded", len(docs), "failed", len(failed))
	return docs, failed, nil
}

func matches(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(filepath.ToSlash(p), rel); err == nil && ok {
			return true
		}
		// "*.md" should also match nested files
		if ok, err := doublestar.Match(p, filepath.Base(rel)); err == nil && ok && !strings.Contains(p, "/") {
			return true
		}
	}
	return false
}

// LoadFile extracts one file. The source url comes from a "<file>.url" sidecar, a
// "source_url:" front matter line, or falls back to a file:// url.
func LoadFile(ctx context.Context, path string) (commonModels.Document, error) {
	text, err := extractText(ctx, path)
	if err != nil {
		return commonModels.Document{}, err
	}

	text, frontMatterURL := stripFrontMatter(text)
	sourceURL := sidecarURL(path)
	if sourceURL == "" {
		sourceURL = frontMatterURL
	}
	if sourceURL == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		sourceURL = "file://" + filepath.ToSlash(abs)
	}

	return commonModels.Document{
		Id:        DocumentID(sourceURL),
		SourceURL: sourceURL,
		Title:     titleFor(text, path),
		RawText:   text,
		DocType:   commonModels.DocTypeFor(sourceURL),
	}, nil
}

func sidecarURL(path string) string {
	raw, err := os.ReadFile(path + ".url")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// stripFrontMatter removes a leading "---" block and returns its source_url value if any.
func stripFrontMatter(text string) (string, string) {
	trimmed := strings.TrimPrefix(text, "\ufeff")
	if !strings.HasPrefix(trimmed, "---\n") && !strings.HasPrefix(trimmed, "---\r\n") {
		return text, ""
	}
	lines := strings.Split(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "---" {
			continue
		}
		var url string
		for _, l := range lines[1:i] {
			if key, val, ok := strings.Cut(l, ":"); ok && strings.TrimSpace(key) == "source_url" {
				url = strings.Trim(strings.TrimSpace(val), `"'`)
			}
		}
		return strings.Join(lines[i+1:], "\n"), url
	}
	return text, ""
}

func titleFor(text string, path string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
