package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageTimeout = 10 * time.Second

var ErrUnsupportedFile = errors.New("unsupported file type")

// Supported reports whether extractText can read files with this name.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt", ".pdf", ".docx", ".odt", ".rtf":
		return true
	}
	return false
}

func extractText(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		return string(raw), nil
	case ".pdf":
		return extractPDF(ctx, path)
	case ".docx", ".odt", ".rtf":
		text, err := cat.File(path)
		if err != nil {
			return "", fmt.Errorf("failed to extract document: %w", err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
}

// extractPDF joins page texts with blank lines. A page that fails or times out is skipped.
func extractPDF(ctx context.Context, path string) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := f.NumPage()
	for i := 1; i <= numPages; i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(ctx, page)
		if err != nil {
			logger.Warn("Error parsing page content", "path", path, "page", i, "error", err)
			continue
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func protectExtract(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(pageTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", errors.New("page extraction timeout")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
