// Package keyword is the lexical leg of hybrid retrieval. Indexes live in process memory and
// are rebuilt on startup from the vector store payloads or on ingestion.
package keyword

import (
	"context"
	"fmt"
	"sort"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
)

type Index interface {
	// Add is idempotent on chunk id, re-adding a chunk replaces it.
	Add(chunks []commonModels.Chunk) error
	Search(ctx context.Context, query string, n int) ([]commonModels.SearchCandidate, error)
	Len() int
	// Reset drops every chunk, used when the vector collection is rebuilt.
	Reset() error
}

// New builds the backend named by KEYWORD_BACKEND.
func New(backend string) (Index, error) {
	switch backend {
	case "", "bm25":
		return NewBM25(), nil
	case "bleve":
		return NewBleve()
	default:
		return nil, fmt.Errorf("unknown keyword backend %q", backend)
	}
}

// Disabled is the keyword strategy used when hybrid search is switched off.
type Disabled struct{}

func (Disabled) Add([]commonModels.Chunk) error { return nil }
func (Disabled) Search(context.Context, string, int) ([]commonModels.SearchCandidate, error) {
	return nil, nil
}
func (Disabled) Len() int { return 0 }
func (Disabled) Reset() error { return nil }

func IsEnabled(idx Index) bool {
	if idx == nil {
		return false
	}
	_, off := idx.(Disabled)
	return !off
}

// rank orders candidates by score, ties by chunk id so results are reproducible.
func rank(c []commonModels.SearchCandidate, n int) []commonModels.SearchCandidate {
	sort.Slice(c, func(i, j int) bool {
		if c[i].RawScore != c[j].RawScore {
			return c[i].RawScore > c[j].RawScore
		}
		return c[i].ChunkId < c[j].ChunkId
	})
	if n > 0 && len(c) > n {
		c = c[:n]
	}
	return c
}
