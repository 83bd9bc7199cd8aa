package keyword

import (
	"context"
	"fmt"
	"sync"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/blevesearch/bleve"
)

type bleveDoc struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// BleveIndex delegates scoring to bleve's in-memory full text engine.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	chunks map[string]commonModels.Chunk
}

func NewBleve() (*BleveIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveIndex{index: idx, chunks: make(map[string]commonModels.Chunk)}, nil
}

func (b *BleveIndex) Add(chunks []commonModels.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := batch.Index(ch.ChunkId, bleveDoc{Title: ch.Title, Text: ch.Text}); err != nil {
			return fmt.Errorf("bleve batch %s: %w", ch.ChunkId, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("bleve batch: %w", err)
	}
	for _, ch := range chunks {
		b.chunks[ch.ChunkId] = ch
	}
	return nil
}

// Reset swaps in a fresh in-memory index, bleve has no truncate.
func (b *BleveIndex) Reset() error {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}
	b.mu.Lock()
	old := b.index
	b.index = idx
	b.chunks = make(map[string]commonModels.Chunk)
	b.mu.Unlock()
	return old.Close()
}

func (b *BleveIndex) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

func (b *BleveIndex) Search(ctx context.Context, query string, n int) ([]commonModels.SearchCandidate, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.chunks) == 0 || n <= 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), n, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]commonModels.SearchCandidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ch, ok := b.chunks[hit.ID]
		if !ok {
			continue
		}
		out = append(out, commonModels.SearchCandidate{
			ChunkId:  hit.ID,
			Method:   commonModels.MethodKeyword,
			RawScore: hit.Score,
			Chunk:    ch,
		})
	}
	return rank(out, n), nil
}
