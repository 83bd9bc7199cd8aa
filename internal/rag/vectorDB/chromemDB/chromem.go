// Package chromemDB is the embedded vector backend. Nothing survives a restart, it exists for
// local runs without a qdrant instance and for tests.
package chromemDB

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
	chromem "github.com/philippgille/chromem-go"
)

var errNoEmbeddingFunc = errors.New("chromem backend only accepts precomputed embeddings")

type Store struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	dimensions int
	chunks     map[string]commonModels.Chunk
}

var _ vectorDB.Backend = (*Store)(nil)

func New(name string, dimensions int) (*Store, error) {
	s := &Store{name: name, dimensions: dimensions}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reset() error {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(s.name, nil, refuseEmbedding)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.db = db
	s.collection = col
	s.chunks = make(map[string]commonModels.Chunk)
	return nil
}

// refuseEmbedding keeps chromem from calling out to its default OpenAI embedder.
func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (s *Store) EnsureCollection(context.Context) error { return nil }

func (s *Store) Recreate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

func (s *Store) Describe(context.Context) (vectorDB.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorDB.CollectionInfo{
		Name:       s.name,
		Dimensions: s.dimensions,
		Distance:   vectorDB.DistanceCosine,
		Points:     uint64(s.collection.Count()),
	}, nil
}

func (s *Store) Upsert(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ch := range chunks {
		if len(vectors[i]) != s.dimensions {
			return fmt.Errorf("chunk %s: vector has %d dimensions, collection expects %d", ch.ChunkId, len(vectors[i]), s.dimensions)
		}
		// AddDocument replaces an existing id
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:        ch.ChunkId,
			Content:   ch.Text,
			Metadata:  metadataFor(ch),
			Embedding: vectors[i],
		})
		if err != nil {
			return fmt.Errorf("chromem add %s: %w", ch.ChunkId, err)
		}
		s.chunks[ch.ChunkId] = ch
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]commonModels.SearchCandidate, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < threshold {
			continue
		}
		ch, ok := s.chunks[r.ID]
		if !ok {
			ch = chunkFromMetadata(r.ID, r.Content, r.Metadata)
		}
		out = append(out, commonModels.SearchCandidate{
			ChunkId:  r.ID,
			Method:   commonModels.MethodVector,
			RawScore: float64(r.Similarity),
			Chunk:    ch,
		})
	}
	return out, nil
}

func (s *Store) ExistingIDs(context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.chunks))
	for id := range s.chunks {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *Store) Chunks(context.Context) ([]commonModels.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]commonModels.Chunk, 0, len(s.chunks))
	for _, ch := range s.chunks {
		out = append(out, ch)
	}
	return out, nil
}

// chromem metadata is a flat string map.
func metadataFor(ch commonModels.Chunk) map[string]string {
	return map[string]string{
		"document_id":  ch.DocumentId,
		"source_url":   ch.SourceURL,
		"title":        ch.Title,
		"doc_type":     string(ch.DocType),
		"chunk_index":  strconv.Itoa(ch.Ordinal),
		"total_chunks": strconv.Itoa(ch.TotalChunks),
		"has_code":     strconv.FormatBool(ch.HasCode),
	}
}

func chunkFromMetadata(id, text string, m map[string]string) commonModels.Chunk {
	ordinal, _ := strconv.Atoi(m["chunk_index"])
	total, _ := strconv.Atoi(m["total_chunks"])
	hasCode, _ := strconv.ParseBool(m["has_code"])
	return commonModels.Chunk{
		ChunkId:       id,
		DocumentId:    m["document_id"],
		SourceURL:     m["source_url"],
		Title:         m["title"],
		DocType:       commonModels.DocType(m["doc_type"]),
		Ordinal:       ordinal,
		TotalChunks:   total,
		Text:          text,
		ChunkMetadata: commonModels.ChunkMetadata{HasCode: hasCode},
	}
}
