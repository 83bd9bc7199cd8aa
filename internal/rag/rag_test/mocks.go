package rag_test

import (
	"context"
	"sync"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
)

const MockDimensions = 3

// MockVectorDB implements vectorDB.Backend and vectorDB.AnswerCache. Without hooks it behaves
// like a tiny in-memory store so indexing tests can count writes.
type MockVectorDB struct {
	OnSearch          func(ctx context.Context, vector []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error)
	OnUpsert          func(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32) error
	OnDescribe        func(ctx context.Context) (vectorDB.CollectionInfo, error)
	OnExistingIDs     func(ctx context.Context) (map[string]struct{}, error)
	OnRecreate        func(ctx context.Context) error
	OnGetCachedAnswer func(ctx context.Context, queryVector []float32) (string, bool, error)
	OnSaveToCache     func(ctx context.Context, id string, vector []float32, answer string) error

	mu          sync.Mutex
	Stored      map[string]commonModels.Chunk
	UpsertCalls int
	Written     int
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context) error { return nil }

func (m *MockVectorDB) Recreate(ctx context.Context) error {
	if m.OnRecreate != nil {
		return m.OnRecreate(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stored = nil
	return nil
}

func (m *MockVectorDB) Describe(ctx context.Context) (vectorDB.CollectionInfo, error) {
	if m.OnDescribe != nil {
		return m.OnDescribe(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return vectorDB.CollectionInfo{Name: "mock", Dimensions: MockDimensions, Distance: "Cosine", Points: uint64(len(m.Stored))}, nil
}

func (m *MockVectorDB) Upsert(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	m.UpsertCalls++
	m.mu.Unlock()
	if m.OnUpsert != nil {
		if err := m.OnUpsert(ctx, chunks, vectors); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Stored == nil {
		m.Stored = make(map[string]commonModels.Chunk)
	}
	for _, ch := range chunks {
		m.Stored[ch.ChunkId] = ch
	}
	m.Written += len(chunks)
	return nil
}

func (m *MockVectorDB) Search(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, v, limit, threshold)
	}
	return nil, nil
}

func (m *MockVectorDB) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	if m.OnExistingIDs != nil {
		return m.OnExistingIDs(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]struct{}, len(m.Stored))
	for id := range m.Stored {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *MockVectorDB) Chunks(ctx context.Context) ([]commonModels.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]commonModels.Chunk, 0, len(m.Stored))
	for _, ch := range m.Stored {
		out = append(out, ch)
	}
	return out, nil
}

func (m *MockVectorDB) GetCachedAnswer(ctx context.Context, v []float32) (string, bool, error) {
	if m.OnGetCachedAnswer != nil {
		return m.OnGetCachedAnswer(ctx, v)
	}
	return "", false, nil
}

func (m *MockVectorDB) SaveToCache(ctx context.Context, id string, v []float32, a string) error {
	if m.OnSaveToCache != nil {
		return m.OnSaveToCache(ctx, id, v, a)
	}
	return nil
}

type MockEmbedder struct {
	OnEmbed      func(ctx context.Context, text string) ([]float32, error)
	OnEmbedBatch func(ctx context.Context, texts []string) ([][]float32, error)

	mu         sync.Mutex
	EmbedCalls int
	BatchCalls int
}

func (m *MockEmbedder) Dimensions() int { return MockDimensions }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.EmbedCalls++
	m.mu.Unlock()
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.BatchCalls++
	m.mu.Unlock()
	if m.OnEmbedBatch != nil {
		return m.OnEmbedBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnComplete func(ctx context.Context, req llm.CompletionRequest) (string, error)

	mu   sync.Mutex
	Last llm.CompletionRequest
}

func (m *MockLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.Last = req
	m.mu.Unlock()
	if m.OnComplete != nil {
		return m.OnComplete(ctx, req)
	}
	return "mocked llm response", nil
}

func (m *MockLLM) LastRequest() llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Last
}
