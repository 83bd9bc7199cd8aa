package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/rag/embedding"
	"github.com/akolanti/HybridRAG/internal/rag/keyword"
	"github.com/akolanti/HybridRAG/internal/rag/rag_test"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
)

func testChunks(n int) []commonModels.Chunk {
	out := make([]commonModels.Chunk, n)
	for i := range out {
		out[i] = commonModels.Chunk{
			ChunkId:    fmt.Sprintf("chunk-%02d", i),
			DocumentId: "doc-1",
			Ordinal:    i,
			Text:       fmt.Sprintf("passage %d about snowflake connectors", i),
		}
	}
	return out
}

func testSettings() config.Settings {
	s := config.Default()
	s.EmbedBatchSize = 4
	s.EmbedMaxRetries = 2
	s.EmbedBackoffMs = 100
	return s
}

// newTestIndexer records requested sleeps instead of sleeping.
func newTestIndexer(e *rag_test.MockEmbedder, v *rag_test.MockVectorDB, k keyword.Index) (*Indexer, *[]time.Duration) {
	ix := New(e, v, k, testSettings())
	var mu sync.Mutex
	var slept []time.Duration
	ix.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)
		return ctx.Err()
	}
	return ix, &slept
}

func TestIndex_IncrementalRerunWritesNothing(t *testing.T) {
	emb := &rag_test.MockEmbedder{}
	vec := &rag_test.MockVectorDB{}
	ix, _ := newTestIndexer(emb, vec, keyword.NewBM25())
	ctx := context.Background()

	docs := []commonModels.Document{{Id: "doc-1", SourceURL: "https://docs.atlan.com/a", Title: "A", RawText: strings.Repeat("snowflake lineage setup guide. ", 600)}}

	first, err := ix.IngestDocuments(ctx, docs, ModeIncremental)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Indexed == 0 || first.Indexed != first.Total {
		t.Fatalf("first run should index everything, got %+v", first)
	}
	writes, calls := vec.Written, vec.UpsertCalls

	second, err := ix.IngestDocuments(ctx, docs, ModeIncremental)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if vec.Written != writes || vec.UpsertCalls != calls {
		t.Errorf("re-run wrote to the index: writes %d->%d calls %d->%d", writes, vec.Written, calls, vec.UpsertCalls)
	}
	if second.Indexed != 0 || second.AlreadyPresent != first.Total {
		t.Errorf("unexpected second report %+v", second)
	}
}

func TestIndex_SkipsChunkThatCannotBeEmbedded(t *testing.T) {
	emb := &rag_test.MockEmbedder{
		OnEmbedBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
			for _, tx := range texts {
				if strings.Contains(tx, "passage 2 ") {
					return nil, errors.New("invalid input")
				}
			}
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 0, 0}
			}
			return out, nil
		},
	}
	vec := &rag_test.MockVectorDB{}
	kw := keyword.NewBM25()
	ix, slept := newTestIndexer(emb, vec, kw)

	report, err := ix.Index(context.Background(), testChunks(6), nil, ModeIncremental)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Indexed != 5 || len(report.Skipped) != 1 {
		t.Fatalf("want 5 indexed 1 skipped, got %+v", report)
	}
	if report.Skipped[0].ChunkId != "chunk-02" || !strings.Contains(report.Skipped[0].Reason, "invalid input") {
		t.Errorf("unexpected skip %+v", report.Skipped[0])
	}
	if len(*slept) != 0 {
		t.Errorf("non retryable errors must not back off, slept %v", *slept)
	}
	if report.KeywordIndexed != 6 || kw.Len() != 6 {
		t.Errorf("keyword index should hold every chunk, got report %d len %d", report.KeywordIndexed, kw.Len())
	}
}

func TestIndex_RetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	failures := 0
	emb := &rag_test.MockEmbedder{
		OnEmbedBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(texts) > 1 {
				return nil, embedding.Transient(errors.New("429"))
			}
			if failures < 2 {
				failures++
				return nil, embedding.Transient(errors.New("503"))
			}
			return [][]float32{{0, 1, 0}}, nil
		},
	}
	vec := &rag_test.MockVectorDB{}
	ix, slept := newTestIndexer(emb, vec, nil)

	report, err := ix.Index(context.Background(), testChunks(2), nil, ModeIncremental)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Indexed != 2 || len(report.Skipped) != 0 {
		t.Fatalf("transient failures should be retried, got %+v", report)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("backoff got %v, want %v", *slept, want)
	}
}

func TestIndex_RetriesExhausted(t *testing.T) {
	emb := &rag_test.MockEmbedder{
		OnEmbedBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, embedding.Transient(errors.New("rate limited"))
		},
	}
	ix, slept := newTestIndexer(emb, &rag_test.MockVectorDB{}, nil)

	report, err := ix.Index(context.Background(), testChunks(1), nil, ModeIncremental)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(report.Skipped) != 1 || !strings.Contains(report.Skipped[0].Reason, "after 3 attempts") {
		t.Fatalf("expected skip after 3 attempts, got %+v", report.Skipped)
	}
	if !strings.Contains(report.Skipped[0].Reason, ragErrors.ErrEmbeddingFailed.Error()) {
		t.Errorf("reason should name the embedding failure: %s", report.Skipped[0].Reason)
	}
	if emb.BatchCalls != 4 {
		t.Errorf("want 1 batch call plus 3 attempts, got %d", emb.BatchCalls)
	}
	if len(*slept) != 2 {
		t.Errorf("want 2 backoffs, got %v", *slept)
	}
}

func TestIndex_UpsertFailureMarksBatchSkipped(t *testing.T) {
	vec := &rag_test.MockVectorDB{
		OnUpsert: func(ctx context.Context, chunks []commonModels.Chunk, vectors [][]float32) error {
			if chunks[0].ChunkId == "chunk-00" {
				return errors.New("disk full")
			}
			return nil
		},
	}
	ix, _ := newTestIndexer(&rag_test.MockEmbedder{}, vec, nil)

	report, err := ix.Index(context.Background(), testChunks(6), nil, ModeIncremental)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Indexed != 2 || len(report.Skipped) != 4 {
		t.Fatalf("first batch of 4 should be skipped, got %+v", report)
	}
}

func TestIndex_IncompatibleCollection(t *testing.T) {
	tests := []struct {
		name string
		info vectorDB.CollectionInfo
	}{
		{"dimension mismatch", vectorDB.CollectionInfo{Name: "c", Dimensions: 768, Distance: "Cosine"}},
		{"euclid distance", vectorDB.CollectionInfo{Name: "c", Dimensions: rag_test.MockDimensions, Distance: "Euclid"}},
		{"dot distance", vectorDB.CollectionInfo{Name: "c", Dimensions: rag_test.MockDimensions, Distance: "Dot"}},
		{"unreported distance", vectorDB.CollectionInfo{Name: "c", Dimensions: rag_test.MockDimensions}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec := &rag_test.MockVectorDB{
				OnDescribe: func(ctx context.Context) (vectorDB.CollectionInfo, error) {
					return tt.info, nil
				},
			}
			ix, _ := newTestIndexer(&rag_test.MockEmbedder{}, vec, nil)

			report, err := ix.Index(context.Background(), testChunks(3), nil, ModeIncremental)
			if !errors.Is(err, ragErrors.ErrIndexUnavailable) {
				t.Fatalf("expected ErrIndexUnavailable, got %v", err)
			}
			if vec.UpsertCalls != 0 || report.Indexed != 0 {
				t.Errorf("nothing should be written, upserts=%d indexed=%d", vec.UpsertCalls, report.Indexed)
			}
		})
	}

	vec := &rag_test.MockVectorDB{
		OnDescribe: func(ctx context.Context) (vectorDB.CollectionInfo, error) {
			return vectorDB.CollectionInfo{Name: "c", Dimensions: rag_test.MockDimensions, Distance: "cosine"}, nil
		},
	}
	ix, _ := newTestIndexer(&rag_test.MockEmbedder{}, vec, nil)
	if _, err := ix.Index(context.Background(), testChunks(1), nil, ModeIncremental); err != nil {
		t.Errorf("metric names compare case-insensitively, got %v", err)
	}
}

func TestIndex_RebuildIgnoresExisting(t *testing.T) {
	recreated := false
	vec := &rag_test.MockVectorDB{
		OnRecreate: func(ctx context.Context) error {
			recreated = true
			return nil
		},
	}
	ix, _ := newTestIndexer(&rag_test.MockEmbedder{}, vec, nil)
	existing := map[string]struct{}{"chunk-00": {}, "chunk-01": {}}

	report, err := ix.Index(context.Background(), testChunks(3), existing, ModeRebuild)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if !recreated || report.Indexed != 3 || report.AlreadyPresent != 0 {
		t.Errorf("rebuild should recreate and index all, got recreated=%v %+v", recreated, report)
	}
}

func TestIndex_RebuildResetsKeywordIndex(t *testing.T) {
	kw := keyword.NewBM25()
	_ = kw.Add([]commonModels.Chunk{{ChunkId: "stale", Text: "legacy redshift setup"}})
	ix, _ := newTestIndexer(&rag_test.MockEmbedder{}, &rag_test.MockVectorDB{}, kw)

	if _, err := ix.Index(context.Background(), testChunks(3), nil, ModeRebuild); err != nil {
		t.Fatalf("index: %v", err)
	}
	if kw.Len() != 3 {
		t.Errorf("keyword index should hold only the rebuilt chunks, got %d", kw.Len())
	}
	res, _ := kw.Search(context.Background(), "redshift", 5)
	if len(res) != 0 {
		t.Errorf("stale chunk still findable after rebuild: %+v", res)
	}
}

func TestWarm_LoadsKeywordIndex(t *testing.T) {
	vec := &rag_test.MockVectorDB{}
	_ = vec.Upsert(context.Background(), testChunks(3), make([][]float32, 3))
	kw := keyword.NewBM25()
	ix, _ := newTestIndexer(&rag_test.MockEmbedder{}, vec, kw)

	n, err := ix.Warm(context.Background())
	if err != nil || n != 3 || kw.Len() != 3 {
		t.Fatalf("warm got n=%d len=%d err=%v", n, kw.Len(), err)
	}
}

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{500 * time.Millisecond, 0, 500 * time.Millisecond},
		{500 * time.Millisecond, 1, time.Second},
		{500 * time.Millisecond, 3, 4 * time.Second},
		{500 * time.Millisecond, 10, 10 * time.Second},
		{0, 3, 0},
	}
	for _, tt := range tests {
		if got := backoffFor(tt.base, tt.attempt); got != tt.want {
			t.Errorf("backoffFor(%v, %d) = %v, want %v", tt.base, tt.attempt, got, tt.want)
		}
	}
}
