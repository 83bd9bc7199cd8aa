package retriever

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/rag/keyword"
	"github.com/akolanti/HybridRAG/internal/rag/rag_test"
)

func cand(id string, m commonModels.SearchMethod, score float64) commonModels.SearchCandidate {
	return commonModels.SearchCandidate{ChunkId: id, Method: m, RawScore: score, Chunk: commonModels.Chunk{ChunkId: id, Text: id}}
}

func ids(results []commonModels.FusedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ChunkId
	}
	return out
}

func TestFuse_Ordering(t *testing.T) {
	tests := []struct {
		name    string
		vector  []commonModels.SearchCandidate
		keyword []commonModels.SearchCandidate
		w       Weights
		topK    int
		want    []string
	}{
		{
			name:    "higher fused score first",
			vector:  []commonModels.SearchCandidate{cand("a", "vector", 0.9), cand("b", "vector", 0.5), cand("c", "vector", 0.1)},
			keyword: []commonModels.SearchCandidate{cand("c", "keyword", 12), cand("b", "keyword", 3)},
			w:       Weights{Vector: 0.7, Keyword: 0.3},
			topK:    5,
			// a=0.7, b=0.35+0=0.35, c=0+0.3=0.3
			want: []string{"a", "b", "c"},
		},
		{
			name:    "equal score prefers both methods",
			vector:  []commonModels.SearchCandidate{cand("z", "vector", 0.8), cand("y", "vector", 0.2)},
			keyword: []commonModels.SearchCandidate{cand("y", "keyword", 5), cand("x", "keyword", 1)},
			w:       Weights{Vector: 1, Keyword: 1},
			topK:    5,
			// z=1 (vector only), y=0+1=1 (both), x=0 (keyword only)
			want: []string{"y", "z", "x"},
		},
		{
			name:   "equal single method scores fall back to chunk id",
			vector: []commonModels.SearchCandidate{cand("d", "vector", 0.4), cand("b", "vector", 0.4), cand("c", "vector", 0.4)},
			w:      Weights{Vector: 1},
			topK:   5,
			want:   []string{"b", "c", "d"},
		},
		{
			name:    "truncated to topK",
			vector:  []commonModels.SearchCandidate{cand("a", "vector", 3), cand("b", "vector", 2), cand("c", "vector", 1)},
			keyword: []commonModels.SearchCandidate{cand("d", "keyword", 1)},
			w:       Weights{Vector: 0.7, Keyword: 0.3},
			topK:    2,
			want:    []string{"a", "b"},
		},
		{
			name:    "keyword weight zero drops keyword only hits",
			vector:  []commonModels.SearchCandidate{cand("a", "vector", 0.9), cand("b", "vector", 0.3)},
			keyword: []commonModels.SearchCandidate{cand("k", "keyword", 40), cand("b", "keyword", 20)},
			w:       Weights{Vector: 1, Keyword: 0},
			topK:    5,
			want:    []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fuse(tt.vector, tt.keyword, tt.w, tt.topK)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Fatalf("got %v, want %v", ids(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].FusedScore > got[i-1].FusedScore {
					t.Errorf("result %d outranks a lower score", i)
				}
			}
		})
	}
}

func TestFuse_MatchedMethodsAndScores(t *testing.T) {
	got := Fuse(
		[]commonModels.SearchCandidate{cand("a", "vector", 0.9)},
		[]commonModels.SearchCandidate{cand("a", "keyword", 7.5), cand("b", "keyword", 2.5)},
		Weights{Vector: 0.7, Keyword: 0.3}, 5)

	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	a := got[0]
	if a.ChunkId != "a" || !a.MatchedBoth() {
		t.Fatalf("a should be first and matched by both, got %+v", a)
	}
	// single vector candidate normalises to 1, keyword a is the max
	if a.VectorScore != 1 || a.KeywordScore != 1 || math.Abs(a.FusedScore-1) > 1e-9 {
		t.Errorf("unexpected scores %+v", a)
	}
	if got[1].FusedScore != 0 || got[1].MatchedBoth() {
		t.Errorf("b is the keyword minimum and keyword only, got %+v", got[1])
	}
}

func TestFuse_VectorOnlyWeightsMatchVectorRanking(t *testing.T) {
	vector := []commonModels.SearchCandidate{
		cand("v1", "vector", 0.91), cand("v2", "vector", 0.87), cand("v3", "vector", 0.87), cand("v4", "vector", 0.42),
	}
	keyword := []commonModels.SearchCandidate{cand("v4", "keyword", 30), cand("k1", "keyword", 25), cand("v2", "keyword", 1)}

	hybrid := Fuse(vector, keyword, Weights{Vector: 1, Keyword: 0}, 10)
	vectorOnly := Fuse(vector, nil, Weights{Vector: 1, Keyword: 0}, 10)
	if !reflect.DeepEqual(ids(hybrid), ids(vectorOnly)) {
		t.Fatalf("vw=1 kw=0 ranking %v differs from vector only %v", ids(hybrid), ids(vectorOnly))
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize([]commonModels.SearchCandidate{cand("a", "vector", 0.3)}); got[0] != 1 {
		t.Errorf("single candidate should normalise to 1, got %v", got)
	}
	got := normalize([]commonModels.SearchCandidate{cand("a", "vector", 2), cand("b", "vector", 2)})
	if got[0] != 1 || got[1] != 1 {
		t.Errorf("equal scores should normalise to 1, got %v", got)
	}
	got = normalize([]commonModels.SearchCandidate{cand("a", "vector", 10), cand("b", "vector", 5), cand("c", "vector", 0)})
	if !reflect.DeepEqual(got, []float64{1, 0.5, 0}) {
		t.Errorf("got %v", got)
	}
}

func setup(t *testing.T, hybrid bool) (*Retriever, *rag_test.MockEmbedder, *rag_test.MockVectorDB, *keyword.BM25) {
	t.Helper()
	s := config.Default()
	s.EnableHybridSearch = hybrid
	emb := &rag_test.MockEmbedder{}
	vec := &rag_test.MockVectorDB{
		OnSearch: func(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
			return []commonModels.SearchCandidate{cand("c1", "vector", 0.8), cand("c2", "vector", 0.6)}, nil
		},
	}
	kw := keyword.NewBM25()
	_ = kw.Add([]commonModels.Chunk{
		{ChunkId: "c2", Text: "configure okta single sign-on"},
		{ChunkId: "c3", Text: "okta groups and personas"},
	})
	return New(emb, vec, kw, s), emb, vec, kw
}

func TestSearch_Hybrid(t *testing.T) {
	r, _, _, _ := setup(t, true)
	out, err := r.Search(context.Background(), "okta sso", r.Defaults())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !reflect.DeepEqual(out.MethodsUsed, []commonModels.SearchMethod{"vector", "keyword"}) {
		t.Errorf("methods used %v", out.MethodsUsed)
	}
	if len(out.Degraded) != 0 {
		t.Errorf("unexpected degradation %v", out.Degraded)
	}
	found := map[string]bool{}
	for _, res := range out.Results {
		found[res.ChunkId] = true
	}
	if !found["c1"] || !found["c2"] || !found["c3"] {
		t.Errorf("expected results from both legs, got %v", ids(out.Results))
	}
}

func TestSearch_CandidatePoolIsMultiplied(t *testing.T) {
	r, _, vec, _ := setup(t, true)
	var gotLimit int
	var gotThreshold float64
	vec.OnSearch = func(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
		gotLimit, gotThreshold = limit, threshold
		return nil, nil
	}
	_, _ = r.Search(context.Background(), "q", Options{TopK: 4, ScoreThreshold: 0.25, Weights: Weights{Vector: 1}})
	if gotLimit != 12 || gotThreshold != 0.25 {
		t.Errorf("vector leg got limit=%d threshold=%v", gotLimit, gotThreshold)
	}
}

type failingIndex struct{ keyword.Index }

func (failingIndex) Search(context.Context, string, int) ([]commonModels.SearchCandidate, error) {
	return nil, errors.New("index corrupted")
}

func TestSearch_KeywordFailureDegrades(t *testing.T) {
	r, _, _, kw := setup(t, true)
	r.keyword = failingIndex{kw}

	out, err := r.Search(context.Background(), "okta", r.Defaults())
	if err != nil {
		t.Fatalf("keyword failure must not fail the search: %v", err)
	}
	if len(out.Degraded) != 1 || !errors.Is(out.Degraded[0], ragErrors.ErrKeywordSearchFailed) {
		t.Fatalf("expected recorded degradation, got %v", out.Degraded)
	}
	if !reflect.DeepEqual(out.MethodsUsed, []commonModels.SearchMethod{"vector"}) {
		t.Errorf("methods used %v", out.MethodsUsed)
	}
	if !reflect.DeepEqual(ids(out.Results), []string{"c1", "c2"}) {
		t.Errorf("expected vector only results, got %v", ids(out.Results))
	}
}

func TestSearch_TypedFailures(t *testing.T) {
	t.Run("vector backend down", func(t *testing.T) {
		r, _, vec, _ := setup(t, true)
		vec.OnSearch = func(ctx context.Context, v []float32, limit int, threshold float64) ([]commonModels.SearchCandidate, error) {
			return nil, errors.New("connection refused")
		}
		_, err := r.Search(context.Background(), "okta", r.Defaults())
		if !errors.Is(err, ragErrors.ErrIndexUnavailable) {
			t.Fatalf("want ErrIndexUnavailable, got %v", err)
		}
	})
	t.Run("query embedding fails", func(t *testing.T) {
		r, emb, _, _ := setup(t, true)
		emb.OnEmbed = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("quota")
		}
		_, err := r.Search(context.Background(), "okta", r.Defaults())
		if !errors.Is(err, ragErrors.ErrEmbeddingFailed) {
			t.Fatalf("want ErrEmbeddingFailed, got %v", err)
		}
	})
	t.Run("empty query", func(t *testing.T) {
		r, _, _, _ := setup(t, true)
		if _, err := r.Search(context.Background(), "  ", r.Defaults()); !errors.Is(err, ragErrors.ErrEmptyQuery) {
			t.Fatalf("want ErrEmptyQuery, got %v", err)
		}
	})
}

func TestSearch_HybridDisabledUsesVectorOnly(t *testing.T) {
	r, _, _, _ := setup(t, false)
	if keyword.IsEnabled(r.keyword) {
		t.Fatal("keyword leg should be the Disabled strategy")
	}
	out, err := r.Search(context.Background(), "okta", r.Defaults())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !reflect.DeepEqual(out.MethodsUsed, []commonModels.SearchMethod{"vector"}) {
		t.Errorf("methods used %v", out.MethodsUsed)
	}
	if !reflect.DeepEqual(ids(out.Results), []string{"c1", "c2"}) {
		t.Errorf("got %v", ids(out.Results))
	}
}
