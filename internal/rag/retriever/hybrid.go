// Package retriever runs the vector and keyword legs side by side and fuses them.
package retriever

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/internal/rag/embedding"
	"github.com/akolanti/HybridRAG/internal/rag/keyword"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	TopK           int
	ScoreThreshold float64
	Weights        Weights
}

type Outcome struct {
	Query       string                      `json:"query"`
	Results     []commonModels.FusedResult  `json:"results"`
	MethodsUsed []commonModels.SearchMethod `json:"search_methods_used"`
	// Degraded lists recoverable failures, currently only ErrKeywordSearchFailed.
	Degraded []error `json:"-"`
	// Embedding is the query vector, reused by the chat flow's answer cache.
	Embedding []float32 `json:"-"`
}

type Retriever struct {
	embedder   embedding.Embedder
	vectors    vectorDB.Backend
	keyword    keyword.Index
	multiplier int
	defaults   Options
	logger     *logger_i.Logger
}

// New picks the keyword strategy once: with hybrid search off the keyword leg is Disabled and
// the weights collapse to vector only.
func New(e embedding.Embedder, v vectorDB.Backend, k keyword.Index, s config.Settings) *Retriever {
	opts := Options{
		TopK:           s.TopK,
		ScoreThreshold: s.ScoreThreshold,
		Weights:        Weights{Vector: s.VectorWeight, Keyword: s.KeywordWeight},
	}
	if !s.EnableHybridSearch || k == nil {
		k = keyword.Disabled{}
		opts.Weights = Weights{Vector: 1, Keyword: 0}
	}
	return &Retriever{
		embedder:   e,
		vectors:    v,
		keyword:    k,
		multiplier: max(s.CandidateMultiplier, 2),
		defaults:   opts,
		logger:     logger_i.NewLogger("retriever"),
	}
}

func (r *Retriever) Defaults() Options {
	return r.defaults
}

func (r *Retriever) Search(ctx context.Context, query string, opts Options) (Outcome, error) {
	query = strings.TrimSpace(query)
	out := Outcome{Query: query}
	if query == "" {
		return out, ragErrors.ErrEmptyQuery
	}
	if opts.TopK <= 0 {
		opts.TopK = r.defaults.TopK
	}
	n := opts.TopK * r.multiplier
	loggr := r.logger.WithTrace(ctx)

	var vectorHits, keywordHits []commonModels.SearchCandidate
	var keywordErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		defer func() { metrics.CaptureSearchLeg("embedding", time.Since(start)) }()
		vec, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return ragErrors.Wrap(ragErrors.ErrEmbeddingFailed, err)
		}
		out.Embedding = vec

		searchStart := time.Now()
		hits, err := r.vectors.Search(gctx, vec, n, opts.ScoreThreshold)
		metrics.CaptureSearchLeg("vector", time.Since(searchStart))
		if err != nil {
			return ragErrors.Wrap(ragErrors.ErrIndexUnavailable, err)
		}
		vectorHits = hits
		return nil
	})

	useKeyword := keyword.IsEnabled(r.keyword) && opts.Weights.Keyword > 0
	if useKeyword {
		// keyword failures never cancel the vector leg
		g.Go(func() error {
			start := time.Now()
			defer func() { metrics.CaptureSearchLeg("keyword", time.Since(start)) }()
			hits, err := r.keyword.Search(ctx, query, n)
			if err != nil {
				keywordErr = ragErrors.Wrap(ragErrors.ErrKeywordSearchFailed, err)
				return nil
			}
			keywordHits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		loggr.Error("search failed", "error", err)
		return out, err
	}

	out.MethodsUsed = []commonModels.SearchMethod{commonModels.MethodVector}
	switch {
	case keywordErr != nil:
		loggr.Warn("keyword leg failed, continuing vector only", "error", keywordErr)
		out.Degraded = append(out.Degraded, keywordErr)
		metrics.IncrementDegradedSearch("keyword_failed")
	case useKeyword:
		out.MethodsUsed = append(out.MethodsUsed, commonModels.MethodKeyword)
	}

	out.Results = Fuse(vectorHits, keywordHits, opts.Weights, opts.TopK)
	loggr.Debug("hybrid search", "vector_hits", len(vectorHits), "keyword_hits", len(keywordHits), "results", len(out.Results))
	return out, nil
}
