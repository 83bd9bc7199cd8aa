// Package indexer writes chunks to the vector backend and the keyword index in one pass.
// A chunk that cannot be embedded is skipped and reported, it never fails the run.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/internal/rag/chunker"
	"github.com/akolanti/HybridRAG/internal/rag/embedding"
	"github.com/akolanti/HybridRAG/internal/rag/keyword"
	"github.com/akolanti/HybridRAG/internal/rag/vectorDB"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

type Mode int

const (
	// ModeIncremental skips chunk ids already present in the collection.
	ModeIncremental Mode = iota
	// ModeRebuild drops the collection and indexes everything.
	ModeRebuild
)

func (m Mode) String() string {
	if m == ModeRebuild {
		return "rebuild"
	}
	return "incremental"
}

type SkippedChunk struct {
	ChunkId    string `json:"chunk_id"`
	DocumentId string `json:"document_id"`
	Reason     string `json:"reason"`
}

type Report struct {
	Total          int            `json:"total"`
	Indexed        int            `json:"indexed"`
	AlreadyPresent int            `json:"already_present"`
	KeywordIndexed int            `json:"keyword_indexed"`
	Skipped        []SkippedChunk `json:"skipped"`
	Duration       time.Duration  `json:"duration"`
}

// Progress is called after every batch with the number of chunks handled so far.
type Progress func(done, total int)

type Indexer struct {
	embedder   embedding.Embedder
	vectors    vectorDB.Backend
	keyword    keyword.Index
	chunker    *chunker.Chunker
	batchSize  int
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	progress   Progress
	logger     *logger_i.Logger
}

func New(e embedding.Embedder, v vectorDB.Backend, k keyword.Index, s config.Settings) *Indexer {
	if k == nil {
		k = keyword.Disabled{}
	}
	batch := s.EmbedBatchSize
	if batch < 1 {
		batch = 1
	}
	return &Indexer{
		embedder:   e,
		vectors:    v,
		keyword:    k,
		chunker:    chunker.FromSettings(s),
		batchSize:  batch,
		maxRetries: s.EmbedMaxRetries,
		backoff:    s.EmbedBackoff(),
		sleep:      sleepCtx,
		logger:     logger_i.NewLogger("indexer"),
	}
}

// OnProgress registers a progress callback, used by the CLI progress bar.
func (ix *Indexer) OnProgress(p Progress) {
	ix.progress = p
}

// IngestDocuments chunks every document, reads the ids already stored and indexes the rest.
func (ix *Indexer) IngestDocuments(ctx context.Context, docs []commonModels.Document, mode Mode) (Report, error) {
	var chunks []commonModels.Chunk
	for _, d := range docs {
		chunks = append(chunks, ix.chunker.Chunk(d)...)
	}

	var existing map[string]struct{}
	if mode == ModeIncremental {
		ids, err := ix.vectors.ExistingIDs(ctx)
		if err != nil {
			return Report{Total: len(chunks)}, ragErrors.Wrap(ragErrors.ErrIndexUnavailable, err)
		}
		existing = ids
	}
	return ix.Index(ctx, chunks, existing, mode)
}

func (ix *Indexer) Index(ctx context.Context, chunks []commonModels.Chunk, existing map[string]struct{}, mode Mode) (Report, error) {
	start := time.Now()
	loggr := ix.logger.WithTrace(ctx).With("mode", mode.String())
	report := Report{Total: len(chunks)}

	if mode == ModeRebuild {
		if err := ix.vectors.Recreate(ctx); err != nil {
			return report, ragErrors.Wrap(ragErrors.ErrIndexUnavailable, err)
		}
		if err := ix.keyword.Reset(); err != nil {
			return report, ragErrors.Wrap(ragErrors.ErrKeywordSearchFailed, err)
		}
		existing = nil
	}
	if err := ix.checkCollection(ctx); err != nil {
		return report, err
	}

	pending := make([]commonModels.Chunk, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, ch := range chunks {
		if _, dup := seen[ch.ChunkId]; dup {
			continue
		}
		seen[ch.ChunkId] = struct{}{}
		if _, ok := existing[ch.ChunkId]; ok {
			report.AlreadyPresent++
			continue
		}
		pending = append(pending, ch)
	}

	// keyword side does not depend on embeddings succeeding
	if err := ix.keyword.Add(pending); err != nil {
		loggr.Warn("keyword indexing failed", "error", err, "chunks", len(pending))
	} else if keyword.IsEnabled(ix.keyword) {
		report.KeywordIndexed = len(pending)
		metrics.SetKeywordIndexSize(ix.keyword.Len())
	}

	for from := 0; from < len(pending); from += ix.batchSize {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		to := min(from+ix.batchSize, len(pending))
		batch := pending[from:to]

		ready, vectors, skipped := ix.embedBatch(ctx, batch)
		report.Skipped = append(report.Skipped, skipped...)

		if len(ready) > 0 {
			if err := ix.vectors.Upsert(ctx, ready, vectors); err != nil {
				loggr.Error("vector upsert failed", "error", err, "chunks", len(ready))
				for _, ch := range ready {
					report.Skipped = append(report.Skipped, SkippedChunk{ChunkId: ch.ChunkId, DocumentId: ch.DocumentId, Reason: "upsert: " + err.Error()})
				}
			} else {
				report.Indexed += len(ready)
			}
		}
		if ix.progress != nil {
			ix.progress(report.AlreadyPresent+to, report.Total)
		}
	}

	report.Duration = time.Since(start)
	metrics.AddIndexedChunks("indexed", report.Indexed)
	metrics.AddIndexedChunks("already_present", report.AlreadyPresent)
	metrics.AddIndexedChunks("skipped", len(report.Skipped))
	loggr.Info("indexing summary",
		"total", report.Total,
		"indexed", report.Indexed,
		"already_present", report.AlreadyPresent,
		"keyword_indexed", report.KeywordIndexed,
		"skipped", len(report.Skipped),
		"duration", report.Duration)
	return report, nil
}

// Warm loads every stored chunk into the keyword index, the index is not persisted.
func (ix *Indexer) Warm(ctx context.Context) (int, error) {
	if !keyword.IsEnabled(ix.keyword) {
		return 0, nil
	}
	chunks, err := ix.vectors.Chunks(ctx)
	if err != nil {
		return 0, ragErrors.Wrap(ragErrors.ErrIndexUnavailable, err)
	}
	if err := ix.keyword.Add(chunks); err != nil {
		return 0, ragErrors.Wrap(ragErrors.ErrKeywordSearchFailed, err)
	}
	metrics.SetKeywordIndexSize(ix.keyword.Len())
	ix.logger.Info("keyword index warmed", "chunks", len(chunks))
	return len(chunks), nil
}

// checkCollection refuses to write into a collection with another dimensionality or metric.
func (ix *Indexer) checkCollection(ctx context.Context) error {
	info, err := ix.vectors.Describe(ctx)
	if err != nil {
		return ragErrors.Wrap(ragErrors.ErrIndexUnavailable, err)
	}
	if !strings.EqualFold(info.Distance, vectorDB.DistanceCosine) {
		return ragErrors.Wrap(ragErrors.ErrIndexUnavailable,
			fmt.Errorf("collection %s uses %q distance, scores are calibrated for cosine", info.Name, info.Distance))
	}
	if info.Dimensions > 0 && info.Dimensions != ix.embedder.Dimensions() {
		return ragErrors.Wrap(ragErrors.ErrIndexUnavailable,
			fmt.Errorf("collection %s stores %d dimensions, embedder produces %d", info.Name, info.Dimensions, ix.embedder.Dimensions()))
	}
	return nil
}
