package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/rag/embedding"
)

// embedBatch tries the whole batch once, then falls back to one chunk at a time with retries.
func (ix *Indexer) embedBatch(ctx context.Context, batch []commonModels.Chunk) ([]commonModels.Chunk, [][]float32, []SkippedChunk) {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Text
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		err = embedding.CheckBatch(vectors, len(batch), ix.embedder.Dimensions())
	}
	if err == nil {
		return batch, vectors, nil
	}
	ix.logger.WithTrace(ctx).Warn("batch embedding failed, falling back to single chunks", "error", err, "batch", len(batch))

	ready := make([]commonModels.Chunk, 0, len(batch))
	readyVectors := make([][]float32, 0, len(batch))
	var skipped []SkippedChunk
	for _, ch := range batch {
		v, err := ix.embedOne(ctx, ch.Text)
		if err != nil {
			skipped = append(skipped, SkippedChunk{ChunkId: ch.ChunkId, DocumentId: ch.DocumentId, Reason: err.Error()})
			continue
		}
		ready = append(ready, ch)
		readyVectors = append(readyVectors, v)
	}
	return ready, readyVectors, skipped
}

func (ix *Indexer) embedOne(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= ix.maxRetries; attempt++ {
		if attempt > 0 {
			if err := ix.sleep(ctx, backoffFor(ix.backoff, attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		attempts++
		vectors, err := ix.embedder.EmbedBatch(ctx, []string{text})
		if err == nil {
			err = embedding.CheckBatch(vectors, 1, ix.embedder.Dimensions())
		}
		if err == nil {
			return vectors[0], nil
		}
		lastErr = err
		if !embedding.Retryable(err) {
			break
		}
	}
	return nil, ragErrors.Wrap(ragErrors.ErrEmbeddingFailed, fmt.Errorf("after %d attempts: %w", attempts, lastErr))
}

// backoffFor is base * 2^attempt capped at config.MaxBackoff.
func backoffFor(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= config.MaxBackoff {
			return config.MaxBackoff
		}
	}
	return min(d, config.MaxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
